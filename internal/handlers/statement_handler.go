package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
	"fraudreview/internal/services"
)

const (
	// maxStatementWait caps how long GET /statements/:id may block.
	maxStatementWait = 60 * time.Second
	// multipartOverhead is the allowance for form boundaries and headers on
	// top of the file itself.
	multipartOverhead = 1 << 20
)

// StatementHandler handles statement upload and status requests.
type StatementHandler struct {
	statementService services.StatementServicer
	auditService     services.AuditServicer
	maxUploadBytes   int64
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(statementService services.StatementServicer, auditService services.AuditServicer, maxUploadBytes int64) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
		auditService:     auditService,
		maxUploadBytes:   maxUploadBytes,
	}
}

// GetStatementQuery holds the optional long-poll duration.
type GetStatementQuery struct {
	Wait string `form:"wait"`
}

// UploadStatement handles a statement upload
// @Summary     Upload statement
// @Description Upload a PDF bank statement. The statement is created in the processing state and completes when the parsing pipeline reports its transactions.
// @Tags        statements
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file formData file true "PDF statement"
// @Success     202 {object} models.Statement "Statement accepted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     413 {object} ErrorResponse "File too large"
// @Failure     415 {object} ErrorResponse "Not a PDF"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements [post]
func (h *StatementHandler) UploadStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, apperrors.ErrFileTooLarge)
			return
		}
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "A PDF file is required in the 'file' field"))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	statement, _, err := h.statementService.IngestStatement(userID, header.Filename, header.Size, file)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPLOAD_STATEMENT", "statement", statement.ID, c.ClientIP(),
		map[string]interface{}{"file_name": statement.FileName, "file_size": statement.FileSize})

	c.JSON(http.StatusAccepted, gin.H{"statement": statement})
}

// ListStatements handles the statement list
// @Summary     List statements
// @Description Get a page of the reviewer's statements, newest upload first
// @Tags        statements
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Statement] "Paginated statements"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements [get]
func (h *StatementHandler) ListStatements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.statementService.ListStatements(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStatement handles the retrieval of a statement
// @Summary     Get statement
// @Description Get a statement. With wait (e.g. 30s, at most 60s) the request blocks until ingestion completes or the wait expires, then returns the statement as it is.
// @Tags        statements
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string true  "Statement ID"
// @Param       wait query string false "Go duration to wait for completion"
// @Success     200 {object} models.Statement "Statement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/{id} [get]
func (h *StatementHandler) GetStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query GetStatementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var wait time.Duration
	if query.Wait != "" {
		wait, err = time.ParseDuration(query.Wait)
		if err != nil || wait < 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid wait duration"))
			return
		}
		if wait > maxStatementWait {
			wait = maxStatementWait
		}
	}

	var statement *models.Statement
	if wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		statement, err = h.statementService.Await(ctx, userID, statementID)
	} else {
		statement, err = h.statementService.GetStatement(userID, statementID)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statement": statement})
}
