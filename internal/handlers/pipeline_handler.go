package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/services"
)

// PipelineHandler serves the statement parsing pipeline. Routes are guarded
// by PipelineAuthMiddleware rather than reviewer JWTs.
type PipelineHandler struct {
	statementService services.StatementServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(statementService services.StatementServicer) *PipelineHandler {
	return &PipelineHandler{statementService: statementService}
}

// ExtractedTransactionRequest is one transaction the pipeline extracted and
// classified.
type ExtractedTransactionRequest struct {
	Date            string                   `json:"date" binding:"required"`
	Merchant        string                   `json:"merchant"`
	Description     string                   `json:"description"`
	Amount          decimal.Decimal          `json:"amount" swaggertype:"string" example:"245.00"`
	Flagged         bool                     `json:"flagged"`
	FlagReason      *string                  `json:"flag_reason"`
	ConfidenceScore *float64                 `json:"confidence_score" binding:"omitempty,confidence"`
	Status          models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
}

// CompleteStatementRequest carries the pipeline's results for a statement.
type CompleteStatementRequest struct {
	Transactions []ExtractedTransactionRequest `json:"transactions" binding:"max=10000,dive"`
}

// ListPending handles the pipeline's work queue
// @Summary     Pending statements
// @Description Get every statement still waiting to be parsed, oldest upload first
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {array}  models.Statement "Pending statements"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/statements/pending [get]
func (h *PipelineHandler) ListPending(c *gin.Context) {
	statements, err := h.statementService.ListPending()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statements": statements})
}

// DownloadFile handles the pipeline fetching an uploaded statement
// @Summary     Download statement file
// @Description Stream the stored PDF of a statement
// @Tags        pipeline
// @Produce     application/pdf
// @Security    ApiKeyAuth
// @Param       id path string true "Statement ID"
// @Success     200 {file}   file "PDF"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/statements/{id}/file [get]
func (h *PipelineHandler) DownloadFile(c *gin.Context) {
	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	statement, err := h.statementService.GetStatementFile(statementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(statement.StoragePath, statement.FileName)
}

// CompleteStatement handles the pipeline reporting a parsed statement
// @Summary     Complete statement ingestion
// @Description Store the extracted transactions and mark the statement completed. A statement can be completed once.
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id      path string                   true "Statement ID"
// @Param       request body CompleteStatementRequest true "Extracted transactions"
// @Success     200 {object} models.Statement "Completed statement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     409 {object} ErrorResponse "Statement already completed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/statements/{id}/complete [post]
func (h *PipelineHandler) CompleteStatement(c *gin.Context) {
	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CompleteStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rows := make([]services.ExtractedTransaction, len(req.Transactions))
	for i, t := range req.Transactions {
		date, err := parseDate(t.Date)
		if err != nil {
			respondWithError(c, err)
			return
		}
		rows[i] = services.ExtractedTransaction{
			Date:            date,
			Merchant:        t.Merchant,
			Description:     t.Description,
			Amount:          t.Amount,
			Flagged:         t.Flagged,
			FlagReason:      t.FlagReason,
			ConfidenceScore: t.ConfidenceScore,
			Status:          t.Status,
		}
	}

	statement, err := h.statementService.CompleteIngestion(statementID, rows)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statement": statement})
}
