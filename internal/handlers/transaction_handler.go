package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/services"
)

// TransactionHandler handles the reviewer's transaction listing and review
// actions.
type TransactionHandler struct {
	queryService    services.QueryServicer
	workflowService services.WorkflowServicer
	statsService    services.StatsServicer
	auditService    services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(
	queryService services.QueryServicer,
	workflowService services.WorkflowServicer,
	statsService services.StatsServicer,
	auditService services.AuditServicer,
) *TransactionHandler {
	return &TransactionHandler{
		queryService:    queryService,
		workflowService: workflowService,
		statsService:    statsService,
		auditService:    auditService,
	}
}

// EscalateRequest is the optional body of an escalation.
type EscalateRequest struct {
	// Retrigger re-sends an existing notification instead of keeping it as is.
	Retrigger bool `json:"retrigger"`
}

// ListTransactions handles the filtered, searched and sorted transaction list
// @Summary     List transactions
// @Description Get one page of the reviewer's filtered, searched and sorted transactions. Search matches merchant, description and formatted amount ($1,234.56), case-insensitively; dates are not searched. Filters apply to the whole result before paging, so compare filters by walking every page (see total_pages).
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       filter    query string false "all (default) or flagged"
// @Param       search    query string false "Case-insensitive substring"
// @Param       sort      query string false "date (default), merchant or amount"
// @Param       direction query string false "desc (default) or asc"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query services.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.queryService.List(userID, query)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSummary handles the per-status counts
// @Summary     Review summary
// @Description Count the reviewer's transactions per review status
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.ReviewSummary "Counts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/summary [get]
func (h *TransactionHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.statsService.Summary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetTransaction handles the retrieval of a single transaction
// @Summary     Get transaction
// @Description Get one of the reviewer's transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.queryService.GetTransaction(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// GetHistory handles the status history of a transaction
// @Summary     Transaction status history
// @Description Get every recorded status of a transaction, oldest first
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {array}  models.StatusChange "Status history"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/history [get]
func (h *TransactionHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	history, err := h.workflowService.History(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Approve handles approving a transaction
// @Summary     Approve transaction
// @Description Mark a transaction approved and clear its flag. Valid from any status.
// @Tags        review
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/approve [post]
func (h *TransactionHandler) Approve(c *gin.Context) {
	h.review(c, "APPROVE_TRANSACTION", h.workflowService.Approve)
}

// Dispute handles disputing a transaction
// @Summary     Dispute transaction
// @Description Mark a transaction disputed. The flag is left as is. Valid from any status.
// @Tags        review
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/dispute [post]
func (h *TransactionHandler) Dispute(c *gin.Context) {
	h.review(c, "DISPUTE_TRANSACTION", h.workflowService.Dispute)
}

func (h *TransactionHandler) review(c *gin.Context, action string, apply func(userID, transactionID string) (*models.Transaction, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := apply(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "transaction", transaction.ID, c.ClientIP(),
		map[string]interface{}{"status": transaction.Status, "flagged": transaction.Flagged})

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// Escalate handles escalating a transaction
// @Summary     Escalate transaction
// @Description Mark a transaction escalated. Creates an escalated notification when none exists; an existing one is kept unless retrigger is set.
// @Tags        review
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true  "Transaction ID"
// @Param       request body EscalateRequest false "Escalation options"
// @Success     200 {object} services.EscalationResult "Escalation outcome"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/escalate [post]
func (h *TransactionHandler) Escalate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	// The body is optional.
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.workflowService.Escalate(userID, transactionID, req.Retrigger)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ESCALATE_TRANSACTION", "transaction", result.Transaction.ID, c.ClientIP(),
		map[string]interface{}{
			"notification_id": result.Notification.ID,
			"created":         result.Created,
			"retriggered":     result.Retriggered,
		})

	c.JSON(http.StatusOK, result)
}

// ListEscalated handles the escalation review list
// @Summary     List escalated transactions
// @Description Get every escalated transaction of the reviewer, newest first
// @Tags        review
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  models.Transaction "Escalated transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /review/escalated [get]
func (h *TransactionHandler) ListEscalated(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactions, err := h.queryService.ListEscalated(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
