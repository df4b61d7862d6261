package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/services"
)

// NotificationHandler handles the notification log endpoints.
type NotificationHandler struct {
	notificationService services.NotificationServicer
	queryService        services.QueryServicer
	auditService        services.AuditServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	notificationService services.NotificationServicer,
	queryService services.QueryServicer,
	auditService services.AuditServicer,
) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		queryService:        queryService,
		auditService:        auditService,
	}
}

// RecordNotificationRequest asks for the customer to be notified about a
// flagged transaction.
type RecordNotificationRequest struct {
	TransactionID string                  `json:"transaction_id" binding:"required,max=64"`
	Type          models.NotificationType `json:"type" binding:"omitempty,notification_type"`
}

// ListNotificationsQuery narrows the notification list.
type ListNotificationsQuery struct {
	TransactionID string `form:"transaction_id" binding:"max=64"`
}

// ListNotifications handles the notification log listing
// @Summary     List notifications
// @Description Get the reviewer's notifications, newest first
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       transaction_id query string false "Only notifications for this transaction"
// @Success     200 {array}  models.Notification "Notifications"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var transactionID *string
	if query.TransactionID != "" {
		transactionID = &query.TransactionID
	}

	notifications, err := h.notificationService.ListNotifications(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// RecordNotification handles recording a flag notification
// @Summary     Notify customer
// @Description Record an awaiting notification for a transaction and queue it for delivery. The merchant and amount are copied from the transaction.
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RecordNotificationRequest true "Notification details"
// @Success     201 {object} models.Notification "Notification recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications [post]
func (h *NotificationHandler) RecordNotification(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.queryService.GetTransaction(userID, req.TransactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	notification, err := h.notificationService.RecordFlagNotification(
		userID,
		transaction.ID,
		req.Type,
		transaction.Merchant,
		transaction.Amount,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RECORD_NOTIFICATION", "notification", notification.ID, c.ClientIP(),
		map[string]interface{}{"transaction_id": transaction.ID, "type": notification.Type})

	c.JSON(http.StatusCreated, gin.H{"notification": notification})
}

// Retrigger handles re-sending a notification
// @Summary     Retrigger notification
// @Description Mark a notification delivered as of now and send it again
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     200 {object} models.Notification "Updated notification"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/{id}/retrigger [post]
func (h *NotificationHandler) Retrigger(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	notificationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	notification, err := h.notificationService.Retrigger(userID, notificationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RETRIGGER_NOTIFICATION", "notification", notification.ID, c.ClientIP(),
		map[string]interface{}{"attempts": notification.Attempts})

	c.JSON(http.StatusOK, gin.H{"notification": notification})
}
