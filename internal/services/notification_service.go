package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/logger"
	"fraudreview/internal/metrics"
	"fraudreview/internal/models"
)

// publisher hands committed notifications to the delivery dispatcher.
type publisher struct {
	dispatcher NotificationDispatcher
	metrics    metrics.Recorder
}

func newPublisher(dispatcher NotificationDispatcher, recorder metrics.Recorder) publisher {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return publisher{dispatcher: dispatcher, metrics: recorder}
}

// publish must only be called after the notification row is committed.
func (p publisher) publish(n models.Notification, origin string) {
	p.metrics.RecordNotification(origin)
	if p.dispatcher == nil {
		return
	}
	if !p.dispatcher.Dispatch(n) {
		logger.Get().Warnw("notification not queued for delivery",
			"notification_id", n.ID,
			"transaction_id", n.TransactionID,
			"origin", origin,
		)
	}
}

// snapshotNotification builds a notification carrying the transaction's
// merchant and amount as they are now.
func snapshotNotification(txn *models.Transaction, notificationType models.NotificationType, status models.NotificationStatus, now time.Time) models.Notification {
	return models.Notification{
		UserID:        txn.UserID,
		TransactionID: txn.ID,
		Date:          now,
		Type:          notificationType,
		Status:        status,
		Merchant:      txn.Merchant,
		Amount:        txn.Amount,
		Attempts:      1,
	}
}

// retriggerNotification marks n delivered as of now and persists it.
func retriggerNotification(tx *gorm.DB, n *models.Notification, now time.Time) error {
	n.Status = models.NotificationStatusDelivered
	n.Date = now
	n.Attempts++
	return tx.Model(n).Updates(map[string]interface{}{
		"status":   n.Status,
		"date":     n.Date,
		"attempts": n.Attempts,
	}).Error
}

// notificationService owns the notification log.
type notificationService struct {
	db          *gorm.DB
	publisher   publisher
	defaultType models.NotificationType
	now         func() time.Time
}

// NewNotificationService creates a new NotificationServicer. defaultType is
// used when a caller records a notification without choosing a channel.
func NewNotificationService(db *gorm.DB, dispatcher NotificationDispatcher, recorder metrics.Recorder, defaultType models.NotificationType) NotificationServicer {
	return &notificationService{
		db:          db,
		publisher:   newPublisher(dispatcher, recorder),
		defaultType: defaultType,
		now:         time.Now,
	}
}

// RecordFlagNotification appends an awaiting notification and queues it for
// delivery. It does not wait for the transport.
func (s *notificationService) RecordFlagNotification(
	userID string,
	transactionID string,
	notificationType models.NotificationType,
	merchant string,
	amount decimal.Decimal,
) (*models.Notification, error) {
	if notificationType == "" {
		notificationType = s.defaultType
	}

	notification := &models.Notification{
		UserID:        userID,
		TransactionID: transactionID,
		Date:          s.now(),
		Type:          notificationType,
		Status:        models.NotificationStatusAwaiting,
		Merchant:      merchant,
		Amount:        amount,
		Attempts:      1,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.publisher.publish(*notification, metrics.OriginFlag)
	return notification, nil
}

// Retrigger marks a notification delivered as of now, whatever its current
// status, and queues it for delivery again.
func (s *notificationService) Retrigger(userID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			First(&notification).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotificationNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := retriggerNotification(tx, &notification, s.now()); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.publish(notification, metrics.OriginRetrigger)
	return &notification, nil
}

// ListNotifications returns the reviewer's notifications, newest first,
// optionally narrowed to one transaction.
func (s *notificationService) ListNotifications(userID string, transactionID *string) ([]models.Notification, error) {
	query := s.db.Where("user_id = ?", userID)
	if transactionID != nil && *transactionID != "" {
		query = query.Where("transaction_id = ?", *transactionID)
	}

	notifications := []models.Notification{}
	if err := query.Order("date DESC").Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return notifications, nil
}

// MarkDelivered records a successful transport outcome. Only awaiting
// notifications move to delivered; escalated and already delivered ones
// keep their status.
func (s *notificationService) MarkDelivered(ctx context.Context, notificationID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND status = ?", notificationID, models.NotificationStatusAwaiting).
		Update("status", models.NotificationStatusDelivered).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
