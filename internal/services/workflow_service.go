package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/metrics"
	"fraudreview/internal/models"
)

// workflowService applies reviewer actions to transactions.
//
// Every action is valid from every status and the only failure is an unknown
// transaction. Each action runs in a DB transaction holding the row lock, so
// concurrent actions on the same transaction serialize.
type workflowService struct {
	db                *gorm.DB
	publisher         publisher
	metrics           metrics.Recorder
	escalationChannel models.NotificationType
	now               func() time.Time
}

// NewWorkflowService creates a new WorkflowServicer. escalationChannel is the
// notification type used when an escalation has to create a notification.
func NewWorkflowService(db *gorm.DB, dispatcher NotificationDispatcher, recorder metrics.Recorder, escalationChannel models.NotificationType) WorkflowServicer {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &workflowService{
		db:                db,
		publisher:         newPublisher(dispatcher, recorder),
		metrics:           recorder,
		escalationChannel: escalationChannel,
		now:               time.Now,
	}
}

// Approve sets status approved and clears the flag.
func (s *workflowService) Approve(userID, transactionID string) (*models.Transaction, error) {
	return s.transition(userID, transactionID, models.ActionApprove)
}

// Dispute sets status disputed. The flag is left as is.
func (s *workflowService) Dispute(userID, transactionID string) (*models.Transaction, error) {
	return s.transition(userID, transactionID, models.ActionDispute)
}

func (s *workflowService) transition(userID, transactionID string, action models.ReviewAction) (*models.Transaction, error) {
	var txn models.Transaction
	var changed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockTransaction(tx, userID, transactionID, &txn); err != nil {
			return err
		}
		var err error
		changed, err = s.apply(tx, &txn, action, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(action), changed)
	return &txn, nil
}

// Escalate sets status escalated and makes sure a notification exists for
// the transaction. An existing notification is kept as is unless retrigger
// is set, in which case the latest one is re-sent.
func (s *workflowService) Escalate(userID, transactionID string, retrigger bool) (*EscalationResult, error) {
	result := &EscalationResult{}
	var changed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockTransaction(tx, userID, transactionID, &result.Transaction); err != nil {
			return err
		}
		var err error
		if changed, err = s.apply(tx, &result.Transaction, models.ActionEscalate, userID); err != nil {
			return err
		}

		now := s.now()
		err = tx.Where("user_id = ? AND transaction_id = ?", userID, transactionID).
			Order("created_at DESC").Order("id DESC").
			First(&result.Notification).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Notification = snapshotNotification(&result.Transaction, s.escalationChannel, models.NotificationStatusEscalated, now)
			if err := tx.Create(&result.Notification).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			result.Created = true
		case err != nil:
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		case retrigger:
			if err := retriggerNotification(tx, &result.Notification, now); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			result.Retriggered = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(models.ActionEscalate), changed)
	switch {
	case result.Created:
		s.publisher.publish(result.Notification, metrics.OriginEscalation)
	case result.Retriggered:
		s.publisher.publish(result.Notification, metrics.OriginRetrigger)
	}
	return result, nil
}

// History returns the transaction's status ledger, oldest first.
func (s *workflowService) History(userID, transactionID string) ([]models.StatusChange, error) {
	var count int64
	if err := s.db.Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", transactionID, userID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrTransactionNotFound
	}

	changes := []models.StatusChange{}
	if err := s.db.Where("user_id = ? AND transaction_id = ?", userID, transactionID).
		Order("changed_at ASC").Order("id ASC").
		Find(&changes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return changes, nil
}

// apply runs the action's transition on txn, persists status and flagged,
// and appends a ledger entry when the status changed.
func (s *workflowService) apply(tx *gorm.DB, txn *models.Transaction, action models.ReviewAction, actorID string) (bool, error) {
	from := txn.Status
	changed := txn.Apply(models.Transitions[action])

	if err := tx.Model(txn).Updates(map[string]interface{}{
		"status":  txn.Status,
		"flagged": txn.Flagged,
	}).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if changed {
		entry := &models.StatusChange{
			UserID:        txn.UserID,
			TransactionID: txn.ID,
			FromStatus:    from,
			ToStatus:      txn.Status,
			ActorID:       actorID,
			ChangedAt:     s.now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return changed, nil
}

// lockTransaction loads the reviewer's transaction with a row lock.
func lockTransaction(tx *gorm.DB, userID, transactionID string, txn *models.Transaction) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTransactionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
