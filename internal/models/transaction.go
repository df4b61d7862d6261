package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the review state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusDisputed  TransactionStatus = "disputed"
	TransactionStatusEscalated TransactionStatus = "escalated"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusApproved,
		TransactionStatusDisputed, TransactionStatusEscalated:
		return true
	}
	return false
}

// Transaction is one line item extracted from a statement.
//
// FlagReason and ConfidenceScore are written by the classifier at ingestion
// and never updated; review actions only touch Status and Flagged.
type Transaction struct {
	Base
	UserID          string            `gorm:"size:64;not null;index" json:"user_id"`
	StatementID     *string           `gorm:"size:64;index" json:"statement_id,omitempty"`
	Position        int               `gorm:"not null;default:0" json:"-"`
	Date            time.Time         `gorm:"type:date;not null" json:"date"`
	Merchant        string            `gorm:"not null" json:"merchant"`
	Description     string            `json:"description"`
	Amount          decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Flagged         bool              `gorm:"not null;default:false;index" json:"flagged"`
	FlagReason      *string           `json:"flag_reason,omitempty"`
	ConfidenceScore *float64          `json:"confidence_score,omitempty"`
	Status          TransactionStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
}

// Transition describes the effect of a review action on a transaction.
type Transition struct {
	To           TransactionStatus
	ClearFlagged bool
}

// ReviewAction names a reviewer operation.
type ReviewAction string

const (
	ActionApprove  ReviewAction = "approve"
	ActionDispute  ReviewAction = "dispute"
	ActionEscalate ReviewAction = "escalate"
)

// Transitions is the review state machine. Every action is valid from every
// status; reviewers can always re-classify a transaction.
var Transitions = map[ReviewAction]Transition{
	ActionApprove:  {To: TransactionStatusApproved, ClearFlagged: true},
	ActionDispute:  {To: TransactionStatusDisputed},
	ActionEscalate: {To: TransactionStatusEscalated},
}

// Apply mutates t according to tr and reports whether the status changed.
func (t *Transaction) Apply(tr Transition) bool {
	changed := t.Status != tr.To
	t.Status = tr.To
	if tr.ClearFlagged {
		t.Flagged = false
	}
	return changed
}
