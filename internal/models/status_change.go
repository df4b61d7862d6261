package models

import "time"

// StatusChange is an append-only ledger entry recording a transaction's
// status at a point in time. The ingestion entry has an empty FromStatus.
type StatusChange struct {
	Base
	UserID        string            `gorm:"size:64;not null;index" json:"user_id"`
	TransactionID string            `gorm:"size:64;not null;index" json:"transaction_id"`
	FromStatus    TransactionStatus `gorm:"type:varchar(16)" json:"from_status,omitempty"`
	ToStatus      TransactionStatus `gorm:"type:varchar(16);not null;index" json:"to_status"`
	ActorID       string            `json:"actor_id,omitempty"`
	ChangedAt     time.Time         `gorm:"not null" json:"changed_at"`
}
