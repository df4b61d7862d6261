package models

import "time"

// StatementStatus tracks ingestion progress of an uploaded statement.
type StatementStatus string

const (
	StatementStatusProcessing StatementStatus = "processing"
	StatementStatusCompleted  StatementStatus = "completed"
)

// Statement is one uploaded source document. TransactionCount and
// FlaggedCount stay zero until ingestion completes.
type Statement struct {
	Base
	UserID           string          `gorm:"size:64;not null;index" json:"user_id"`
	FileName         string          `gorm:"not null" json:"file_name"`
	FileSize         int64           `json:"file_size"`
	StoragePath      string          `json:"-"`
	UploadDate       time.Time       `gorm:"not null" json:"upload_date"`
	Status           StatementStatus `gorm:"type:varchar(16);not null;default:processing;index" json:"status"`
	TransactionCount int             `gorm:"not null;default:0" json:"transaction_count"`
	FlaggedCount     int             `gorm:"not null;default:0" json:"flagged_count"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}
