package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"fraudreview/internal/ingestion"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
)

// UserServicer defines the contract for reviewer account logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// EscalationResult is the outcome of escalating a transaction: the updated
// transaction and the notification that now backs it.
type EscalationResult struct {
	Transaction  models.Transaction  `json:"transaction"`
	Notification models.Notification `json:"notification"`
	// Created is true when no notification existed for the transaction.
	Created bool `json:"created"`
	// Retriggered is true when an existing notification was re-sent.
	Retriggered bool `json:"retriggered"`
}

// WorkflowServicer defines the review state machine operations.
type WorkflowServicer interface {
	Approve(userID, transactionID string) (*models.Transaction, error)
	Dispute(userID, transactionID string) (*models.Transaction, error)
	Escalate(userID, transactionID string, retrigger bool) (*EscalationResult, error)
	History(userID, transactionID string) ([]models.StatusChange, error)
}

// ReviewFilter selects which transactions a listing includes.
type ReviewFilter string

const (
	FilterAll     ReviewFilter = "all"
	FilterFlagged ReviewFilter = "flagged"
)

// SortField is a column a listing can be ordered by.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByMerchant SortField = "merchant"
	SortByAmount   SortField = "amount"
)

// SortDirection is ascending or descending order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListQuery holds the filter, search and sort parameters for listing
// transactions. Zero values mean all rows, newest first.
type ListQuery struct {
	Filter    ReviewFilter  `form:"filter" binding:"omitempty,review_filter"`
	Search    string        `form:"search" binding:"max=200"`
	Sort      SortField     `form:"sort" binding:"omitempty,sort_field"`
	Direction SortDirection `form:"direction" binding:"omitempty,sort_direction"`
	pagination.PageRequest
}

// QueryServicer defines read access to the reviewer's working set.
type QueryServicer interface {
	List(userID string, query ListQuery) (*pagination.PageResponse[models.Transaction], error)
	GetTransaction(userID, transactionID string) (*models.Transaction, error)
	ListEscalated(userID string) ([]models.Transaction, error)
}

// NotificationDispatcher hands recorded notifications to the delivery
// collaborator without waiting for the outcome.
type NotificationDispatcher interface {
	Dispatch(n models.Notification) bool
}

// NotificationServicer defines the notification log operations.
type NotificationServicer interface {
	RecordFlagNotification(userID, transactionID string, notificationType models.NotificationType, merchant string, amount decimal.Decimal) (*models.Notification, error)
	Retrigger(userID, notificationID string) (*models.Notification, error)
	ListNotifications(userID string, transactionID *string) ([]models.Notification, error)
	MarkDelivered(ctx context.Context, notificationID string) error
}

// DashboardStats is the dashboard projection over the reviewer's store.
type DashboardStats struct {
	TotalStatements     int64 `json:"total_statements"`
	TotalTransactions   int64 `json:"total_transactions"`
	FlaggedTransactions int64 `json:"flagged_transactions"`
	DisputesResolved    int64 `json:"disputes_resolved"`
}

// ReviewSummary counts transactions per review state.
type ReviewSummary struct {
	Total     int64 `json:"total"`
	Flagged   int64 `json:"flagged"`
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Disputed  int64 `json:"disputed"`
	Escalated int64 `json:"escalated"`
}

// StatementRollup is the live transaction and flagged count of one statement.
type StatementRollup struct {
	StatementID      string                 `json:"statement_id"`
	FileName         string                 `json:"file_name"`
	Status           models.StatementStatus `json:"status"`
	TransactionCount int64                  `json:"transaction_count"`
	FlaggedCount     int64                  `json:"flagged_count"`
}

// StatsServicer defines the aggregate projections.
type StatsServicer interface {
	Stats(userID string) (*DashboardStats, error)
	Summary(userID string) (*ReviewSummary, error)
	StatementRollups(userID string) ([]StatementRollup, error)
}

// ExtractedTransaction is one row reported by the statement pipeline.
// Status is normally empty (pending); FlagReason and ConfidenceScore are
// kept only for flagged rows.
type ExtractedTransaction struct {
	Date            time.Time
	Merchant        string
	Description     string
	Amount          decimal.Decimal
	Flagged         bool
	FlagReason      *string
	ConfidenceScore *float64
	Status          models.TransactionStatus
}

// StatementServicer defines statement intake and ingestion completion.
type StatementServicer interface {
	IngestStatement(userID, fileName string, size int64, file io.Reader) (*models.Statement, *ingestion.Task, error)
	CompleteIngestion(statementID string, rows []ExtractedTransaction) (*models.Statement, error)
	Await(ctx context.Context, userID, statementID string) (*models.Statement, error)
	GetStatement(userID, statementID string) (*models.Statement, error)
	ListStatements(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error)
	ListPending() ([]models.Statement, error)
	GetStatementFile(statementID string) (*models.Statement, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
