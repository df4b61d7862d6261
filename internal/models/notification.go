package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType is the channel used to reach the customer.
type NotificationType string

const (
	NotificationTypeCall  NotificationType = "call"
	NotificationTypeEmail NotificationType = "email"
	NotificationTypeSMS   NotificationType = "sms"
)

// NotificationStatus is the recorded delivery state of a notification.
type NotificationStatus string

const (
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusAwaiting  NotificationStatus = "awaiting"
	NotificationStatusEscalated NotificationStatus = "escalated"
)

// Notification records an attempt to alert the customer about a flagged
// transaction. Merchant and Amount are a snapshot taken when the
// notification was recorded.
type Notification struct {
	Base
	UserID        string             `gorm:"size:64;not null;index" json:"user_id"`
	TransactionID string             `gorm:"size:64;not null;index" json:"transaction_id"`
	Date          time.Time          `gorm:"not null" json:"date"`
	Type          NotificationType   `gorm:"type:varchar(8);not null" json:"type"`
	Status        NotificationStatus `gorm:"type:varchar(16);not null" json:"status"`
	Merchant      string             `json:"merchant"`
	Amount        decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"amount"`
	Attempts      int                `gorm:"not null;default:0" json:"attempts"`
}
