package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fraudreview/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a reviewer with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("reviewer%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a reviewer with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestStatement creates a statement still being processed.
func CreateTestStatement(t *testing.T, db *gorm.DB, userID string) *models.Statement {
	t.Helper()

	stmt := &models.Statement{
		UserID:     userID,
		FileName:   fmt.Sprintf("statement_%d.pdf", nextID()),
		UploadDate: time.Now(),
		Status:     models.StatementStatusProcessing,
	}
	if err := db.Create(stmt).Error; err != nil {
		t.Fatalf("failed to create test statement: %v", err)
	}
	return stmt
}

// CreateTestTransaction creates a pending transaction for the given amount.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, amount string, flagged bool) *models.Transaction {
	t.Helper()

	n := nextID()
	txn := &models.Transaction{
		UserID:      userID,
		Position:    int(n),
		Date:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(n%28)),
		Merchant:    fmt.Sprintf("Merchant %d", n),
		Description: fmt.Sprintf("Purchase %d", n),
		Amount:      decimal.RequireFromString(amount),
		Flagged:     flagged,
		Status:      models.TransactionStatusPending,
	}
	if flagged {
		reason := "Test flag"
		score := 0.9
		txn.FlagReason = &reason
		txn.ConfidenceScore = &score
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}

// CreateTestNotification creates a notification for txn with the given status.
func CreateTestNotification(t *testing.T, db *gorm.DB, txn *models.Transaction, status models.NotificationStatus) *models.Notification {
	t.Helper()

	n := &models.Notification{
		UserID:        txn.UserID,
		TransactionID: txn.ID,
		Date:          time.Now().Add(-time.Hour),
		Type:          models.NotificationTypeSMS,
		Status:        status,
		Merchant:      txn.Merchant,
		Amount:        txn.Amount,
		Attempts:      1,
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}

// SampleSet is the six-transaction review queue used across tests.
type SampleSet struct {
	Transactions  []models.Transaction
	Notifications []models.Notification
}

// SeedSampleSet inserts the six sample transactions (IDs "1" to "6") and
// their three notifications for userID. Seed it once per database; the IDs
// are fixed.
func SeedSampleSet(t *testing.T, db *gorm.DB, userID string) *SampleSet {
	t.Helper()

	flag := func(reason string, score float64) (*string, *float64) {
		return &reason, &score
	}
	day := func(d int) time.Time {
		return time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC)
	}

	r3, c3 := flag("Unusual purchase amount for this merchant", 0.78)
	r4, c4 := flag("Unusual location - transaction from unrecognized region", 0.92)
	r6, c6 := flag("Unrecognized merchant with high transaction value", 0.85)

	rows := []models.Transaction{
		{Base: models.Base{ID: "1"}, Date: day(28), Merchant: "Amazon", Description: "Amazon.com #A12B34CD5", Amount: decimal.RequireFromString("129.99"), Status: models.TransactionStatusApproved},
		{Base: models.Base{ID: "2"}, Date: day(25), Merchant: "Netflix", Description: "Netflix Subscription", Amount: decimal.RequireFromString("17.99"), Status: models.TransactionStatusApproved},
		{Base: models.Base{ID: "3"}, Date: day(22), Merchant: "Tech Gadget Store", Description: "Electronics Purchase", Amount: decimal.RequireFromString("899.99"), Flagged: true, FlagReason: r3, ConfidenceScore: c3, Status: models.TransactionStatusPending},
		{Base: models.Base{ID: "4"}, Date: day(20), Merchant: "Foreign Transaction LLC", Description: "Foreign Transaction", Amount: decimal.RequireFromString("245.00"), Flagged: true, FlagReason: r4, ConfidenceScore: c4, Status: models.TransactionStatusDisputed},
		{Base: models.Base{ID: "5"}, Date: day(18), Merchant: "Local Grocery", Description: "Groceries", Amount: decimal.RequireFromString("52.49"), Status: models.TransactionStatusApproved},
		{Base: models.Base{ID: "6"}, Date: day(15), Merchant: "Unknown Merchant", Description: "Online Purchase", Amount: decimal.RequireFromString("499.99"), Flagged: true, FlagReason: r6, ConfidenceScore: c6, Status: models.TransactionStatusEscalated},
	}

	base := time.Now().Add(-time.Hour)
	for i := range rows {
		rows[i].UserID = userID
		rows[i].Position = i
		rows[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("failed to seed transaction %s: %v", rows[i].ID, err)
		}
	}

	at := func(d, h, m int) time.Time {
		return time.Date(2025, 4, d, h, m, 0, 0, time.UTC)
	}
	notifications := []models.Notification{
		{Base: models.Base{ID: "1"}, TransactionID: "3", Date: at(22, 14, 30), Type: models.NotificationTypeCall, Status: models.NotificationStatusDelivered, Merchant: "Tech Gadget Store", Amount: decimal.RequireFromString("899.99")},
		{Base: models.Base{ID: "2"}, TransactionID: "4", Date: at(20, 10, 15), Type: models.NotificationTypeSMS, Status: models.NotificationStatusAwaiting, Merchant: "Foreign Transaction LLC", Amount: decimal.RequireFromString("245.00")},
		{Base: models.Base{ID: "3"}, TransactionID: "6", Date: at(15, 16, 45), Type: models.NotificationTypeEmail, Status: models.NotificationStatusEscalated, Merchant: "Unknown Merchant", Amount: decimal.RequireFromString("499.99")},
	}
	for i := range notifications {
		notifications[i].UserID = userID
		notifications[i].Attempts = 1
		notifications[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.Create(&notifications[i]).Error; err != nil {
			t.Fatalf("failed to seed notification %s: %v", notifications[i].ID, err)
		}
	}

	return &SampleSet{Transactions: rows, Notifications: notifications}
}

// PDFBytes returns a minimal payload that content sniffing reports as PDF.
func PDFBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}
