package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fraudreview/internal/ingestion"
	"fraudreview/internal/models"
)

// recordingDispatcher captures dispatched notifications instead of
// delivering them.
type recordingDispatcher struct {
	mu     sync.Mutex
	sent   []models.Notification
	reject bool
}

func (d *recordingDispatcher) Dispatch(n models.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.sent = append(d.sent, n)
	return true
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func (d *recordingDispatcher) last() models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent[len(d.sent)-1]
}

type statementFixture struct {
	svc           StatementServicer
	tracker       *ingestion.Tracker
	dispatcher    *recordingDispatcher
	notifications NotificationServicer
}

func newStatementFixture(t *testing.T, db *gorm.DB, autoNotify bool) *statementFixture {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	tracker := ingestion.NewTracker()
	notifications := NewNotificationService(db, dispatcher, nil, models.NotificationTypeSMS)
	svc := NewStatementService(db, tracker, notifications, nil, StatementConfig{
		UploadDir:         t.TempDir(),
		MaxUploadBytes:    1024,
		AutoNotifyFlagged: autoNotify,
	})
	return &statementFixture{svc: svc, tracker: tracker, dispatcher: dispatcher, notifications: notifications}
}

// extractedRows builds total rows of which the first flagged are flagged.
func extractedRows(total, flagged int) []ExtractedTransaction {
	rows := make([]ExtractedTransaction, total)
	for i := range rows {
		rows[i] = ExtractedTransaction{
			Date:        time.Date(2025, 3, 1+i%28, 0, 0, 0, 0, time.UTC),
			Merchant:    fmt.Sprintf("Merchant %d", i),
			Description: fmt.Sprintf("Line %d", i),
			Amount:      decimal.NewFromInt(int64(10 + i)),
		}
		if i < flagged {
			reason := "Unusual amount"
			score := 0.8
			rows[i].Flagged = true
			rows[i].FlagReason = &reason
			rows[i].ConfidenceScore = &score
		}
	}
	return rows
}

// ingestCompleted creates a statement for userID and completes it with the
// given counts.
func ingestCompleted(t *testing.T, db *gorm.DB, svc StatementServicer, userID string, total, flagged int) *models.Statement {
	t.Helper()
	stmt := &models.Statement{
		UserID:     userID,
		FileName:   fmt.Sprintf("statement_%d_%d.pdf", total, flagged),
		UploadDate: time.Now(),
		Status:     models.StatementStatusProcessing,
	}
	if err := db.Create(stmt).Error; err != nil {
		t.Fatalf("failed to create statement: %v", err)
	}
	completed, err := svc.CompleteIngestion(stmt.ID, extractedRows(total, flagged))
	if err != nil {
		t.Fatalf("failed to complete ingestion: %v", err)
	}
	return completed
}

func ids(transactions []models.Transaction) []string {
	out := make([]string, len(transactions))
	for i, txn := range transactions {
		out[i] = txn.ID
	}
	return out
}
