package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/ingestion"
	"fraudreview/internal/logger"
	"fraudreview/internal/metrics"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
	"fraudreview/internal/uuid"
)

// sniffLen is how many leading bytes are inspected to detect the file type.
const sniffLen = 512

// StatementConfig configures statement intake.
type StatementConfig struct {
	UploadDir         string
	MaxUploadBytes    int64
	AutoNotifyFlagged bool
}

// statementService accepts uploaded statements and applies the results the
// external parsing pipeline reports back.
type statementService struct {
	db            *gorm.DB
	tracker       *ingestion.Tracker
	notifications NotificationServicer
	metrics       metrics.Recorder
	config        StatementConfig
	now           func() time.Time
}

// NewStatementService creates a new StatementServicer.
func NewStatementService(
	db *gorm.DB,
	tracker *ingestion.Tracker,
	notifications NotificationServicer,
	recorder metrics.Recorder,
	config StatementConfig,
) StatementServicer {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &statementService{
		db:            db,
		tracker:       tracker,
		notifications: notifications,
		metrics:       recorder,
		config:        config,
		now:           time.Now,
	}
}

// IngestStatement stores an uploaded PDF and creates its statement in the
// processing state. The returned task resolves when CompleteIngestion runs.
func (s *statementService) IngestStatement(userID, fileName string, size int64, file io.Reader) (*models.Statement, *ingestion.Task, error) {
	if size > s.config.MaxUploadBytes {
		return nil, nil, apperrors.ErrFileTooLarge
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, nil, apperrors.ErrUnsupportedFileType
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	head = head[:n]
	if http.DetectContentType(head) != "application/pdf" {
		return nil, nil, apperrors.ErrUnsupportedFileType
	}

	stmt := &models.Statement{
		Base:       models.Base{ID: uuid.New()},
		UserID:     userID,
		FileName:   filepath.Base(fileName),
		UploadDate: s.now(),
		Status:     models.StatementStatusProcessing,
	}

	written, path, err := s.store(stmt.ID, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		return nil, nil, err
	}
	stmt.FileSize = written
	stmt.StoragePath = path

	if err := s.db.Create(stmt).Error; err != nil {
		s.discard(path)
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	task := s.tracker.Track(stmt.ID)
	logger.Get().Infow("statement uploaded",
		"statement_id", stmt.ID,
		"user_id", userID,
		"file_size", written,
	)
	return stmt, task, nil
}

// store writes the upload to UploadDir, enforcing the size limit on the
// bytes actually received.
func (s *statementService) store(statementID string, r io.Reader) (int64, string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o750); err != nil {
		return 0, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	path := filepath.Join(s.config.UploadDir, statementID+".pdf")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return 0, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.config.MaxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		s.discard(path)
		return 0, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	case closeErr != nil:
		s.discard(path)
		return 0, "", apperrors.Wrap(apperrors.ErrInternalServer, closeErr)
	case written > s.config.MaxUploadBytes:
		s.discard(path)
		return 0, "", apperrors.ErrFileTooLarge
	}
	return written, path, nil
}

func (s *statementService) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Get().Warnw("failed to remove statement file", "path", path, "error", err)
	}
}

// CompleteIngestion inserts the extracted transactions and marks the
// statement completed with its counts, all in one DB transaction. A statement
// completes exactly once.
func (s *statementService) CompleteIngestion(statementID string, rows []ExtractedTransaction) (*models.Statement, error) {
	var stmt models.Statement
	var transactions []models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", statementID).
			First(&stmt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrStatementNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if stmt.Status == models.StatementStatusCompleted {
			return apperrors.ErrStatementAlreadyCompleted
		}

		now := s.now()
		transactions = make([]models.Transaction, len(rows))
		flagged := 0
		for i, row := range rows {
			transactions[i] = newIngestedTransaction(&stmt, i, row)
			if transactions[i].Flagged {
				flagged++
			}
		}

		if len(transactions) > 0 {
			if err := tx.CreateInBatches(&transactions, 100).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			ledger := make([]models.StatusChange, len(transactions))
			for i, txn := range transactions {
				ledger[i] = models.StatusChange{
					UserID:        stmt.UserID,
					TransactionID: txn.ID,
					ToStatus:      txn.Status,
					ChangedAt:     now,
				}
			}
			if err := tx.CreateInBatches(&ledger, 100).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		stmt.Status = models.StatementStatusCompleted
		stmt.TransactionCount = len(transactions)
		stmt.FlaggedCount = flagged
		stmt.CompletedAt = &now
		if err := tx.Model(&stmt).Updates(map[string]interface{}{
			"status":            stmt.Status,
			"transaction_count": stmt.TransactionCount,
			"flagged_count":     stmt.FlaggedCount,
			"completed_at":      stmt.CompletedAt,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordIngestion(stmt.TransactionCount, stmt.FlaggedCount)
	if s.config.AutoNotifyFlagged {
		s.notifyFlagged(transactions)
	}
	s.tracker.Resolve(stmt)

	logger.Get().Infow("statement ingestion completed",
		"statement_id", stmt.ID,
		"transactions", stmt.TransactionCount,
		"flagged", stmt.FlaggedCount,
	)
	return &stmt, nil
}

func newIngestedTransaction(stmt *models.Statement, position int, row ExtractedTransaction) models.Transaction {
	txn := models.Transaction{
		UserID:      stmt.UserID,
		StatementID: &stmt.ID,
		Position:    position,
		Date:        row.Date,
		Merchant:    row.Merchant,
		Description: row.Description,
		Amount:      row.Amount,
		Flagged:     row.Flagged,
		Status:      row.Status,
	}
	if row.Flagged {
		txn.FlagReason = row.FlagReason
		txn.ConfidenceScore = row.ConfidenceScore
	}
	if !txn.Status.Valid() {
		txn.Status = models.TransactionStatusPending
	}
	return txn
}

// notifyFlagged records a flag notification for each flagged row. Failures
// are logged; the ingestion itself has already committed.
func (s *statementService) notifyFlagged(transactions []models.Transaction) {
	for _, txn := range transactions {
		if !txn.Flagged {
			continue
		}
		if _, err := s.notifications.RecordFlagNotification(txn.UserID, txn.ID, "", txn.Merchant, txn.Amount); err != nil {
			logger.Get().Errorw("failed to record flag notification",
				"transaction_id", txn.ID,
				"error", err,
			)
		}
	}
}

// Await blocks until the statement completes or ctx is done. When ctx ends
// first the statement is returned in its current state; a processing
// statement is a valid answer, not an error.
func (s *statementService) Await(ctx context.Context, userID, statementID string) (*models.Statement, error) {
	stmt, err := s.GetStatement(userID, statementID)
	if err != nil || stmt.Status == models.StatementStatusCompleted {
		return stmt, err
	}

	task := s.tracker.Track(statementID)

	// Completion may have committed between the read above and Track.
	stmt, err = s.GetStatement(userID, statementID)
	if err != nil {
		return nil, err
	}
	if stmt.Status == models.StatementStatusCompleted {
		s.tracker.Resolve(*stmt)
		return stmt, nil
	}

	result, err := task.Wait(ctx)
	if err != nil {
		return stmt, nil
	}
	return &result, nil
}

// GetStatement returns one of the reviewer's statements.
func (s *statementService) GetStatement(userID, statementID string) (*models.Statement, error) {
	var stmt models.Statement
	if err := s.db.Where("id = ? AND user_id = ?", statementID, userID).First(&stmt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStatementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &stmt, nil
}

// ListStatements returns a page of the reviewer's statements, newest first.
func (s *statementService) ListStatements(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error) {
	page.Defaults()

	base := s.db.Model(&models.Statement{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var statements []models.Statement
	if err := base.Scopes(pagination.Paginate(page)).
		Order("upload_date DESC").Order("id DESC").
		Find(&statements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(statements, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListPending returns every statement still waiting on the pipeline, oldest
// upload first.
func (s *statementService) ListPending() ([]models.Statement, error) {
	statements := []models.Statement{}
	if err := s.db.Where("status = ?", models.StatementStatusProcessing).
		Order("upload_date ASC").Order("id ASC").
		Find(&statements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return statements, nil
}

// GetStatementFile returns a statement with its stored file path for the
// pipeline to download.
func (s *statementService) GetStatementFile(statementID string) (*models.Statement, error) {
	var stmt models.Statement
	if err := s.db.Where("id = ?", statementID).First(&stmt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStatementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if stmt.StoragePath == "" {
		return nil, apperrors.WithMessage(apperrors.ErrStatementNotFound, fmt.Sprintf("Statement %s has no stored file", statementID))
	}
	return &stmt, nil
}
