package services

import (
	"gorm.io/gorm"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
)

// statsService derives aggregate projections from the current store. Nothing
// it returns is persisted.
type statsService struct {
	db *gorm.DB
}

// NewStatsService creates a new StatsServicer.
func NewStatsService(db *gorm.DB) StatsServicer {
	return &statsService{db: db}
}

// Stats returns the dashboard counters.
//
// DisputesResolved counts transactions that are approved now and whose
// status ledger shows them entering or leaving disputed or escalated.
func (s *statsService) Stats(userID string) (*DashboardStats, error) {
	stats := &DashboardStats{}

	if err := s.db.Model(&models.Statement{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalStatements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalTransactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND flagged = ?", userID, true).
		Count(&stats.FlaggedTransactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	reviewStatuses := []models.TransactionStatus{
		models.TransactionStatusDisputed,
		models.TransactionStatusEscalated,
	}
	reviewed := s.db.Model(&models.StatusChange{}).
		Select("transaction_id").
		Where("user_id = ?", userID).
		Where(s.db.Where("to_status IN ?", reviewStatuses).Or("from_status IN ?", reviewStatuses))
	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND status = ?", userID, models.TransactionStatusApproved).
		Where("id IN (?)", reviewed).
		Count(&stats.DisputesResolved).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return stats, nil
}

// Summary counts the reviewer's transactions per status.
func (s *statsService) Summary(userID string) (*ReviewSummary, error) {
	var rows []struct {
		Status models.TransactionStatus
		Count  int64
	}
	if err := s.db.Model(&models.Transaction{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &ReviewSummary{}
	for _, row := range rows {
		summary.Total += row.Count
		switch row.Status {
		case models.TransactionStatusPending:
			summary.Pending = row.Count
		case models.TransactionStatusApproved:
			summary.Approved = row.Count
		case models.TransactionStatusDisputed:
			summary.Disputed = row.Count
		case models.TransactionStatusEscalated:
			summary.Escalated = row.Count
		}
	}

	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND flagged = ?", userID, true).
		Count(&summary.Flagged).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return summary, nil
}

// StatementRollups returns live per-statement counts, newest upload first.
// Statements still processing report zero.
func (s *statsService) StatementRollups(userID string) ([]StatementRollup, error) {
	var statements []models.Statement
	if err := s.db.Where("user_id = ?", userID).
		Order("upload_date DESC").Order("id DESC").
		Find(&statements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var counts []struct {
		StatementID      string
		TransactionCount int64
		FlaggedCount     int64
	}
	if err := s.db.Model(&models.Transaction{}).
		Select("statement_id, COUNT(*) AS transaction_count, SUM(CASE WHEN flagged THEN 1 ELSE 0 END) AS flagged_count").
		Where("user_id = ? AND statement_id IS NOT NULL", userID).
		Group("statement_id").
		Scan(&counts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byStatement := make(map[string]int, len(counts))
	for i, c := range counts {
		byStatement[c.StatementID] = i
	}

	rollups := make([]StatementRollup, 0, len(statements))
	for _, stmt := range statements {
		rollup := StatementRollup{
			StatementID: stmt.ID,
			FileName:    stmt.FileName,
			Status:      stmt.Status,
		}
		if i, ok := byStatement[stmt.ID]; ok {
			rollup.TransactionCount = counts[i].TransactionCount
			rollup.FlaggedCount = counts[i].FlaggedCount
		}
		rollups = append(rollups, rollup)
	}
	return rollups, nil
}
