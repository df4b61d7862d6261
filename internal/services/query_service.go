package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
)

// queryService builds read-only snapshots of the reviewer's transactions.
type queryService struct {
	db *gorm.DB
}

// NewQueryService creates a new QueryServicer.
func NewQueryService(db *gorm.DB) QueryServicer {
	return &queryService{db: db}
}

// List filters, searches and sorts the reviewer's transactions and returns
// one page of the result. Rows that compare equal keep insertion order.
// Filtering runs over the whole working set before paging, so set
// relations between filters hold across all pages, not within one page.
func (s *queryService) List(userID string, query ListQuery) (*pagination.PageResponse[models.Transaction], error) {
	query.defaults()

	q := s.db.Where("user_id = ?", userID)
	if query.Filter == FilterFlagged {
		q = q.Where("flagged = ?", true)
	}

	var transactions []models.Transaction
	if err := q.Order("created_at ASC").Order("position ASC").Order("id ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if term := strings.TrimSpace(query.Search); term != "" {
		transactions = searchTransactions(transactions, term)
	}
	sortTransactions(transactions, query.Sort, query.Direction)

	result := pagination.Slice(transactions, query.PageRequest)
	return &result, nil
}

// GetTransaction returns one of the reviewer's transactions.
func (s *queryService) GetTransaction(userID, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

// ListEscalated returns the transactions waiting for human review, newest
// first.
func (s *queryService) ListEscalated(userID string) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	if err := s.db.Where("user_id = ? AND status = ?", userID, models.TransactionStatusEscalated).
		Order("created_at ASC").Order("position ASC").Order("id ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	sortTransactions(transactions, SortByDate, SortDesc)
	return transactions, nil
}

func (q *ListQuery) defaults() {
	if q.Filter == "" {
		q.Filter = FilterAll
	}
	if q.Sort == "" {
		q.Sort = SortByDate
	}
	if q.Direction == "" {
		q.Direction = SortDesc
	}
}

// searchTransactions keeps rows whose merchant, description or dollar amount
// contains term, ignoring case.
func searchTransactions(transactions []models.Transaction, term string) []models.Transaction {
	term = strings.ToLower(term)
	printer := message.NewPrinter(language.English)

	matched := transactions[:0:0]
	for _, txn := range transactions {
		if strings.Contains(strings.ToLower(txn.Merchant), term) ||
			strings.Contains(strings.ToLower(txn.Description), term) ||
			strings.Contains(formatUSD(printer, txn.Amount), term) {
			matched = append(matched, txn)
		}
	}
	return matched
}

// formatUSD renders amount the way a US statement shows it, e.g. $1,234.56
// or -$245.00.
func formatUSD(printer *message.Printer, amount decimal.Decimal) string {
	rounded := amount.Round(2)
	abs := rounded.Abs()
	whole := abs.IntPart()
	cents := abs.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()

	s := "$" + printer.Sprintf("%d", whole) + fmt.Sprintf(".%02d", cents)
	if rounded.Sign() < 0 {
		s = "-" + s
	}
	return s
}

// sortTransactions orders transactions in place. The sort is stable so rows
// with equal keys stay in the order they were loaded.
func sortTransactions(transactions []models.Transaction, field SortField, direction SortDirection) {
	var compare func(a, b *models.Transaction) int
	switch field {
	case SortByMerchant:
		collator := collate.New(language.English)
		compare = func(a, b *models.Transaction) int {
			return collator.CompareString(a.Merchant, b.Merchant)
		}
	case SortByAmount:
		compare = func(a, b *models.Transaction) int {
			return a.Amount.Cmp(b.Amount)
		}
	default:
		compare = func(a, b *models.Transaction) int {
			return a.Date.Compare(b.Date)
		}
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		c := compare(&transactions[i], &transactions[j])
		if direction == SortAsc {
			return c < 0
		}
		return c > 0
	})
}
