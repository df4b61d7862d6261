package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
	"fraudreview/internal/services"
)

// --- mock review services ---

type mockQueryService struct {
	listFn           func(userID string, query services.ListQuery) (*pagination.PageResponse[models.Transaction], error)
	getTransactionFn func(userID, transactionID string) (*models.Transaction, error)
	listEscalatedFn  func(userID string) ([]models.Transaction, error)
}

func (m *mockQueryService) List(userID string, query services.ListQuery) (*pagination.PageResponse[models.Transaction], error) {
	if m.listFn != nil {
		return m.listFn(userID, query)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockQueryService) GetTransaction(userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionFn != nil {
		return m.getTransactionFn(userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}, UserID: userID}, nil
}

func (m *mockQueryService) ListEscalated(userID string) ([]models.Transaction, error) {
	if m.listEscalatedFn != nil {
		return m.listEscalatedFn(userID)
	}
	return []models.Transaction{}, nil
}

type mockWorkflowService struct {
	approveFn  func(userID, transactionID string) (*models.Transaction, error)
	disputeFn  func(userID, transactionID string) (*models.Transaction, error)
	escalateFn func(userID, transactionID string, retrigger bool) (*services.EscalationResult, error)
	historyFn  func(userID, transactionID string) ([]models.StatusChange, error)
}

func (m *mockWorkflowService) Approve(userID, transactionID string) (*models.Transaction, error) {
	if m.approveFn != nil {
		return m.approveFn(userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}, Status: models.TransactionStatusApproved}, nil
}

func (m *mockWorkflowService) Dispute(userID, transactionID string) (*models.Transaction, error) {
	if m.disputeFn != nil {
		return m.disputeFn(userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}, Status: models.TransactionStatusDisputed}, nil
}

func (m *mockWorkflowService) Escalate(userID, transactionID string, retrigger bool) (*services.EscalationResult, error) {
	if m.escalateFn != nil {
		return m.escalateFn(userID, transactionID, retrigger)
	}
	return &services.EscalationResult{
		Transaction: models.Transaction{Base: models.Base{ID: transactionID}, Status: models.TransactionStatusEscalated},
	}, nil
}

func (m *mockWorkflowService) History(userID, transactionID string) ([]models.StatusChange, error) {
	if m.historyFn != nil {
		return m.historyFn(userID, transactionID)
	}
	return []models.StatusChange{}, nil
}

type mockStatsService struct {
	statsFn   func(userID string) (*services.DashboardStats, error)
	summaryFn func(userID string) (*services.ReviewSummary, error)
	rollupsFn func(userID string) ([]services.StatementRollup, error)
}

func (m *mockStatsService) Stats(userID string) (*services.DashboardStats, error) {
	if m.statsFn != nil {
		return m.statsFn(userID)
	}
	return &services.DashboardStats{}, nil
}

func (m *mockStatsService) Summary(userID string) (*services.ReviewSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(userID)
	}
	return &services.ReviewSummary{}, nil
}

func (m *mockStatsService) StatementRollups(userID string) ([]services.StatementRollup, error) {
	if m.rollupsFn != nil {
		return m.rollupsFn(userID)
	}
	return []services.StatementRollup{}, nil
}

var (
	_ services.QueryServicer    = (*mockQueryService)(nil)
	_ services.WorkflowServicer = (*mockWorkflowService)(nil)
	_ services.StatsServicer    = (*mockStatsService)(nil)
)

type transactionMocks struct {
	query    *mockQueryService
	workflow *mockWorkflowService
	stats    *mockStatsService
	audit    *mockAuditService
}

func newTransactionMocks() *transactionMocks {
	return &transactionMocks{
		query:    &mockQueryService{},
		workflow: &mockWorkflowService{},
		stats:    &mockStatsService{},
		audit:    &mockAuditService{},
	}
}

func setupTransactionRouter(m *transactionMocks) *gin.Engine {
	handler := NewTransactionHandler(m.query, m.workflow, m.stats, m.audit)
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/transactions", handler.ListTransactions)
	auth.GET("/transactions/summary", handler.GetSummary)
	auth.GET("/transactions/:id", handler.GetTransaction)
	auth.GET("/transactions/:id/history", handler.GetHistory)
	auth.POST("/transactions/:id/approve", handler.Approve)
	auth.POST("/transactions/:id/dispute", handler.Dispute)
	auth.POST("/transactions/:id/escalate", handler.Escalate)
	auth.GET("/review/escalated", handler.ListEscalated)
	return r
}

func TestTransactionHandler_ListTransactions(t *testing.T) {
	t.Run("binds filter, search, sort and paging", func(t *testing.T) {
		m := newTransactionMocks()
		var got services.ListQuery
		m.query.listFn = func(userID string, query services.ListQuery) (*pagination.PageResponse[models.Transaction], error) {
			if userID != testUserID {
				t.Errorf("expected user %s, got %s", testUserID, userID)
			}
			got = query
			resp := pagination.NewPageResponse([]models.Transaction{
				{Base: models.Base{ID: "1"}, Merchant: "Amazon", Amount: decimal.RequireFromString("245.00")},
			}, 2, 5, 6)
			return &resp, nil
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "GET", "/transactions?filter=flagged&search=amazon&sort=amount&direction=asc&page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Filter != services.FilterFlagged || got.Search != "amazon" ||
			got.Sort != services.SortByAmount || got.Direction != services.SortAsc {
			t.Errorf("unexpected query: %+v", got)
		}
		if got.Page != 2 || got.PageSize != 5 {
			t.Errorf("expected page 2 size 5, got %d/%d", got.Page, got.PageSize)
		}
		result := parseJSON(t, rec)
		if result["total_items"].(float64) != 6 {
			t.Errorf("expected total_items 6, got %v", result["total_items"])
		}
		data := result["data"].([]interface{})
		if data[0].(map[string]interface{})["amount"] != "245" {
			t.Errorf("expected decimal amount serialized as string, got %v", data[0].(map[string]interface{})["amount"])
		}
	})

	t.Run("returns 400 on unknown sort field", func(t *testing.T) {
		r := setupTransactionRouter(newTransactionMocks())

		rec := doRequest(r, "GET", "/transactions?sort=confidence", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown filter", func(t *testing.T) {
		r := setupTransactionRouter(newTransactionMocks())

		rec := doRequest(r, "GET", "/transactions?filter=escalated", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		m := newTransactionMocks()
		handler := NewTransactionHandler(m.query, m.workflow, m.stats, m.audit)
		r := gin.New()
		r.GET("/transactions", handler.ListTransactions)

		rec := doRequest(r, "GET", "/transactions", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler_GetTransaction(t *testing.T) {
	t.Run("returns 404 when missing", func(t *testing.T) {
		m := newTransactionMocks()
		m.query.getTransactionFn = func(_, _ string) (*models.Transaction, error) {
			return nil, apperrors.ErrTransactionNotFound
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "GET", "/transactions/999", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_NOT_FOUND")
	})

	t.Run("summary is not treated as an id", func(t *testing.T) {
		m := newTransactionMocks()
		m.stats.summaryFn = func(_ string) (*services.ReviewSummary, error) {
			return &services.ReviewSummary{Total: 6, Flagged: 3, Pending: 1, Approved: 3, Disputed: 1, Escalated: 1}, nil
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "GET", "/transactions/summary", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["total"].(float64) != 6 || result["approved"].(float64) != 3 {
			t.Errorf("unexpected summary: %v", result)
		}
	})
}

func TestTransactionHandler_ReviewActions(t *testing.T) {
	t.Run("approve returns the updated transaction and audits", func(t *testing.T) {
		m := newTransactionMocks()
		var gotID string
		m.workflow.approveFn = func(_, id string) (*models.Transaction, error) {
			gotID = id
			return &models.Transaction{Base: models.Base{ID: id}, Status: models.TransactionStatusApproved}, nil
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "POST", "/transactions/2/approve", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotID != "2" {
			t.Errorf("expected transaction 2, got %q", gotID)
		}
		tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
		if tx["status"] != "approved" || tx["flagged"] != false {
			t.Errorf("unexpected transaction: %v", tx)
		}
		if len(m.audit.actions) != 1 || m.audit.actions[0] != "APPROVE_TRANSACTION" {
			t.Errorf("unexpected audit actions: %v", m.audit.actions)
		}
	})

	t.Run("dispute maps not found", func(t *testing.T) {
		m := newTransactionMocks()
		m.workflow.disputeFn = func(_, _ string) (*models.Transaction, error) {
			return nil, apperrors.ErrTransactionNotFound
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "POST", "/transactions/nope/dispute", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if len(m.audit.actions) != 0 {
			t.Errorf("failed actions should not be audited, got %v", m.audit.actions)
		}
	})

	t.Run("escalate without body does not retrigger", func(t *testing.T) {
		m := newTransactionMocks()
		retriggered := true
		m.workflow.escalateFn = func(_, id string, retrigger bool) (*services.EscalationResult, error) {
			retriggered = retrigger
			return &services.EscalationResult{
				Transaction:  models.Transaction{Base: models.Base{ID: id}, Status: models.TransactionStatusEscalated},
				Notification: models.Notification{Base: models.Base{ID: "2"}, Status: models.NotificationStatusDelivered},
			}, nil
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "POST", "/transactions/4/escalate", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if retriggered {
			t.Error("expected retrigger=false by default")
		}
		result := parseJSON(t, rec)
		if result["notification"].(map[string]interface{})["id"] != "2" {
			t.Errorf("expected existing notification 2, got %v", result["notification"])
		}
	})

	t.Run("escalate passes retrigger", func(t *testing.T) {
		m := newTransactionMocks()
		var retriggered bool
		m.workflow.escalateFn = func(_, id string, retrigger bool) (*services.EscalationResult, error) {
			retriggered = retrigger
			return &services.EscalationResult{Transaction: models.Transaction{Base: models.Base{ID: id}}, Retriggered: retrigger}, nil
		}
		r := setupTransactionRouter(m)

		rec := doRequest(r, "POST", "/transactions/4/escalate", `{"retrigger":true}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !retriggered {
			t.Error("expected retrigger=true")
		}
	})

	t.Run("escalate rejects malformed body", func(t *testing.T) {
		r := setupTransactionRouter(newTransactionMocks())

		rec := doRequest(r, "POST", "/transactions/4/escalate", `{"retrigger":`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestTransactionHandler_HistoryAndEscalated(t *testing.T) {
	m := newTransactionMocks()
	m.workflow.historyFn = func(_, _ string) ([]models.StatusChange, error) {
		return []models.StatusChange{
			{ToStatus: models.TransactionStatusPending},
			{FromStatus: models.TransactionStatusPending, ToStatus: models.TransactionStatusEscalated},
		}, nil
	}
	m.query.listEscalatedFn = func(_ string) ([]models.Transaction, error) {
		return []models.Transaction{{Base: models.Base{ID: "3"}}, {Base: models.Base{ID: "6"}}}, nil
	}
	r := setupTransactionRouter(m)

	rec := doRequest(r, "GET", "/transactions/3/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if history := parseJSON(t, rec)["history"].([]interface{}); len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}

	rec = doRequest(r, "GET", "/review/escalated", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if txns := parseJSON(t, rec)["transactions"].([]interface{}); len(txns) != 2 {
		t.Errorf("expected 2 escalated transactions, got %d", len(txns))
	}
}
