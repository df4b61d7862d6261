package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fraudreview/internal/errors"
	"fraudreview/internal/ingestion"
	"fraudreview/internal/models"
	"fraudreview/internal/pagination"
	"fraudreview/internal/services"
)

type mockStatementService struct {
	ingestFn   func(userID, fileName string, size int64, file io.Reader) (*models.Statement, *ingestion.Task, error)
	completeFn func(statementID string, rows []services.ExtractedTransaction) (*models.Statement, error)
	awaitFn    func(ctx context.Context, userID, statementID string) (*models.Statement, error)
	getFn      func(userID, statementID string) (*models.Statement, error)
	listFn     func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error)
	pendingFn  func() ([]models.Statement, error)
	fileFn     func(statementID string) (*models.Statement, error)
}

func (m *mockStatementService) IngestStatement(userID, fileName string, size int64, file io.Reader) (*models.Statement, *ingestion.Task, error) {
	if m.ingestFn != nil {
		return m.ingestFn(userID, fileName, size, file)
	}
	return &models.Statement{FileName: fileName, Status: models.StatementStatusProcessing}, nil, nil
}

func (m *mockStatementService) CompleteIngestion(statementID string, rows []services.ExtractedTransaction) (*models.Statement, error) {
	if m.completeFn != nil {
		return m.completeFn(statementID, rows)
	}
	return &models.Statement{Base: models.Base{ID: statementID}, Status: models.StatementStatusCompleted}, nil
}

func (m *mockStatementService) Await(ctx context.Context, userID, statementID string) (*models.Statement, error) {
	if m.awaitFn != nil {
		return m.awaitFn(ctx, userID, statementID)
	}
	return &models.Statement{Base: models.Base{ID: statementID}}, nil
}

func (m *mockStatementService) GetStatement(userID, statementID string) (*models.Statement, error) {
	if m.getFn != nil {
		return m.getFn(userID, statementID)
	}
	return &models.Statement{Base: models.Base{ID: statementID}}, nil
}

func (m *mockStatementService) ListStatements(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error) {
	if m.listFn != nil {
		return m.listFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Statement{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockStatementService) ListPending() ([]models.Statement, error) {
	if m.pendingFn != nil {
		return m.pendingFn()
	}
	return []models.Statement{}, nil
}

func (m *mockStatementService) GetStatementFile(statementID string) (*models.Statement, error) {
	if m.fileFn != nil {
		return m.fileFn(statementID)
	}
	return nil, apperrors.ErrStatementNotFound
}

var _ services.StatementServicer = (*mockStatementService)(nil)

func setupStatementRouter(svc *mockStatementService, audit *mockAuditService, maxUpload int64) *gin.Engine {
	handler := NewStatementHandler(svc, audit, maxUpload)
	stats := NewStatsHandler(&mockStatsService{})
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/statements", handler.UploadStatement)
	auth.GET("/statements", handler.ListStatements)
	auth.GET("/statements/rollups", stats.GetStatementRollups)
	auth.GET("/statements/:id", handler.GetStatement)
	return r
}

func multipartRequest(t *testing.T, field, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/statements", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

func TestStatementHandler_UploadStatement(t *testing.T) {
	t.Run("returns 202 with the processing statement", func(t *testing.T) {
		var gotName string
		var gotBody []byte
		svc := &mockStatementService{
			ingestFn: func(userID, fileName string, _ int64, file io.Reader) (*models.Statement, *ingestion.Task, error) {
				gotName = fileName
				gotBody, _ = io.ReadAll(file)
				return &models.Statement{
					Base:     models.Base{ID: "s1"},
					UserID:   userID,
					FileName: fileName,
					Status:   models.StatementStatusProcessing,
				}, nil, nil
			},
		}
		audit := &mockAuditService{}
		r := setupStatementRouter(svc, audit, 1024)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "file", "march.pdf", samplePDF))

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotName != "march.pdf" || !bytes.Equal(gotBody, samplePDF) {
			t.Errorf("service got %q with %d bytes", gotName, len(gotBody))
		}
		stmt := parseJSON(t, rec)["statement"].(map[string]interface{})
		if stmt["status"] != "processing" {
			t.Errorf("expected processing, got %v", stmt["status"])
		}
		if len(audit.actions) != 1 || audit.actions[0] != "UPLOAD_STATEMENT" {
			t.Errorf("unexpected audit actions: %v", audit.actions)
		}
	})

	t.Run("returns 400 without a file field", func(t *testing.T) {
		r := setupStatementRouter(&mockStatementService{}, &mockAuditService{}, 1024)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "document", "march.pdf", samplePDF))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("maps unsupported type from the service", func(t *testing.T) {
		svc := &mockStatementService{
			ingestFn: func(_, _ string, _ int64, _ io.Reader) (*models.Statement, *ingestion.Task, error) {
				return nil, nil, apperrors.ErrUnsupportedFileType
			},
		}
		r := setupStatementRouter(svc, &mockAuditService{}, 1024)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "file", "notes.txt", []byte("hello")))

		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("expected 415, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNSUPPORTED_FILE_TYPE")
	})

	t.Run("rejects bodies far above the limit before parsing", func(t *testing.T) {
		called := false
		svc := &mockStatementService{
			ingestFn: func(_, _ string, _ int64, _ io.Reader) (*models.Statement, *ingestion.Task, error) {
				called = true
				return &models.Statement{}, nil, nil
			},
		}
		r := setupStatementRouter(svc, &mockAuditService{}, 16)

		huge := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte{'x'}, multipartOverhead+1024)...)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "file", "big.pdf", huge))

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", rec.Code)
		}
		if called {
			t.Error("service should not be called")
		}
	})
}

func TestStatementHandler_GetStatement(t *testing.T) {
	t.Run("without wait reads the current state", func(t *testing.T) {
		awaited := false
		svc := &mockStatementService{
			awaitFn: func(_ context.Context, _, _ string) (*models.Statement, error) {
				awaited = true
				return &models.Statement{}, nil
			},
			getFn: func(_, id string) (*models.Statement, error) {
				return &models.Statement{Base: models.Base{ID: id}, Status: models.StatementStatusProcessing}, nil
			},
		}
		r := setupStatementRouter(svc, &mockAuditService{}, 1024)

		rec := doRequest(r, "GET", "/statements/s1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if awaited {
			t.Error("Await should not be called without wait")
		}
	})

	t.Run("wait is capped and passed as a deadline", func(t *testing.T) {
		var remaining time.Duration
		svc := &mockStatementService{
			awaitFn: func(ctx context.Context, _, id string) (*models.Statement, error) {
				deadline, ok := ctx.Deadline()
				if !ok {
					t.Error("expected a deadline")
				}
				remaining = time.Until(deadline)
				return &models.Statement{Base: models.Base{ID: id}, Status: models.StatementStatusCompleted}, nil
			},
		}
		r := setupStatementRouter(svc, &mockAuditService{}, 1024)

		rec := doRequest(r, "GET", "/statements/s1?wait=10m", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if remaining <= 0 || remaining > maxStatementWait {
			t.Errorf("expected deadline within %s, got %s", maxStatementWait, remaining)
		}
		stmt := parseJSON(t, rec)["statement"].(map[string]interface{})
		if stmt["status"] != "completed" {
			t.Errorf("expected completed, got %v", stmt["status"])
		}
	})

	t.Run("returns 400 on a malformed wait", func(t *testing.T) {
		r := setupStatementRouter(&mockStatementService{}, &mockAuditService{}, 1024)

		rec := doRequest(r, "GET", "/statements/s1?wait=soon", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rollups route is not an id", func(t *testing.T) {
		r := setupStatementRouter(&mockStatementService{
			getFn: func(_, _ string) (*models.Statement, error) {
				t.Error("GetStatement should not be called")
				return nil, apperrors.ErrStatementNotFound
			},
		}, &mockAuditService{}, 1024)

		rec := doRequest(r, "GET", "/statements/rollups", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestStatementHandler_ListStatements(t *testing.T) {
	var got pagination.PageRequest
	svc := &mockStatementService{
		listFn: func(_ string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error) {
			got = page
			resp := pagination.NewPageResponse([]models.Statement{{FileName: "a.pdf"}}, page.Page, page.PageSize, 1)
			return &resp, nil
		},
	}
	r := setupStatementRouter(svc, &mockAuditService{}, 1024)

	rec := doRequest(r, "GET", "/statements?page=1&page_size=10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.Page != 1 || got.PageSize != 10 {
		t.Errorf("unexpected page request: %+v", got)
	}

	rec = doRequest(r, "GET", "/statements?page_size=1000", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized page, got %d", rec.Code)
	}
}

// --- pipeline ---

func setupPipelineRouter(svc *mockStatementService) *gin.Engine {
	handler := NewPipelineHandler(svc)
	r := gin.New()
	r.GET("/pipeline/statements/pending", handler.ListPending)
	r.GET("/pipeline/statements/:id/file", handler.DownloadFile)
	r.POST("/pipeline/statements/:id/complete", handler.CompleteStatement)
	return r
}

func TestPipelineHandler_CompleteStatement(t *testing.T) {
	t.Run("converts extracted rows", func(t *testing.T) {
		var got []services.ExtractedTransaction
		svc := &mockStatementService{
			completeFn: func(id string, rows []services.ExtractedTransaction) (*models.Statement, error) {
				got = rows
				return &models.Statement{Base: models.Base{ID: id}, Status: models.StatementStatusCompleted, TransactionCount: len(rows), FlaggedCount: 1}, nil
			},
		}
		r := setupPipelineRouter(svc)

		body := `{"transactions":[
			{"date":"2024-03-15","merchant":"Amazon","description":"Online purchase","amount":"245.00","flagged":true,"flag_reason":"Unusual amount","confidence_score":0.85},
			{"date":"2024-03-14","merchant":"Starbucks","amount":5.75}
		]}`
		rec := doRequest(r, "POST", "/pipeline/statements/s1/complete", body)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(got))
		}
		if got[0].Merchant != "Amazon" || !got[0].Flagged || got[0].FlagReason == nil || *got[0].ConfidenceScore != 0.85 {
			t.Errorf("unexpected first row: %+v", got[0])
		}
		if got[0].Date.Format("2006-01-02") != "2024-03-15" {
			t.Errorf("unexpected date: %s", got[0].Date)
		}
		if got[1].Amount.String() != "5.75" {
			t.Errorf("expected numeric amount 5.75, got %s", got[1].Amount)
		}
	})

	t.Run("accepts blank and long merchant text", func(t *testing.T) {
		var got []services.ExtractedTransaction
		svc := &mockStatementService{
			completeFn: func(id string, rows []services.ExtractedTransaction) (*models.Statement, error) {
				got = rows
				return &models.Statement{Base: models.Base{ID: id}, Status: models.StatementStatusCompleted, TransactionCount: len(rows)}, nil
			},
		}
		r := setupPipelineRouter(svc)

		long := strings.Repeat("x", 300)
		body := `{"transactions":[
			{"date":"2025-04-20","merchant":"","amount":"10.00"},
			{"date":"2025-04-21","merchant":"` + long + `","description":"` + strings.Repeat("y", 800) + `","amount":"1.00"}
		]}`
		rec := doRequest(r, "POST", "/pipeline/statements/s1/complete", body)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(got) != 2 || got[0].Merchant != "" || got[1].Merchant != long {
			t.Errorf("merchant text was not passed through unchanged: %+v", got)
		}
	})

	t.Run("returns 400 on confidence outside 0..1", func(t *testing.T) {
		r := setupPipelineRouter(&mockStatementService{})

		rec := doRequest(r, "POST", "/pipeline/statements/s1/complete",
			`{"transactions":[{"date":"2024-03-15","merchant":"Amazon","amount":"1","confidence_score":1.5}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		r := setupPipelineRouter(&mockStatementService{})

		rec := doRequest(r, "POST", "/pipeline/statements/s1/complete",
			`{"transactions":[{"date":"15/03/2024","merchant":"Amazon","amount":"1"}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 when already completed", func(t *testing.T) {
		svc := &mockStatementService{
			completeFn: func(_ string, _ []services.ExtractedTransaction) (*models.Statement, error) {
				return nil, apperrors.ErrStatementAlreadyCompleted
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/statements/s1/complete", `{"transactions":[]}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STATEMENT_ALREADY_COMPLETED")
	})
}

func TestPipelineHandler_DownloadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.pdf")
	if err := os.WriteFile(path, samplePDF, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	svc := &mockStatementService{
		fileFn: func(id string) (*models.Statement, error) {
			if id != "s1" {
				return nil, apperrors.ErrStatementNotFound
			}
			return &models.Statement{Base: models.Base{ID: id}, FileName: "march.pdf", StoragePath: path}, nil
		},
		pendingFn: func() ([]models.Statement, error) {
			return []models.Statement{{Base: models.Base{ID: "s1"}}}, nil
		},
	}
	r := setupPipelineRouter(svc)

	rec := doRequest(r, "GET", "/pipeline/statements/s1/file", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), samplePDF) {
		t.Error("downloaded bytes differ from the stored file")
	}

	rec = doRequest(r, "GET", "/pipeline/statements/s2/file", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doRequest(r, "GET", "/pipeline/statements/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if pending := parseJSON(t, rec)["statements"].([]interface{}); len(pending) != 1 {
		t.Errorf("expected 1 pending statement, got %d", len(pending))
	}
}

func TestStatsHandler_GetStats(t *testing.T) {
	stats := &mockStatsService{
		statsFn: func(_ string) (*services.DashboardStats, error) {
			return &services.DashboardStats{TotalStatements: 2, TotalTransactions: 115, FlaggedTransactions: 6, DisputesResolved: 2}, nil
		},
	}
	handler := NewStatsHandler(stats)
	r := gin.New()
	r.GET("/stats", injectUserID(testUserID), handler.GetStats)

	rec := doRequest(r, "GET", "/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	if result["total_transactions"].(float64) != 115 || result["disputes_resolved"].(float64) != 2 {
		t.Errorf("unexpected stats: %v", result)
	}
}
