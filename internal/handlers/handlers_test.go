package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerline-backend/internal/auth"
	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/rpc"
	"ledgerline-backend/internal/services"
	"ledgerline-backend/internal/session"
	"ledgerline-backend/internal/storage"
)

// fakeStore records the organization id every call was scoped to, so tests
// can assert queries never escape the caller's tenant.
type fakeStore struct {
	scopedOrgs []string

	summary      *models.Summary
	transactions []models.TransactionRow
	total        int
	lastFilter   models.TransactionFilter

	users       []models.User
	createErr   error
	deleteErr   error
	monthly     []models.MonthlyReportRow
	cashFlow    []models.WeeklyCashFlow
	topVendors  []models.VendorTotal
	forecast    *models.Forecast
	savedSeries []models.ForecastPoint
	receipt     *storage.ClassifiedReceipt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		summary: &models.Summary{
			KPIs:          models.SummaryKPIs{TotalExpense: 120.50, ReceiptCount: 3, AvgPerReceipt: 40.17},
			ByCategory90d: []models.CategoryTotal{{Category: "Food & Beverage", Total: 120.50}},
		},
	}
}

func (f *fakeStore) scope(orgID string) {
	f.scopedOrgs = append(f.scopedOrgs, orgID)
}

func (f *fakeStore) GetSummary(_ context.Context, orgID string) (*models.Summary, error) {
	f.scope(orgID)
	return f.summary, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, orgID string, filter models.TransactionFilter) ([]models.TransactionRow, int, error) {
	f.scope(orgID)
	f.lastFilter = filter
	return f.transactions, f.total, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, orgID string, input storage.CreateTransactionInput) (*models.Transaction, error) {
	f.scope(orgID)
	return &models.Transaction{
		ID:          "tx-1",
		OrgID:       orgID,
		Description: input.Description,
		Amount:      input.Amount,
		Currency:    input.Currency,
		InvoiceDate: input.InvoiceDate,
		Type:        input.Type,
		CreatedAt:   time.Now(),
	}, nil
}

func (f *fakeStore) ListUsers(_ context.Context, orgID string) ([]models.User, error) {
	f.scope(orgID)
	return f.users, nil
}

func (f *fakeStore) GetUser(_ context.Context, orgID, id string) (*models.User, error) {
	f.scope(orgID)
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, orgID, name, email string) (*models.User, error) {
	f.scope(orgID)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.User{ID: "user-2", OrgID: orgID, Name: name, Email: email, Role: "member"}, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, orgID, id, name, email string) (*models.User, error) {
	f.scope(orgID)
	for _, u := range f.users {
		if u.ID == id {
			u.Name = name
			u.Email = email
			return &u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStore) DeleteUser(_ context.Context, orgID, id string) error {
	f.scope(orgID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return nil
}

func (f *fakeStore) GetMonthlyReport(_ context.Context, orgID string, year int) ([]models.MonthlyReportRow, error) {
	f.scope(orgID)
	return f.monthly, nil
}

func (f *fakeStore) GetWeeklyCashFlow(_ context.Context, orgID string) ([]models.WeeklyCashFlow, error) {
	f.scope(orgID)
	return f.cashFlow, nil
}

func (f *fakeStore) GetTopVendors(_ context.Context, orgID string, limit int) ([]models.VendorTotal, error) {
	f.scope(orgID)
	return f.topVendors, nil
}

func (f *fakeStore) GetLatestForecast(_ context.Context, orgID string, maxAge time.Duration) (*models.Forecast, error) {
	f.scope(orgID)
	return f.forecast, nil
}

func (f *fakeStore) SaveForecast(_ context.Context, orgID string, horizon int, granularity string, series []models.ForecastPoint) (string, error) {
	f.scope(orgID)
	f.savedSeries = series
	return "forecast-1", nil
}

func (f *fakeStore) InsertClassifiedReceipt(_ context.Context, orgID string, receipt storage.ClassifiedReceipt) (*storage.ClassifyRecord, error) {
	f.scope(orgID)
	f.receipt = &receipt
	return &storage.ClassifyRecord{
		DocumentID:    "doc-1",
		OCRResultID:   "ocr-1",
		TransactionID: "tx-1",
		CategoryID:    "cat-1",
	}, nil
}

type fakeClassifier struct {
	category string
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) string {
	return f.category
}

type fakeInsights struct {
	lastCtx services.InsightsContext
}

func (f *fakeInsights) Generate(_ context.Context, insightsCtx services.InsightsContext) *services.Insights {
	f.lastCtx = insightsCtx
	return &services.Insights{Summary: "All quiet"}
}

type fakeReports struct {
	resp *rpc.ReportResponse
	err  error

	lastOrgID  string
	lastYear   int
	lastFormat string
}

func (f *fakeReports) GenerateReport(orgID string, year int, format string) (*rpc.ReportResponse, error) {
	f.lastOrgID = orgID
	f.lastYear = year
	f.lastFormat = format
	return f.resp, f.err
}

type testEnv struct {
	router     http.Handler
	store      *fakeStore
	classifier *fakeClassifier
	insights   *fakeInsights
	reports    *fakeReports
	cookie     *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	classifier := &fakeClassifier{category: "Food & Beverage"}
	insights := &fakeInsights{}
	reports := &fakeReports{resp: &rpc.ReportResponse{OK: true, ReportURL: "https://reports.example/r1.pdf"}}

	sessions := session.NewMemoryStore(time.Hour)
	token, err := sessions.Create(context.Background(), &models.Session{
		UserID:  "user-1",
		Name:    "Alice",
		Email:   "alice@acme.test",
		OrgID:   "org-1",
		OrgName: "Acme",
		Role:    "admin",
	})
	require.NoError(t, err)

	h := New(store, classifier, insights, reports)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessions))
		h.RegisterRoutes(r)
	})

	return &testEnv{
		router:     r,
		store:      store,
		classifier: classifier,
		insights:   insights,
		reports:    reports,
		cookie:     &http.Cookie{Name: session.CookieName, Value: token},
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/dashboard/data", "/transactions", "/users", "/report/monthly", "/forecast"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestDashboardDataIsOrgScoped(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/dashboard/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	kpis := body["kpis"].(map[string]any)
	assert.Equal(t, 120.50, kpis["total_expense"])

	require.NotEmpty(t, env.store.scopedOrgs)
	for _, orgID := range env.store.scopedOrgs {
		assert.Equal(t, "org-1", orgID)
	}
}

func TestTransactionListClampsPaging(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/transactions?limit=500&offset=-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxPageLimit, env.store.lastFilter.Limit)
	assert.Equal(t, 0, env.store.lastFilter.Offset)

	rec = env.do(t, http.MethodGet, "/transactions?limit=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.store.lastFilter.Limit)

	rec = env.do(t, http.MethodGet, "/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultPageLimit, env.store.lastFilter.Limit)
}

func TestTransactionListParsesDateFilters(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/transactions?from=2025-01-01&to=31/01/2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, env.store.lastFilter.FromDate)
	assert.Equal(t, "2025-01-01", env.store.lastFilter.FromDate.Format("2006-01-02"))
	require.NotNil(t, env.store.lastFilter.ToDate)
	assert.Equal(t, "2025-01-31", env.store.lastFilter.ToDate.Format("2006-01-02"))

	rec = env.do(t, http.MethodGet, "/transactions?from=garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.store.lastFilter.FromDate)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/transactions", map[string]any{"description": "", "amount": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/transactions", map[string]any{"description": "Lunch", "amount": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/transactions", map[string]any{"description": "Lunch", "amount": 12.50, "type": "transfer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/transactions", map[string]any{"description": "Lunch", "amount": 12.50})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "expense", body["type"])
	assert.Equal(t, "MYR", body["currency"])
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users", map[string]any{"name": "", "email": "bob@acme.test"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.store.createErr = storage.ErrEmailTaken
	rec = env.do(t, http.MethodPost, "/users", map[string]any{"name": "Bob", "email": "bob@acme.test"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, rec)["error"])

	env.store.createErr = nil
	rec = env.do(t, http.MethodPost, "/users", map[string]any{"name": "Bob", "email": "Bob@Acme.Test"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bob@acme.test", decodeBody(t, rec)["email"])
}

func TestGetUserByID(t *testing.T) {
	env := newTestEnv(t)
	env.store.users = []models.User{
		{ID: "user-1", OrgID: "org-1", Name: "Alice", Email: "alice@acme.test", Role: "admin"},
	}

	rec := env.do(t, http.MethodGet, "/users/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeBody(t, rec)["name"])

	rec = env.do(t, http.MethodGet, "/users/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/users/nope", map[string]any{"name": "Bob", "email": "bob@acme.test"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.store.deleteErr = storage.ErrUserNotFound

	rec := env.do(t, http.MethodDelete, "/users/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonthlyReportYearValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/report/monthly?year=2019", "/report/monthly?year=2031", "/report/monthly?year=abc"} {
		rec := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "Invalid year", decodeBody(t, rec)["error"], target)
	}

	env.store.monthly = []models.MonthlyReportRow{
		{Month: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Category: "Utilities", Total: 420.00},
	}
	rec := env.do(t, http.MethodGet, "/report/monthly?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report, 1)
	assert.Equal(t, "Utilities", report[0]["category"])
}

func TestForecastInsufficientData(t *testing.T) {
	env := newTestEnv(t)
	env.store.cashFlow = weeklyHistory(3)

	rec := env.do(t, http.MethodGet, "/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Insufficient data for forecasting (minimum 4 weeks required)", body["message"])
	assert.Empty(t, body["series"])
	assert.Nil(t, env.store.savedSeries)
}

func TestForecastGeneratesAndSaves(t *testing.T) {
	env := newTestEnv(t)
	env.store.cashFlow = weeklyHistory(6)

	rec := env.do(t, http.MethodGet, "/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	series := body["series"].([]any)
	assert.Len(t, series, 6+services.ForecastHorizonWeeks)
	assert.Len(t, env.store.savedSeries, 6+services.ForecastHorizonWeeks)
}

func TestForecastServesCachedSeries(t *testing.T) {
	env := newTestEnv(t)
	env.store.forecast = &models.Forecast{
		ID:         "forecast-1",
		OrgID:      "org-1",
		Series:     []models.ForecastPoint{{Week: time.Now(), IsForecast: true}},
		ComputedAt: time.Now(),
	}

	rec := env.do(t, http.MethodGet, "/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotNil(t, body["computed_at"])
	assert.Nil(t, env.store.savedSeries)
}

func TestGenerateReportDefaultsAndRelay(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/report/generate", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1", env.reports.lastOrgID)
	assert.Equal(t, time.Now().Year(), env.reports.lastYear)
	assert.Equal(t, "pdf", env.reports.lastFormat)
	assert.Equal(t, "https://reports.example/r1.pdf", decodeBody(t, rec)["report_url"])
}

func TestGenerateReportUpstreamFailures(t *testing.T) {
	env := newTestEnv(t)

	env.reports.resp = nil
	env.reports.err = rpc.ErrFunctionOffline
	rec := env.do(t, http.MethodPost, "/report/generate", map[string]any{"year": 2025})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	env.reports.err = rpc.ErrTimeout
	rec = env.do(t, http.MethodPost, "/report/generate", map[string]any{"year": 2025})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	env.reports.err = nil
	env.reports.resp = &rpc.ReportResponse{OK: false, Error: "render failed"}
	rec = env.do(t, http.MethodPost, "/report/generate", map[string]any{"year": 2025})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "render failed", decodeBody(t, rec)["error"])
}

func TestClassifyReceiptPipeline(t *testing.T) {
	env := newTestEnv(t)

	ocrText := "STARBUCKS COFFEE\nDate: 15/01/2025\nInvoice No: INV-991\nTotal: RM 23.90"
	rec := env.do(t, http.MethodPost, "/classify", map[string]any{"ocr_text": ocrText, "filename": "starbucks.jpg"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Food & Beverage", body["category"])
	assert.Equal(t, "STARBUCKS COFFEE", body["vendor"])
	assert.Equal(t, 23.90, body["total_amount"])
	assert.Equal(t, "MYR", body["currency"])
	assert.Equal(t, "tx-1", body["transaction_id"])

	require.NotNil(t, env.store.receipt)
	assert.Equal(t, "user-1", env.store.receipt.UploadedBy)
	assert.Equal(t, "starbucks.jpg", env.store.receipt.Filename)
	require.NotNil(t, env.store.receipt.InvoiceNumber)
	assert.Equal(t, "INV-991", *env.store.receipt.InvoiceNumber)
}

func TestClassifyRequiresOCRText(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/classify", map[string]any{"ocr_text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightsContextAssembly(t *testing.T) {
	env := newTestEnv(t)
	env.store.topVendors = []models.VendorTotal{{Vendor: "Starbucks", Total: 88.0}}
	env.store.cashFlow = weeklyHistory(12)

	rec := env.do(t, http.MethodPost, "/insights", map[string]any{"question": "Where can I save?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All quiet", decodeBody(t, rec)["summary"])

	assert.Equal(t, "Where can I save?", env.insights.lastCtx.Question)
	assert.Len(t, env.insights.lastCtx.RecentCashFlow, insightsRecentWeeks)
	assert.Equal(t, "Starbucks", env.insights.lastCtx.TopVendors90d[0].Vendor)
}

func weeklyHistory(n int) []models.WeeklyCashFlow {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	series := make([]models.WeeklyCashFlow, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.WeeklyCashFlow{
			Week: start.AddDate(0, 0, 7*i),
			Net:  float64(100 + 10*i),
		})
	}
	return series
}
