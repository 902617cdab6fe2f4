package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ledgerline-backend/internal/auth"
	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/rpc"
	"ledgerline-backend/internal/services"
	"ledgerline-backend/internal/storage"
)

// queryTimeout bounds every database round-trip issued from a handler so a
// stuck query cannot hang the request forever.
const queryTimeout = 5 * time.Second

type Store interface {
	GetSummary(ctx context.Context, orgID string) (*models.Summary, error)
	ListTransactions(ctx context.Context, orgID string, filter models.TransactionFilter) ([]models.TransactionRow, int, error)
	CreateTransaction(ctx context.Context, orgID string, input storage.CreateTransactionInput) (*models.Transaction, error)
	ListUsers(ctx context.Context, orgID string) ([]models.User, error)
	GetUser(ctx context.Context, orgID, id string) (*models.User, error)
	CreateUser(ctx context.Context, orgID, name, email string) (*models.User, error)
	UpdateUser(ctx context.Context, orgID, id, name, email string) (*models.User, error)
	DeleteUser(ctx context.Context, orgID, id string) error
	GetMonthlyReport(ctx context.Context, orgID string, year int) ([]models.MonthlyReportRow, error)
	GetWeeklyCashFlow(ctx context.Context, orgID string) ([]models.WeeklyCashFlow, error)
	GetTopVendors(ctx context.Context, orgID string, limit int) ([]models.VendorTotal, error)
	GetLatestForecast(ctx context.Context, orgID string, maxAge time.Duration) (*models.Forecast, error)
	SaveForecast(ctx context.Context, orgID string, horizon int, granularity string, series []models.ForecastPoint) (string, error)
	InsertClassifiedReceipt(ctx context.Context, orgID string, receipt storage.ClassifiedReceipt) (*storage.ClassifyRecord, error)
}

type Classifier interface {
	Classify(ctx context.Context, ocrText string) string
}

type InsightsGenerator interface {
	Generate(ctx context.Context, insightsCtx services.InsightsContext) *services.Insights
}

type ReportGenerator interface {
	GenerateReport(orgID string, year int, format string) (*rpc.ReportResponse, error)
}

type Handler struct {
	store      Store
	classifier Classifier
	insights   InsightsGenerator
	reports    ReportGenerator
}

func New(store Store, classifier Classifier, insights InsightsGenerator, reports ReportGenerator) *Handler {
	return &Handler{
		store:      store,
		classifier: classifier,
		insights:   insights,
		reports:    reports,
	}
}

// RegisterRoutes mounts the organization-scoped routes. The caller is
// responsible for wrapping them in the session middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/data", h.GetDashboardData)

	r.Get("/transactions", h.GetTransactions)
	r.Post("/transactions", h.CreateTransaction)
	r.Post("/classify", h.ClassifyReceipt)

	r.Get("/users", h.GetUsers)
	r.Get("/users/{id}", h.GetUser)
	r.Post("/users", h.CreateUser)
	r.Put("/users/{id}", h.UpdateUser)
	r.Delete("/users/{id}", h.DeleteUser)

	r.Get("/report/monthly", h.GetMonthlyReport)
	r.Post("/report/generate", h.GenerateReport)
	r.Get("/forecast", h.GetForecast)
	r.Post("/insights", h.GetInsights)
}

// orgScope pulls the caller's organization out of the session snapshot and
// derives the bounded query context. Every handler goes through this, so a
// handler cannot query without an organization id.
func orgScope(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, *models.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, nil, nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	return ctx, cancel, sess, true
}

// boundedContext derives a query-scoped context from the request when the
// default one from orgScope has already been spent on an upstream call.
func boundedContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, queryTimeout)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
