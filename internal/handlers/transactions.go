package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/services"
	"ledgerline-backend/internal/storage"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// GetDashboardData returns the KPI block and the 90-day category breakdown
// for the caller's organization.
func (h *Handler) GetDashboardData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	summary, err := h.store.GetSummary(ctx, sess.OrgID)
	if err != nil {
		log.Printf("ERROR Dashboard summary query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard data")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	filter := parseTransactionFilter(r)
	rows, total, err := h.store.ListTransactions(ctx, sess.OrgID, filter)
	if err != nil {
		log.Printf("ERROR Transaction list query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  rows,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// parseTransactionFilter reads the list query params. Out-of-range paging
// values are clamped rather than rejected, and unparseable dates are ignored.
func parseTransactionFilter(r *http.Request) models.TransactionFilter {
	q := r.URL.Query()

	filter := models.TransactionFilter{
		Limit:    defaultPageLimit,
		Category: strings.TrimSpace(q.Get("category")),
		Vendor:   strings.TrimSpace(q.Get("vendor")),
	}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if filter.Limit < 1 {
		filter.Limit = 1
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	filter.FromDate = services.NormalizeDate(q.Get("from"))
	filter.ToDate = services.NormalizeDate(q.Get("to"))

	return filter
}

type createTransactionRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	InvoiceDate string  `json:"invoice_date"`
	Type        string  `json:"type"`
	Vendor      string  `json:"vendor"`
	Category    string  `json:"category"`
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Description) == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Description and a positive amount are required")
		return
	}

	txType := req.Type
	if txType == "" {
		txType = "expense"
	}
	if txType != "expense" && txType != "income" {
		writeError(w, http.StatusBadRequest, "Type must be 'expense' or 'income'")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "MYR"
	}

	var invoiceDate *time.Time
	if req.InvoiceDate != "" {
		invoiceDate = services.NormalizeDate(req.InvoiceDate)
		if invoiceDate == nil {
			writeError(w, http.StatusBadRequest, "Invalid invoice_date")
			return
		}
	}

	tx, err := h.store.CreateTransaction(ctx, sess.OrgID, storage.CreateTransactionInput{
		Description:  strings.TrimSpace(req.Description),
		Amount:       req.Amount,
		Currency:     currency,
		InvoiceDate:  invoiceDate,
		Type:         txType,
		VendorName:   strings.TrimSpace(req.Vendor),
		CategoryName: strings.TrimSpace(req.Category),
	})
	if err != nil {
		log.Printf("ERROR Transaction insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}
