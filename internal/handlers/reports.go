package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledgerline-backend/internal/rpc"
	"ledgerline-backend/internal/services"
)

const (
	minReportYear = 2020
	maxReportYear = 2030

	// forecastMaxAge is how long a stored forecast is served before being
	// recomputed from fresh cash-flow history.
	forecastMaxAge = 24 * time.Hour
)

func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = n
	}
	if year < minReportYear || year > maxReportYear {
		writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	report, err := h.store.GetMonthlyReport(ctx, sess.OrgID, year)
	if err != nil {
		log.Printf("ERROR Monthly report query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load monthly report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type generateReportRequest struct {
	Year   int    `json:"year"`
	Format string `json:"format"`
}

// GenerateReport forwards a yearly report request to the hosted report
// function and relays its answer.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	_, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req generateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	year := req.Year
	if year == 0 {
		year = time.Now().Year()
	}
	if year < minReportYear || year > maxReportYear {
		writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "pdf"
	}

	resp, err := h.reports.GenerateReport(sess.OrgID, year, format)
	if err != nil {
		if errors.Is(err, rpc.ErrFunctionOffline) {
			writeError(w, http.StatusBadGateway, "Report function is offline")
			return
		}
		if errors.Is(err, rpc.ErrTimeout) {
			writeError(w, http.StatusGatewayTimeout, "Report generation timed out")
			return
		}
		log.Printf("ERROR Report generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}
	if !resp.OK {
		writeError(w, http.StatusBadGateway, resp.Error)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetForecast serves the cash-flow projection. A forecast computed within the
// last day is reused; otherwise a fresh one is generated from weekly history
// and stored.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	cached, err := h.store.GetLatestForecast(ctx, sess.OrgID, forecastMaxAge)
	if err != nil {
		log.Printf("ERROR Forecast lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load forecast")
		return
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"series":      cached.Series,
			"computed_at": cached.ComputedAt,
		})
		return
	}

	history, err := h.store.GetWeeklyCashFlow(ctx, sess.OrgID)
	if err != nil {
		log.Printf("ERROR Cash flow query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load forecast")
		return
	}

	if len(history) < services.ForecastMinWeeks {
		writeJSON(w, http.StatusOK, map[string]any{
			"series":  []any{},
			"message": "Insufficient data for forecasting (minimum 4 weeks required)",
		})
		return
	}

	series := services.GenerateForecast(history)
	if _, err := h.store.SaveForecast(ctx, sess.OrgID, services.ForecastHorizonWeeks, "weekly", series); err != nil {
		// Still serve the freshly computed series; the next call recomputes.
		log.Printf("WARN Forecast save failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}
