package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/services"
)

const (
	insightsTopVendors  = 5
	insightsRecentWeeks = 4
	maxQuestionLength   = 500
)

type insightsRequest struct {
	Question string `json:"question"`
}

// GetInsights assembles the organization's recent financial picture and hands
// it to the hosted insights function. The client falls back to a canned
// answer when the function is unreachable, so this handler never 502s.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req insightsRequest
	if r.Body != nil {
		// An empty or malformed body just means no question was asked.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	question := strings.TrimSpace(req.Question)
	if len(question) > maxQuestionLength {
		question = question[:maxQuestionLength]
	}

	summary, err := h.store.GetSummary(ctx, sess.OrgID)
	if err != nil {
		log.Printf("ERROR Insights summary query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load financial data")
		return
	}

	vendors, err := h.store.GetTopVendors(ctx, sess.OrgID, insightsTopVendors)
	if err != nil {
		log.Printf("ERROR Insights vendor query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load financial data")
		return
	}

	cashFlow, err := h.store.GetWeeklyCashFlow(ctx, sess.OrgID)
	if err != nil {
		log.Printf("ERROR Insights cash flow query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load financial data")
		return
	}
	cashFlow = recentWeeks(cashFlow, insightsRecentWeeks)

	insights := h.insights.Generate(r.Context(), services.InsightsContext{
		KPIs:           summary.KPIs,
		ByCategory90d:  summary.ByCategory90d,
		TopVendors90d:  vendors,
		RecentCashFlow: cashFlow,
		Question:       question,
	})

	writeJSON(w, http.StatusOK, insights)
}

func recentWeeks(series []models.WeeklyCashFlow, n int) []models.WeeklyCashFlow {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}
