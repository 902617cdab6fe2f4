package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"ledgerline-backend/internal/models"
)

// InsightsContext is the grounded financial data handed to the hosted
// insights function.
type InsightsContext struct {
	KPIs           models.SummaryKPIs      `json:"kpis"`
	ByCategory90d  []models.CategoryTotal  `json:"spending_by_category_90d"`
	TopVendors90d  []models.VendorTotal    `json:"top_vendors_90d"`
	RecentCashFlow []models.WeeklyCashFlow `json:"recent_cash_flow"`
	Question       string                  `json:"question,omitempty"`
}

type BudgetRecommendation struct {
	Category          string  `json:"category"`
	Suggestion        string  `json:"suggestion"`
	EstMonthlySavings float64 `json:"est_monthly_savings"`
}

type TaxPreparationItem struct {
	Item         string `json:"item"`
	WhyItMatters string `json:"why_it_matters"`
}

type RiskItem struct {
	Risk        string `json:"risk"`
	WatchMetric string `json:"watch_metric"`
}

type InsightActions struct {
	BudgetRecommendations []BudgetRecommendation `json:"budget_recommendations"`
	TaxPreparation        []TaxPreparationItem   `json:"tax_preparation"`
	Risks                 []RiskItem             `json:"risks"`
}

type Insights struct {
	Summary string         `json:"summary"`
	Actions InsightActions `json:"actions"`
}

type insightsEnvelope struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error"`
	Insights Insights `json:"insights"`
}

// InsightsClient proxies to the externally hosted insights function. Failures
// degrade to a canned response rather than a 500, matching the classifier.
type InsightsClient struct {
	baseURL string
	client  *http.Client
	tokenFn func(audience string) (string, error)
}

func NewInsightsClient(tokenFn func(audience string) (string, error)) *InsightsClient {
	baseURL := os.Getenv("INSIGHTS_FN_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9002"
	}

	return &InsightsClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokenFn: tokenFn,
	}
}

func (c *InsightsClient) Generate(ctx context.Context, insightsCtx InsightsContext) *Insights {
	reqBody, err := json.Marshal(insightsCtx)
	if err != nil {
		return fallbackInsights("")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/insights", bytes.NewReader(reqBody))
	if err != nil {
		return fallbackInsights("")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.tokenFn != nil {
		if token, err := c.tokenFn("insights-fn"); err == nil {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("WARN Insights function unreachable: %v", err)
		return fallbackInsights(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("WARN Insights function error: %s", string(body))
		return fallbackInsights(fmt.Sprintf("status %d", resp.StatusCode))
	}

	var envelope insightsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fallbackInsights(err.Error())
	}
	if !envelope.OK {
		log.Printf("WARN Insights function rejected request: %s", envelope.Error)
		return fallbackInsights(envelope.Error)
	}

	return &envelope.Insights
}

func fallbackInsights(reason string) *Insights {
	summary := "Unable to generate detailed insights. Please ensure you have sufficient transaction data for analysis."
	if reason != "" {
		if len(reason) > 100 {
			reason = reason[:100]
		}
		summary = "Insights generation temporarily unavailable due to: " + reason
	}
	return &Insights{
		Summary: summary,
		Actions: InsightActions{
			BudgetRecommendations: []BudgetRecommendation{},
			TaxPreparation:        []TaxPreparationItem{},
			Risks:                 []RiskItem{},
		},
	}
}
