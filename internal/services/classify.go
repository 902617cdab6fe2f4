package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ValidCategories is the closed set the classifier must answer from.
var ValidCategories = []string{
	"Food & Beverage", "Utilities", "Transportation", "Office Supplies", "Others",
}

// ClassifierClient proxies receipt text to the externally hosted
// classification function. When the function is unreachable or answers
// outside the category set, the keyword fallback decides instead, so
// classification never fails the request.
type ClassifierClient struct {
	baseURL string
	client  *http.Client
	tokenFn func(audience string) (string, error)
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	OK       bool   `json:"ok"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

func NewClassifierClient(tokenFn func(audience string) (string, error)) *ClassifierClient {
	baseURL := os.Getenv("CLASSIFY_FN_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9001"
	}

	return &ClassifierClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokenFn: tokenFn,
	}
}

// Classify returns a category from ValidCategories, consulting the hosted
// function first and falling back to keyword matching.
func (c *ClassifierClient) Classify(ctx context.Context, ocrText string) string {
	if ocrText == "" {
		return "Others"
	}

	// The hosted function bounds its own prompt; still cap what we send.
	sample := ocrText
	if len(sample) > 2000 {
		sample = sample[:2000]
	}

	reqBody, err := json.Marshal(classifyRequest{Text: sample})
	if err != nil {
		return KeywordGuess(ocrText)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(reqBody))
	if err != nil {
		return KeywordGuess(ocrText)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.tokenFn != nil {
		if token, err := c.tokenFn("classify-fn"); err == nil {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("WARN Classifier unreachable, using keyword fallback: %v", err)
		return KeywordGuess(ocrText)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("WARN Classifier returned status %d, using keyword fallback", resp.StatusCode)
		return KeywordGuess(ocrText)
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return KeywordGuess(ocrText)
	}
	if !result.OK {
		log.Printf("WARN Classifier error: %s", result.Error)
		return KeywordGuess(ocrText)
	}

	for _, category := range ValidCategories {
		if result.Category == category {
			return category
		}
	}
	log.Printf("WARN Classifier returned invalid category %q, using keyword fallback", result.Category)
	return KeywordGuess(ocrText)
}

var categoryKeywords = map[string][]string{
	"Food & Beverage": {
		"kfc", "mcdonald", "burger king", "pizza", "starbucks", "coffee", "restaurant",
		"cafe", "food", "meal", "lunch", "dinner", "breakfast", "drink", "beverages",
		"bar", "pub", "bakery", "grocery", "supermarket", "market",
	},
	"Utilities": {
		"electric", "electricity", "water", "gas", "internet", "phone", "mobile",
		"utility", "bill", "telecommunications", "broadband", "wifi", "power",
		"energy", "heating", "cooling",
	},
	"Transportation": {
		"taxi", "uber", "grab", "bus", "train", "mrt", "lrt", "fuel", "petrol",
		"gasoline", "parking", "toll", "highway", "transport", "flight", "airline",
		"car", "vehicle", "motorcycle", "bike",
	},
	"Office Supplies": {
		"office", "stationery", "paper", "pen", "pencil", "printer", "ink",
		"cartridge", "supplies", "equipment", "computer", "laptop", "software",
		"hardware", "furniture", "desk", "chair",
	},
}

// KeywordGuess scores each category by keyword hits; "Others" when nothing
// matches.
func KeywordGuess(text string) string {
	if text == "" {
		return "Others"
	}

	lower := strings.ToLower(text)
	best := "Others"
	bestScore := 0
	for _, category := range ValidCategories {
		keywords, ok := categoryKeywords[category]
		if !ok {
			continue
		}
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best
}
