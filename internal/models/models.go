package models

import "time"

type Transaction struct {
	ID          string     `json:"id" db:"id"`
	OrgID       string     `json:"organization_id" db:"organization_id"`
	OCRResultID *string    `json:"ocr_result_id,omitempty" db:"ocr_result_id"`
	VendorID    *string    `json:"vendor_id,omitempty" db:"vendor_id"`
	CategoryID  *string    `json:"category_id,omitempty" db:"category_id"`
	Description string     `json:"description" db:"description"`
	Amount      float64    `json:"amount" db:"amount"`
	Currency    string     `json:"currency" db:"currency"`
	InvoiceDate *time.Time `json:"invoice_date" db:"invoice_date"`
	Type        string     `json:"type" db:"type"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// TransactionRow is the joined shape returned by list queries.
type TransactionRow struct {
	ID           string     `json:"id" db:"id"`
	InvoiceDate  *time.Time `json:"invoice_date" db:"invoice_date"`
	Amount       float64    `json:"amount" db:"amount"`
	Currency     string     `json:"currency" db:"currency"`
	VendorName   *string    `json:"vendor_name" db:"vendor_name"`
	CategoryName *string    `json:"category_name" db:"category_name"`
	Description  string     `json:"description" db:"description"`
	Type         string     `json:"type" db:"type"`
}

type TransactionFilter struct {
	Limit    int
	Offset   int
	FromDate *time.Time
	ToDate   *time.Time
	Category string
	Vendor   string
}

type Vendor struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"organization_id" db:"organization_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Category struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"organization_id" db:"organization_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Document struct {
	ID         string    `json:"id" db:"id"`
	OrgID      string    `json:"organization_id" db:"organization_id"`
	Name       string    `json:"name" db:"name"`
	URL        *string   `json:"url" db:"url"`
	Type       string    `json:"type" db:"type"`
	UploadedBy string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type SummaryKPIs struct {
	TotalExpense  float64     `json:"total_expense"`
	ReceiptCount  int         `json:"receipt_count"`
	AvgPerReceipt float64     `json:"avg_per_receipt"`
	TopCategory   TopCategory `json:"top_category"`
}

type TopCategory struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type VendorTotal struct {
	Vendor string  `json:"vendor" db:"vendor"`
	Total  float64 `json:"total" db:"total"`
}

type Summary struct {
	KPIs          SummaryKPIs     `json:"kpis"`
	ByCategory90d []CategoryTotal `json:"by_category_90d"`
}

type MonthlyReportRow struct {
	Month    time.Time `json:"month" db:"month"`
	Category string    `json:"category" db:"category"`
	Total    float64   `json:"total" db:"total"`
}

// WeeklyCashFlow is one bucket of the historical series the forecaster runs on.
type WeeklyCashFlow struct {
	Week    time.Time `json:"week" db:"week"`
	Inflow  float64   `json:"inflow" db:"inflow"`
	Outflow float64   `json:"outflow" db:"outflow"`
	Net     float64   `json:"net" db:"net"`
}

type ForecastPoint struct {
	Week       time.Time `json:"week"`
	Net        *float64  `json:"net"`
	Forecast   *float64  `json:"forecast"`
	IsForecast bool      `json:"is_forecast"`
}

type Forecast struct {
	ID          string          `json:"id" db:"id"`
	OrgID       string          `json:"organization_id" db:"organization_id"`
	Horizon     int             `json:"horizon" db:"horizon"`
	Granularity string          `json:"granularity" db:"granularity"`
	Series      []ForecastPoint `json:"series" db:"-"`
	SeriesJSON  []byte          `json:"-" db:"series"`
	ComputedAt  time.Time       `json:"computed_at" db:"computed_at"`
}
