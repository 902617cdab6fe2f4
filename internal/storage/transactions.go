package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgerline-backend/internal/models"
)

// ListTransactions returns the filtered, paginated slice plus the total count
// for the same predicate. The organization filter is always the first one.
func (s *Storage) ListTransactions(ctx context.Context, orgID string, filter models.TransactionFilter) ([]models.TransactionRow, int, error) {
	where := []string{"t.organization_id = $1"}
	args := []interface{}{orgID}

	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		where = append(where, fmt.Sprintf("COALESCE(t.invoice_date, t.created_at::date) >= $%d", len(args)))
	}
	if filter.ToDate != nil {
		args = append(args, *filter.ToDate)
		where = append(where, fmt.Sprintf("COALESCE(t.invoice_date, t.created_at::date) <= $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, "%"+filter.Category+"%")
		where = append(where, fmt.Sprintf("c.name ILIKE $%d", len(args)))
	}
	if filter.Vendor != "" {
		args = append(args, "%"+filter.Vendor+"%")
		where = append(where, fmt.Sprintf("v.name ILIKE $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM transactions t
		LEFT JOIN vendors v ON v.id = t.vendor_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
	`, whereClause)

	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	resultsQuery := fmt.Sprintf(`
		SELECT
			t.id,
			COALESCE(t.invoice_date, t.created_at::date) AS invoice_date,
			t.amount,
			t.currency,
			v.name AS vendor_name,
			c.name AS category_name,
			t.description,
			t.type
		FROM transactions t
		LEFT JOIN vendors v ON v.id = t.vendor_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
		ORDER BY COALESCE(t.invoice_date, t.created_at) DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, limitPos, offsetPos)

	items := make([]models.TransactionRow, 0)
	if err := s.db.SelectContext(ctx, &items, resultsQuery, args...); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

type CreateTransactionInput struct {
	Description  string
	Amount       float64
	Currency     string
	InvoiceDate  *time.Time
	Type         string
	VendorName   string
	CategoryName string
}

func (s *Storage) CreateTransaction(ctx context.Context, orgID string, input CreateTransactionInput) (*models.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var vendorID *string
	if input.VendorName != "" {
		id, err := upsertVendor(ctx, tx, orgID, input.VendorName)
		if err != nil {
			return nil, err
		}
		vendorID = &id
	}

	var categoryID *string
	if input.CategoryName != "" {
		id, err := getOrCreateCategory(ctx, tx, orgID, input.CategoryName)
		if err != nil {
			return nil, err
		}
		categoryID = &id
	}

	txn, err := insertTransaction(ctx, tx, orgID, nil, vendorID, categoryID, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, orgID string, ocrResultID, vendorID, categoryID *string, input CreateTransactionInput) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.QueryRowContext(ctx, `
		INSERT INTO transactions (id, organization_id, ocr_result_id, vendor_id, category_id, description, amount, currency, invoice_date, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, organization_id, ocr_result_id, vendor_id, category_id, description, amount, currency, invoice_date, type, created_at
	`, uuid.New().String(), orgID, ocrResultID, vendorID, categoryID,
		input.Description, input.Amount, input.Currency, input.InvoiceDate, input.Type).
		Scan(&txn.ID, &txn.OrgID, &txn.OCRResultID, &txn.VendorID, &txn.CategoryID,
			&txn.Description, &txn.Amount, &txn.Currency, &txn.InvoiceDate, &txn.Type, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func upsertVendor(ctx context.Context, tx *sqlx.Tx, orgID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		name = name[:100]
	}

	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM vendors
		WHERE organization_id = $1 AND name = $2
	`, orgID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO vendors (id, organization_id, name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, uuid.New().String(), orgID, name).Scan(&id)
	return id, err
}

func getOrCreateCategory(ctx context.Context, tx *sqlx.Tx, orgID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Others"
	}
	if len(name) > 100 {
		name = name[:100]
	}

	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM categories
		WHERE organization_id = $1 AND name = $2
	`, orgID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO categories (id, organization_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, uuid.New().String(), orgID, name).Scan(&id)
	return id, err
}

func (s *Storage) GetSummary(ctx context.Context, orgID string) (*models.Summary, error) {
	var kpiRow struct {
		TotalExpense  *float64 `db:"total_expense"`
		ReceiptCount  int      `db:"receipt_count"`
		AvgPerReceipt *float64 `db:"avg_per_receipt"`
	}
	err := s.db.GetContext(ctx, &kpiRow, `
		SELECT
			SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END) AS total_expense,
			COUNT(*) AS receipt_count,
			AVG(amount) AS avg_per_receipt
		FROM transactions
		WHERE organization_id = $1
	`, orgID)
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{
		ByCategory90d: make([]models.CategoryTotal, 0),
	}
	if kpiRow.TotalExpense != nil {
		summary.KPIs.TotalExpense = *kpiRow.TotalExpense
	}
	summary.KPIs.ReceiptCount = kpiRow.ReceiptCount
	if kpiRow.AvgPerReceipt != nil {
		summary.KPIs.AvgPerReceipt = *kpiRow.AvgPerReceipt
	}

	var topRow struct {
		Category *string  `db:"category"`
		Total    *float64 `db:"total"`
	}
	summary.KPIs.TopCategory.Name = "None"
	err = s.db.GetContext(ctx, &topRow, `
		SELECT c.name AS category, SUM(t.amount) AS total
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.organization_id = $1 AND t.type = 'expense'
		GROUP BY c.name
		ORDER BY total DESC
		LIMIT 1
	`, orgID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		if topRow.Category != nil {
			summary.KPIs.TopCategory.Name = *topRow.Category
		}
		if topRow.Total != nil {
			summary.KPIs.TopCategory.Total = *topRow.Total
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(c.name, 'Uncategorized') AS category, SUM(t.amount) AS total
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.organization_id = $1
			AND t.type = 'expense'
			AND COALESCE(t.invoice_date, t.created_at::date) >= CURRENT_DATE - INTERVAL '90 days'
		GROUP BY c.name
		ORDER BY total DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, err
		}
		summary.ByCategory90d = append(summary.ByCategory90d, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *Storage) GetMonthlyReport(ctx context.Context, orgID string, year int) ([]models.MonthlyReportRow, error) {
	query := `
		SELECT
			DATE_TRUNC('month', COALESCE(t.invoice_date, t.created_at)) AS month,
			COALESCE(c.name, 'Uncategorized') AS category,
			SUM(t.amount) AS total
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.organization_id = $1
			AND DATE_PART('year', COALESCE(t.invoice_date, t.created_at)) = $2
		GROUP BY 1, 2
		ORDER BY 1, 2
	`

	report := make([]models.MonthlyReportRow, 0)
	if err := s.db.SelectContext(ctx, &report, query, orgID, year); err != nil {
		return nil, err
	}
	return report, nil
}

// GetWeeklyCashFlow returns the per-week inflow/outflow/net series the
// forecaster runs on, oldest bucket first.
func (s *Storage) GetWeeklyCashFlow(ctx context.Context, orgID string) ([]models.WeeklyCashFlow, error) {
	query := `
		SELECT
			DATE_TRUNC('week', COALESCE(invoice_date, created_at)) AS week,
			SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END) AS inflow,
			SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END) AS outflow,
			SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END) AS net
		FROM transactions
		WHERE organization_id = $1
		GROUP BY 1
		ORDER BY 1
	`

	series := make([]models.WeeklyCashFlow, 0)
	if err := s.db.SelectContext(ctx, &series, query, orgID); err != nil {
		return nil, err
	}
	return series, nil
}

// GetTopVendors returns the organization's biggest expense vendors over the
// last 90 days.
func (s *Storage) GetTopVendors(ctx context.Context, orgID string, limit int) ([]models.VendorTotal, error) {
	query := `
		SELECT v.name AS vendor, SUM(t.amount) AS total
		FROM transactions t
		JOIN vendors v ON v.id = t.vendor_id
		WHERE t.organization_id = $1
			AND t.type = 'expense'
			AND COALESCE(t.invoice_date, t.created_at::date) >= CURRENT_DATE - INTERVAL '90 days'
		GROUP BY v.name
		ORDER BY total DESC
		LIMIT $2
	`

	vendors := make([]models.VendorTotal, 0)
	if err := s.db.SelectContext(ctx, &vendors, query, orgID, limit); err != nil {
		return nil, err
	}
	return vendors, nil
}
