package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ClassifiedReceipt struct {
	Filename      string
	DocumentURL   *string
	UploadedBy    string
	OCRText       string
	VendorName    string
	TotalAmount   float64
	Currency      string
	InvoiceDate   *time.Time
	InvoiceNumber *string
	Category      string
}

type ClassifyRecord struct {
	DocumentID    string  `json:"document_id"`
	OCRResultID   string  `json:"ocr_result_id"`
	TransactionID string  `json:"transaction_id"`
	VendorID      *string `json:"vendor_id,omitempty"`
	CategoryID    string  `json:"category_id"`
}

// InsertClassifiedReceipt persists one processed receipt: document, vendor,
// OCR result, category and the expense transaction, all in one transaction.
func (s *Storage) InsertClassifiedReceipt(ctx context.Context, orgID string, receipt ClassifiedReceipt) (*ClassifyRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	record := &ClassifyRecord{}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (id, organization_id, name, url, type, uploaded_by)
		VALUES ($1, $2, $3, $4, 'receipt', $5)
		RETURNING id
	`, uuid.New().String(), orgID, receipt.Filename, receipt.DocumentURL, receipt.UploadedBy).
		Scan(&record.DocumentID)
	if err != nil {
		return nil, err
	}

	if receipt.VendorName != "" && receipt.VendorName != "Unknown Vendor" {
		vendorID, err := upsertVendor(ctx, tx, orgID, receipt.VendorName)
		if err != nil {
			return nil, err
		}
		record.VendorID = &vendorID
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO ocr_results (id, organization_id, document_id, vendor_id, text, total_amount, currency, invoice_date, invoice_number, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, uuid.New().String(), orgID, record.DocumentID, record.VendorID,
		receipt.OCRText, receipt.TotalAmount, receipt.Currency,
		receipt.InvoiceDate, receipt.InvoiceNumber, receipt.UploadedBy).
		Scan(&record.OCRResultID)
	if err != nil {
		return nil, err
	}

	categoryID, err := getOrCreateCategory(ctx, tx, orgID, receipt.Category)
	if err != nil {
		return nil, err
	}
	record.CategoryID = categoryID

	description := receipt.VendorName
	if description == "" {
		description = "Receipt " + receipt.Filename
	}

	txn, err := insertTransaction(ctx, tx, orgID, &record.OCRResultID, record.VendorID, &categoryID, CreateTransactionInput{
		Description: description,
		Amount:      receipt.TotalAmount,
		Currency:    receipt.Currency,
		InvoiceDate: receipt.InvoiceDate,
		Type:        "expense",
	})
	if err != nil {
		return nil, err
	}
	record.TransactionID = txn.ID

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return record, nil
}
