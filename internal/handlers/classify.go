package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"ledgerline-backend/internal/services"
	"ledgerline-backend/internal/storage"
)

const maxOCRTextLength = 10000

type classifyRequest struct {
	OCRText     string  `json:"ocr_text"`
	Filename    string  `json:"filename"`
	DocumentURL *string `json:"document_url"`
}

// ClassifyReceipt runs the full receipt pipeline: parse fields out of the OCR
// text, ask the hosted classifier for a category, then persist document, OCR
// result and expense transaction in one go.
func (h *Handler) ClassifyReceipt(w http.ResponseWriter, r *http.Request) {
	_, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.OCRText) == "" {
		writeError(w, http.StatusBadRequest, "ocr_text is required")
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "receipt.jpg"
	}

	// Fields are parsed from the raw text; cleaning collapses the line
	// structure the vendor heuristic depends on.
	fields := services.ParseReceiptFields(req.OCRText)
	if fields.Vendor == "" {
		fields.Vendor = "Unknown Vendor"
	}
	currency := services.ExtractCurrency(req.OCRText)
	storedText := services.CleanTextForDB(req.OCRText, maxOCRTextLength)

	// The classifier call carries its own timeout; the store write gets a
	// fresh bounded context afterwards.
	category := h.classifier.Classify(r.Context(), req.OCRText)

	ctx, cancelWrite := boundedContext(r.Context())
	defer cancelWrite()

	var invoiceNumber *string
	if fields.InvoiceNumber != "" {
		invoiceNumber = &fields.InvoiceNumber
	}

	record, err := h.store.InsertClassifiedReceipt(ctx, sess.OrgID, storage.ClassifiedReceipt{
		Filename:      filename,
		DocumentURL:   req.DocumentURL,
		UploadedBy:    sess.UserID,
		OCRText:       storedText,
		VendorName:    fields.Vendor,
		TotalAmount:   fields.TotalAmount,
		Currency:      currency,
		InvoiceDate:   fields.InvoiceDate,
		InvoiceNumber: invoiceNumber,
		Category:      category,
	})
	if err != nil {
		log.Printf("ERROR Classified receipt insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store classified receipt")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    record.DocumentID,
		"ocr_result_id":  record.OCRResultID,
		"transaction_id": record.TransactionID,
		"vendor":         fields.Vendor,
		"total_amount":   fields.TotalAmount,
		"currency":       currency,
		"invoice_date":   fields.InvoiceDate,
		"invoice_number": fields.InvoiceNumber,
		"category":       category,
	})
}
