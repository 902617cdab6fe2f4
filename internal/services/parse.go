package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReceiptFields is what the local parser recovers from raw OCR text before
// the classifier is consulted.
type ReceiptFields struct {
	Vendor        string
	InvoiceDate   *time.Time
	InvoiceNumber string
	TotalAmount   float64
}

var (
	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})*\.\d{2}`)
	datePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\b(20\d{2}|19\d{2})[-/.](0?[1-9]|1[0-2])[-/.](0?[1-9]|[12]\d|3[01])\b`),
		regexp.MustCompile(`\b(0?[1-9]|[12]\d|3[01])[-/.](0?[1-9]|1[0-2])[-/.](20\d{2}|19\d{2})\b`),
		regexp.MustCompile(`\b(0?[1-9]|1[0-2])[-/.](0?[1-9]|[12]\d|3[01])[-/.](20\d{2}|19\d{2})\b`),
	}
	invoicePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:invoice|inv|bill)\s*(?:no\.?|#|num(?:ber)?)?\s*[:\-]?\s*([A-Za-z0-9\-/]+)`),
		regexp.MustCompile(`(?i)receipt\s*(?:no\.?|#)?\s*[:\-]?\s*([A-Za-z0-9\-/]+)`),
	}
	vendorLineClean = regexp.MustCompile(`[^A-Za-z0-9 &\-.,]`)
	dateClean       = regexp.MustCompile(`[^\d/\-.]`)
	amountClean     = regexp.MustCompile(`[^\d.\-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	controlChars    = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

var vendorBannedKeywords = []string{
	"total", "subtotal", "tax", "invoice", "receipt", "amount", "cashier", "date", "time",
}

// ParseReceiptFields extracts vendor, date, invoice number and total from OCR
// text. The total is the largest money-looking number; the vendor is the
// first plausible line near the top.
func ParseReceiptFields(text string) ReceiptFields {
	fields := ReceiptFields{}
	if text == "" {
		return fields
	}

	for _, match := range amountPattern.FindAllString(text, -1) {
		if amount := ValidateAmount(match); amount > fields.TotalAmount {
			fields.TotalAmount = amount
		}
	}

	condensed := strings.ReplaceAll(text, " ", "")
	for _, pattern := range datePatterns {
		if match := pattern.FindString(condensed); match != "" {
			if parsed := NormalizeDate(match); parsed != nil {
				fields.InvoiceDate = parsed
				break
			}
		}
	}

	for _, pattern := range invoicePatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			fields.InvoiceNumber = match[len(match)-1]
			break
		}
	}

	lines := strings.Split(text, "\n")
	seen := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > 15 {
			break
		}

		clean := vendorLineClean.ReplaceAllString(line, "")
		if len(clean) < 3 || len(clean) > 60 {
			continue
		}
		lower := strings.ToLower(clean)
		banned := false
		for _, keyword := range vendorBannedKeywords {
			if strings.Contains(lower, keyword) {
				banned = true
				break
			}
		}
		if banned {
			continue
		}
		fields.Vendor = clean
		break
	}

	return fields
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
	"2006/01/02",
	"02.01.2006",
	"01.02.2006",
}

// NormalizeDate parses the common receipt date formats; nil when none fit.
func NormalizeDate(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	clean := dateClean.ReplaceAllString(dateStr, "")
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, clean); err == nil {
			return &parsed
		}
	}
	return nil
}

// currencyPatterns is ordered most-specific first: S$ must win before the
// bare $ is tried, or Singapore receipts come back as USD.
var currencyPatterns = []struct {
	pattern  *regexp.Regexp
	currency string
}{
	{regexp.MustCompile(`\bSGD\b|S\$`), "SGD"},
	{regexp.MustCompile(`\bUSD\b|\$`), "USD"},
	{regexp.MustCompile(`\bEUR\b|€`), "EUR"},
	{regexp.MustCompile(`\bGBP\b|£`), "GBP"},
	{regexp.MustCompile(`\bMYR\b|RM\b`), "MYR"},
	{regexp.MustCompile(`\bTHB\b|฿`), "THB"},
	{regexp.MustCompile(`\bINR\b|₹`), "INR"},
	{regexp.MustCompile(`\bJPY\b|¥`), "JPY"},
}

// ExtractCurrency defaults to MYR when no currency marker is present.
func ExtractCurrency(text string) string {
	if text == "" {
		return "MYR"
	}

	upper := strings.ToUpper(text)
	for _, cp := range currencyPatterns {
		if cp.pattern.MatchString(upper) {
			return cp.currency
		}
	}
	return "MYR"
}

// CleanTextForDB strips control characters, collapses whitespace and bounds
// the length for the ocr_results text column.
func CleanTextForDB(text string, maxLength int) string {
	if text == "" {
		return ""
	}

	cleaned := controlChars.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
	if len(cleaned) > maxLength {
		cleaned = cleaned[:maxLength]
	}
	return cleaned
}

// ValidateAmount coerces loosely formatted amount input into a float.
func ValidateAmount(raw string) float64 {
	clean := amountClean.ReplaceAllString(raw, "")
	if clean == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return amount
}
