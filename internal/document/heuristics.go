package document

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gathara/procure-to-pay/internal/models"
)

// Lightweight regex parser for vendor, currency, totals, and line items.
// It produces the baseline stored alongside the model result; the primary
// ingestion flow keeps the model-or-blank policy for final data.

var (
	currencyRegex = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|UGX|KES|TZS|RWF)\b`)
	amountRegex   = regexp.MustCompile(`([A-Z]{3})?\s?\$?([\d,]+\.\d{2})`)
	vendorRegex   = regexp.MustCompile(`(?i)vendor\s*[:\-]\s*(.*)`)
	itemLineRegex = regexp.MustCompile(`(?i)(?P<name>[\w\s]+?)\s+(?P<qty>\d+)\s+x\s+(?P<price>[\d,.]+)`)
)

func cleanAmount(value string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// ParseFields extracts vendor/currency/total/items from raw OCR text using
// positional conventions common to commercial documents.
func ParseFields(rawText string) models.DocumentData {
	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	data := models.BlankDocumentData()

	// Vendor usually appears in the header, either labelled or as the
	// first printed line.
	scan := lines
	if len(scan) > 10 {
		scan = scan[:10]
	}
	for _, line := range scan {
		if match := vendorRegex.FindStringSubmatch(line); match != nil {
			data.VendorName = strings.TrimSpace(match[1])
			break
		}
	}
	if data.VendorName == "" && len(lines) > 0 {
		data.VendorName = lines[0]
	}

	if match := currencyRegex.FindString(rawText); match != "" {
		data.Currency = strings.ToUpper(match)
	}

	// The last parseable amount wins; totals come after line items.
	for _, match := range amountRegex.FindAllStringSubmatch(rawText, -1) {
		if match[1] != "" && data.Currency == "" {
			data.Currency = strings.ToUpper(match[1])
		}
		if amount, ok := cleanAmount(match[2]); ok {
			data.TotalAmount = amount
		}
	}

	for _, line := range lines {
		match := itemLineRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		qty, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		unitPrice, ok := cleanAmount(match[3])
		if !ok {
			unitPrice = decimal.Zero
		}
		data.Items = append(data.Items, models.DocumentItem{
			Name:       strings.TrimSpace(match[1]),
			Quantity:   qty,
			UnitPrice:  unitPrice,
			TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(qty))),
		})
	}

	return data
}
