package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is the generated artifact authorizing a vendor transaction.
// Exactly one exists per approved request and it is never mutated after
// creation.
type PurchaseOrder struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	PONumber       string          `json:"po_number"`
	VendorName     string          `json:"vendor_name"`
	Currency       string          `json:"currency"`
	IssueDate      time.Time       `json:"issue_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Terms          string          `json:"terms"`
	DocumentURL    string          `json:"document_url"`
	StructuredData DocumentData    `json:"structured_data"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewPONumber builds a business-facing PO number. Collisions are unlikely
// but not impossible; the po_number unique index rejects them.
func NewPONumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102"), suffix)
}
