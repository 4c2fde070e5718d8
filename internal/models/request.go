package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseRequest is the subject of the approval workflow. Status and the
// approval level counters are mutated only by the workflow engine; the
// commercial fields (vendor, currency, proforma amount) are denormalized
// from proforma extractions.
type PurchaseRequest struct {
	ID                     string          `json:"id"`
	Reference              string          `json:"reference"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	AmountEstimated        decimal.Decimal `json:"amount_estimated"`
	AmountFromProforma     decimal.Decimal `json:"amount_from_proforma"`
	Currency               string          `json:"currency"`
	VendorName             string          `json:"vendor_name"`
	Category               string          `json:"category"`
	Status                 string          `json:"status"` // PENDING, APPROVED, REJECTED
	CreatedBy              string          `json:"created_by"`
	CurrentApprovalLevel   int             `json:"current_approval_level"`
	RequiredApprovalLevels int             `json:"required_approval_levels"`
	ProformaURL            string          `json:"proforma_url"`
	PurchaseOrderURL       string          `json:"purchase_order_url"`
	ReceiptURL             string          `json:"receipt_url"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// RequestItem is a single line item on a purchase request. The collection
// is wholesale replaced whenever a proforma extraction yields items.
type RequestItem struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Request status constants
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// NewReference builds a human-readable request reference, date-stamped
// with a short random suffix.
func NewReference(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:5])
	return fmt.Sprintf("REQ-%s-%s", now.Format("20060102"), suffix)
}
