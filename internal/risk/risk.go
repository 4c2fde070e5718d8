// Package risk derives an advisory risk classification for purchase
// requests. The classification is recomputed on read and never gates the
// workflow.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/gathara/procure-to-pay/internal/models"
)

// Risk levels
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

var (
	highAmount   = decimal.NewFromInt(50000)
	mediumAmount = decimal.NewFromInt(25000)
)

// Summary is the derived classification with its contributing reasons.
type Summary struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}

// Classify computes the request's risk level from its amount, vendor
// presence, and workflow position. Two or more reasons make it high.
func Classify(req *models.PurchaseRequest) Summary {
	reasons := []string{}

	if req.AmountEstimated.GreaterThanOrEqual(highAmount) {
		reasons = append(reasons, "Amount > 50,000")
	} else if req.AmountEstimated.GreaterThanOrEqual(mediumAmount) {
		reasons = append(reasons, "Amount > 25,000")
	}
	if req.VendorName == "" {
		reasons = append(reasons, "Missing vendor")
	}
	if req.Status == models.StatusPending && req.CurrentApprovalLevel == 2 {
		reasons = append(reasons, "Awaiting Level 2 approval")
	}

	level := LevelLow
	if len(reasons) >= 2 {
		level = LevelHigh
	} else if len(reasons) == 1 {
		level = LevelMedium
	}
	return Summary{Level: level, Reasons: reasons}
}
