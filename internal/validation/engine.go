// Package validation scores a receipt's structured data against the
// purchase order it should settle.
package validation

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/document"
	"github.com/gathara/procure-to-pay/internal/models"
)

// Issue labels for item reconciliation differences.
const (
	IssueMissingInReceipt  = "missing_in_receipt"
	IssueQuantityMismatch  = "quantity mismatch"
	IssueUnitPriceMismatch = "unit price mismatch"
)

const (
	vendorSimilarityThreshold = 0.90
	matchThreshold            = 0.8
)

var totalTolerance = decimal.NewFromFloat(0.05)

// VendorMatch details the vendor similarity check.
type VendorMatch struct {
	Expected   string  `json:"expected"`
	Found      string  `json:"found"`
	Similarity float64 `json:"similarity"`
}

// TotalAmountMatch details the total tolerance check.
type TotalAmountMatch struct {
	Expected   decimal.Decimal `json:"expected"`
	Found      decimal.Decimal `json:"found"`
	Difference decimal.Decimal `json:"difference"`
}

// ItemDifference is one reconciliation issue between PO and receipt items.
type ItemDifference struct {
	ItemName          string           `json:"item_name"`
	Issue             string           `json:"issue"`
	ExpectedQuantity  *int             `json:"expected_quantity,omitempty"`
	FoundQuantity     *int             `json:"found_quantity,omitempty"`
	ExpectedUnitPrice *decimal.Decimal `json:"expected_unit_price,omitempty"`
	FoundUnitPrice    *decimal.Decimal `json:"found_unit_price,omitempty"`
}

// Details is the per-check breakdown persisted with the result.
type Details struct {
	VendorMatch      VendorMatch      `json:"vendor_match"`
	TotalAmountMatch TotalAmountMatch `json:"total_amount_match"`
	ItemDifferences  []ItemDifference `json:"item_differences"`
	LLMAnalysis      json.RawMessage  `json:"llm_analysis,omitempty"`
}

// Result is the outcome of one validation run.
type Result struct {
	IsMatch bool    `json:"is_match"`
	Score   float64 `json:"score"`
	Details Details `json:"details"`
}

// Engine compares receipts against purchase orders. structurer is optional
// and only supplies the advisory narrative; it never influences the score.
type Engine struct {
	structurer     document.Structurer
	compareTimeout time.Duration
	logger         *zap.Logger
}

// NewEngine creates a validation engine. structurer may be nil.
func NewEngine(structurer document.Structurer, compareTimeout time.Duration, logger *zap.Logger) *Engine {
	if compareTimeout <= 0 {
		compareTimeout = 30 * time.Second
	}
	return &Engine{structurer: structurer, compareTimeout: compareTimeout, logger: logger}
}

// Validate runs three independent binary checks and scores passes/3. It
// never fails: absent values are coerced to zero values before scoring.
func (e *Engine) Validate(ctx context.Context, poData, receiptData models.DocumentData) Result {
	details := Details{ItemDifferences: []ItemDifference{}}

	// Check 1: vendor name similarity.
	poVendor := normalizeName(poData.VendorName)
	receiptVendor := normalizeName(receiptData.VendorName)
	similarity := 0.0
	if poVendor != "" || receiptVendor != "" {
		similarity = similarityRatio(poVendor, receiptVendor)
	}
	details.VendorMatch = VendorMatch{
		Expected:   poData.VendorName,
		Found:      receiptData.VendorName,
		Similarity: round2(similarity),
	}

	// Check 2: totals within tolerance. A zero PO total would make the
	// relative tolerance vacuous, so the base falls back to 1.
	poTotal := poData.TotalAmount
	receiptTotal := receiptData.TotalAmount
	difference := poTotal.Sub(receiptTotal).Abs()
	toleranceBase := poTotal
	if toleranceBase.IsZero() {
		toleranceBase = decimal.NewFromInt(1)
	}
	details.TotalAmountMatch = TotalAmountMatch{
		Expected:   poTotal,
		Found:      receiptTotal,
		Difference: difference,
	}

	// Check 3: item reconciliation, joined by normalized name. Receipt
	// items absent from the PO are deliberately not flagged.
	details.ItemDifferences = reconcileItems(poData.Items, receiptData.Items)

	checks := []bool{
		similarity >= vendorSimilarityThreshold,
		difference.LessThanOrEqual(totalTolerance.Mul(toleranceBase)),
		len(details.ItemDifferences) == 0,
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	score := round2(float64(passed) / float64(len(checks)))

	if e.structurer != nil {
		compareCtx, cancel := context.WithTimeout(ctx, e.compareTimeout)
		details.LLMAnalysis = e.structurer.Compare(compareCtx, poData, receiptData)
		cancel()
	}

	return Result{
		IsMatch: score >= matchThreshold,
		Score:   score,
		Details: details,
	}
}

func reconcileItems(poItems, receiptItems []models.DocumentItem) []ItemDifference {
	receiptByName := make(map[string]models.DocumentItem, len(receiptItems))
	for _, item := range receiptItems {
		receiptByName[normalizeName(item.Name)] = item
	}

	differences := []ItemDifference{}
	seen := make(map[string]bool, len(poItems))
	for _, poItem := range poItems {
		key := normalizeName(poItem.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		receiptItem, ok := receiptByName[key]
		if !ok {
			differences = append(differences, ItemDifference{
				ItemName: poItem.Name,
				Issue:    IssueMissingInReceipt,
			})
			continue
		}
		if poItem.Quantity != receiptItem.Quantity {
			expected, found := poItem.Quantity, receiptItem.Quantity
			differences = append(differences, ItemDifference{
				ItemName:         poItem.Name,
				Issue:            IssueQuantityMismatch,
				ExpectedQuantity: &expected,
				FoundQuantity:    &found,
			})
		}
		if !poItem.UnitPrice.Equal(receiptItem.UnitPrice) {
			expected, found := poItem.UnitPrice, receiptItem.UnitPrice
			differences = append(differences, ItemDifference{
				ItemName:          poItem.Name,
				Issue:             IssueUnitPriceMismatch,
				ExpectedUnitPrice: &expected,
				FoundUnitPrice:    &found,
			})
		}
	}
	return differences
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// similarityRatio is a longest-common-subsequence ratio in [0,1]:
// 2*LCS(a,b) / (len(a)+len(b)). Identical strings score 1.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
