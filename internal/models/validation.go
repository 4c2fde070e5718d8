package models

import (
	"encoding/json"
	"time"
)

// ValidationResult records the outcome of scoring a receipt against the
// purchase order. At most one exists per request; resubmitting a receipt
// replaces it.
type ValidationResult struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id"`
	IsMatch   bool            `json:"is_match"`
	Score     float64         `json:"score"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}
