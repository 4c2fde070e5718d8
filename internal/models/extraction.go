package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document type constants for extraction records
const (
	DocTypeProforma = "proforma"
	DocTypePO       = "po"
	DocTypeReceipt  = "receipt"
)

// Extraction engine labels
const (
	EngineModel     = "model"
	EngineOCROnly   = "ocr_only"
	EngineGenerator = "generator"
)

// DocumentItem is one structured line item parsed from a document.
type DocumentItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// DocumentData is the canonical structured representation of a commercial
// document. Absent fields stay at their zero values; the structuring model
// is instructed never to invent data.
type DocumentData struct {
	VendorName   string          `json:"vendor_name"`
	Currency     string          `json:"currency"`
	DocumentDate string          `json:"document_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Items        []DocumentItem  `json:"items"`
	Terms        string          `json:"terms"`
}

// BlankDocumentData returns the canonical blank structure substituted when
// model structuring fails or returns nothing usable.
func BlankDocumentData() DocumentData {
	return DocumentData{Items: []DocumentItem{}}
}

// IsEmpty reports whether no field carries a usable value.
func (d DocumentData) IsEmpty() bool {
	return d.VendorName == "" && d.Currency == "" && d.DocumentDate == "" &&
		d.TotalAmount.IsZero() && len(d.Items) == 0 && d.Terms == ""
}

// ExtractionResult is one row of the append-only per-request document log.
// Re-ingestion creates a new row; rows are never updated.
type ExtractionResult struct {
	ID              string       `json:"id"`
	RequestID       string       `json:"request_id"`
	DocType         string       `json:"doc_type"`
	DocumentURL     string       `json:"document_url"`
	RawText         string       `json:"raw_text"`
	BaselineData    DocumentData `json:"baseline_data"`
	FinalData       DocumentData `json:"final_data"`
	EngineUsed      string       `json:"engine_used"`
	ConfidenceScore float64      `json:"confidence_score"`
	CreatedAt       time.Time    `json:"created_at"`
}

// PositionedToken is a single OCR token with its bounding box.
type PositionedToken struct {
	Text string     `json:"text"`
	BBox [4]float64 `json:"bbox"`
	Page int        `json:"page"`
}
