package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// ExtractionRepository handles the append-only document extraction log
type ExtractionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExtractionRepository creates a new extraction repository
func NewExtractionRepository(db *sql.DB, logger *zap.Logger) *ExtractionRepository {
	return &ExtractionRepository{db: db, logger: logger}
}

// Create appends an extraction record. Rows are never updated; each
// ingestion attempt gets its own row.
func (r *ExtractionRepository) Create(tx *sql.Tx, result *models.ExtractionResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	result.CreatedAt = time.Now().UTC()

	baseline, err := json.Marshal(result.BaselineData)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline data: %w", err)
	}
	final, err := json.Marshal(result.FinalData)
	if err != nil {
		return fmt.Errorf("failed to marshal final data: %w", err)
	}

	_, err = on(r.db, tx).Exec(`
		INSERT INTO extraction_results (id, request_id, doc_type, document_url,
			raw_text, baseline_data, final_data, engine_used, confidence_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.RequestID, result.DocType, result.DocumentURL,
		result.RawText, string(baseline), string(final),
		result.EngineUsed, result.ConfidenceScore, result.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create extraction result",
			zap.String("request_id", result.RequestID),
			zap.String("doc_type", result.DocType),
			zap.Error(err))
		return fmt.Errorf("failed to create extraction result: %w", err)
	}
	return nil
}

// GetLatestByType returns the most recent extraction of the given document
// type for the request, or (nil, nil) when none exists.
func (r *ExtractionRepository) GetLatestByType(tx *sql.Tx, requestID, docType string) (*models.ExtractionResult, error) {
	row := on(r.db, tx).QueryRow(`
		SELECT id, request_id, doc_type, document_url, raw_text, baseline_data,
			final_data, engine_used, confidence_score, created_at
		FROM extraction_results
		WHERE request_id = ? AND doc_type = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, requestID, docType)

	result, err := scanExtraction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get extraction result",
			zap.String("request_id", requestID),
			zap.String("doc_type", docType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get extraction result: %w", err)
	}
	return result, nil
}

// ListByRequest returns every extraction record for the request, newest
// first.
func (r *ExtractionRepository) ListByRequest(requestID string) ([]models.ExtractionResult, error) {
	rows, err := r.db.Query(`
		SELECT id, request_id, doc_type, document_url, raw_text, baseline_data,
			final_data, engine_used, confidence_score, created_at
		FROM extraction_results
		WHERE request_id = ? ORDER BY created_at DESC, rowid DESC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction results: %w", err)
	}
	defer rows.Close()

	var results []models.ExtractionResult
	for rows.Next() {
		result, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extraction result: %w", err)
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

func scanExtraction(row rowScanner) (*models.ExtractionResult, error) {
	var result models.ExtractionResult
	var baseline, final string

	err := row.Scan(&result.ID, &result.RequestID, &result.DocType, &result.DocumentURL,
		&result.RawText, &baseline, &final,
		&result.EngineUsed, &result.ConfidenceScore, &result.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(baseline), &result.BaselineData); err != nil {
		return nil, fmt.Errorf("invalid baseline_data: %w", err)
	}
	if err := json.Unmarshal([]byte(final), &result.FinalData); err != nil {
		return nil, fmt.Errorf("invalid final_data: %w", err)
	}
	return &result, nil
}
