package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// ValidationRepository handles receipt validation results. A request has
// at most one; resubmitting a receipt replaces it.
type ValidationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewValidationRepository creates a new validation repository
func NewValidationRepository(db *sql.DB, logger *zap.Logger) *ValidationRepository {
	return &ValidationRepository{db: db, logger: logger}
}

// Upsert creates or replaces the validation result for the request. On
// replacement the row keeps its original id, which is reported back on
// the result.
func (r *ValidationRepository) Upsert(tx *sql.Tx, result *models.ValidationResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	result.CreatedAt = time.Now().UTC()

	isMatch := 0
	if result.IsMatch {
		isMatch = 1
	}

	err := on(r.db, tx).QueryRow(`
		INSERT INTO validation_results (id, request_id, is_match, score, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			is_match = excluded.is_match,
			score = excluded.score,
			details = excluded.details,
			created_at = excluded.created_at
		RETURNING id`,
		result.ID, result.RequestID, isMatch, result.Score,
		string(result.Details), result.CreatedAt,
	).Scan(&result.ID)
	if err != nil {
		r.logger.Error("Failed to upsert validation result",
			zap.String("request_id", result.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert validation result: %w", err)
	}
	return nil
}

// GetByRequestID retrieves the validation result, or (nil, nil) when none
// exists.
func (r *ValidationRepository) GetByRequestID(requestID string) (*models.ValidationResult, error) {
	row := r.db.QueryRow(`
		SELECT id, request_id, is_match, score, details, created_at
		FROM validation_results WHERE request_id = ?`, requestID)

	var result models.ValidationResult
	var isMatch int
	var details string

	err := row.Scan(&result.ID, &result.RequestID, &isMatch, &result.Score,
		&details, &result.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get validation result", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}

	result.IsMatch = isMatch != 0
	result.Details = []byte(details)
	return &result, nil
}
