package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// ApprovalRepository handles the append-only approval audit log
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// Create appends an approval decision record.
func (r *ApprovalRepository) Create(tx *sql.Tx, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}
	approval.CreatedAt = time.Now().UTC()

	_, err := on(r.db, tx).Exec(`
		INSERT INTO approvals (id, request_id, approver, level, decision, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		approval.ID, approval.RequestID, approval.Approver,
		approval.Level, approval.Decision, approval.Comment, approval.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval record",
			zap.String("request_id", approval.RequestID),
			zap.Int("level", approval.Level),
			zap.Error(err))
		return fmt.Errorf("failed to create approval record: %w", err)
	}
	return nil
}

// ListByRequest returns the request's approval history, newest first.
func (r *ApprovalRepository) ListByRequest(requestID string) ([]models.Approval, error) {
	rows, err := r.db.Query(`
		SELECT id, request_id, approver, level, decision, comment, created_at
		FROM approvals WHERE request_id = ? ORDER BY created_at DESC, rowid DESC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []models.Approval
	for rows.Next() {
		var a models.Approval
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Approver, &a.Level,
			&a.Decision, &a.Comment, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// CountByRequestAndLevel counts approval records for one (request, level)
// pair. Used by tests to assert the single-approval-per-level invariant.
func (r *ApprovalRepository) CountByRequestAndLevel(requestID string, level int) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM approvals WHERE request_id = ? AND level = ?",
		requestID, level,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return count, nil
}
