package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// RequestRepository handles purchase request database operations
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `id, reference, title, description, amount_estimated,
	amount_from_proforma, currency, vendor_name, category, status, created_by,
	current_approval_level, required_approval_levels, proforma_url,
	purchase_order_url, receipt_url, created_at, updated_at`

// Create inserts a new purchase request, assigning id and reference when
// they are not already set.
func (r *RequestRepository) Create(tx *sql.Tx, req *models.PurchaseRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Reference == "" {
		req.Reference = models.NewReference(time.Now())
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	query := `
		INSERT INTO purchase_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := on(r.db, tx).Exec(query,
		req.ID, req.Reference, req.Title, req.Description,
		req.AmountEstimated.String(), req.AmountFromProforma.String(),
		req.Currency, req.VendorName, req.Category, req.Status, req.CreatedBy,
		req.CurrentApprovalLevel, req.RequiredApprovalLevels,
		req.ProformaURL, req.PurchaseOrderURL, req.ReceiptURL,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase request", zap.Error(err))
		return fmt.Errorf("failed to create purchase request: %w", err)
	}
	return nil
}

// GetByID retrieves a purchase request by id, returning (nil, nil) when it
// does not exist.
func (r *RequestRepository) GetByID(tx *sql.Tx, id string) (*models.PurchaseRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM purchase_requests WHERE id = ?`
	req, err := scanRequest(on(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase request: %w", err)
	}
	return req, nil
}

// UpdateWorkflowState persists the status and approval level counters.
func (r *RequestRepository) UpdateWorkflowState(tx *sql.Tx, req *models.PurchaseRequest) error {
	req.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE purchase_requests
		SET status = ?, current_approval_level = ?, required_approval_levels = ?,
			purchase_order_url = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := on(r.db, tx).Exec(query,
		req.Status, req.CurrentApprovalLevel, req.RequiredApprovalLevels,
		req.PurchaseOrderURL, req.UpdatedAt, req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow state", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow state: %w", err)
	}
	return nil
}

// UpdateCommercialFields persists the fields denormalized from document
// extraction (vendor, currency, proforma amount, document locators).
func (r *RequestRepository) UpdateCommercialFields(tx *sql.Tx, req *models.PurchaseRequest) error {
	req.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE purchase_requests
		SET vendor_name = ?, currency = ?, amount_from_proforma = ?,
			proforma_url = ?, receipt_url = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := on(r.db, tx).Exec(query,
		req.VendorName, req.Currency, req.AmountFromProforma.String(),
		req.ProformaURL, req.ReceiptURL, req.UpdatedAt, req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update commercial fields", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update commercial fields: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	var estimated, fromProforma string

	err := row.Scan(
		&req.ID, &req.Reference, &req.Title, &req.Description,
		&estimated, &fromProforma,
		&req.Currency, &req.VendorName, &req.Category, &req.Status, &req.CreatedBy,
		&req.CurrentApprovalLevel, &req.RequiredApprovalLevels,
		&req.ProformaURL, &req.PurchaseOrderURL, &req.ReceiptURL,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if req.AmountEstimated, err = decimal.NewFromString(estimated); err != nil {
		return nil, fmt.Errorf("invalid amount_estimated %q: %w", estimated, err)
	}
	if req.AmountFromProforma, err = decimal.NewFromString(fromProforma); err != nil {
		return nil, fmt.Errorf("invalid amount_from_proforma %q: %w", fromProforma, err)
	}
	return &req, nil
}
