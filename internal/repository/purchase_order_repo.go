package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// PurchaseOrderRepository handles purchase order database operations
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db, logger: logger}
}

// Create inserts a purchase order. The unique indexes on request_id and
// po_number reject duplicates and number collisions.
func (r *PurchaseOrderRepository) Create(tx *sql.Tx, po *models.PurchaseOrder) error {
	if po.ID == "" {
		po.ID = uuid.New().String()
	}
	po.CreatedAt = time.Now().UTC()

	structured, err := json.Marshal(po.StructuredData)
	if err != nil {
		return fmt.Errorf("failed to marshal structured data: %w", err)
	}

	_, err = on(r.db, tx).Exec(`
		INSERT INTO purchase_orders (id, request_id, po_number, vendor_name, currency,
			issue_date, total_amount, terms, document_url, structured_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID, po.RequestID, po.PONumber, po.VendorName, po.Currency,
		po.IssueDate.Format("2006-01-02"), po.TotalAmount.String(),
		po.Terms, po.DocumentURL, string(structured), po.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order",
			zap.String("request_id", po.RequestID),
			zap.String("po_number", po.PONumber),
			zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}
	return nil
}

// GetByRequestID retrieves the purchase order linked to a request,
// returning (nil, nil) when none exists.
func (r *PurchaseOrderRepository) GetByRequestID(tx *sql.Tx, requestID string) (*models.PurchaseOrder, error) {
	row := on(r.db, tx).QueryRow(`
		SELECT id, request_id, po_number, vendor_name, currency, issue_date,
			total_amount, terms, document_url, structured_data, created_at
		FROM purchase_orders WHERE request_id = ?`, requestID)

	var po models.PurchaseOrder
	var issueDate, totalAmount, structured string

	err := row.Scan(&po.ID, &po.RequestID, &po.PONumber, &po.VendorName, &po.Currency,
		&issueDate, &totalAmount, &po.Terms, &po.DocumentURL, &structured, &po.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	if po.IssueDate, err = time.Parse("2006-01-02", issueDate); err != nil {
		return nil, fmt.Errorf("invalid issue_date %q: %w", issueDate, err)
	}
	if po.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total_amount %q: %w", totalAmount, err)
	}
	if err := json.Unmarshal([]byte(structured), &po.StructuredData); err != nil {
		return nil, fmt.Errorf("invalid structured_data: %w", err)
	}
	return &po, nil
}
