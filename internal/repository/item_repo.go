package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// RequestItemRepository handles request line item database operations
type RequestItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestItemRepository creates a new line item repository
func NewRequestItemRepository(db *sql.DB, logger *zap.Logger) *RequestItemRepository {
	return &RequestItemRepository{db: db, logger: logger}
}

// ReplaceForRequest deletes every existing item for the request and inserts
// the given items. This is a destructive replace, not a merge.
func (r *RequestItemRepository) ReplaceForRequest(tx *sql.Tx, requestID string, items []models.RequestItem) error {
	q := on(r.db, tx)
	if _, err := q.Exec("DELETE FROM request_items WHERE request_id = ?", requestID); err != nil {
		r.logger.Error("Failed to delete request items", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to delete request items: %w", err)
	}

	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.RequestID = requestID
		_, err := q.Exec(`
			INSERT INTO request_items (id, request_id, name, description, quantity, unit_price, total_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.RequestID, item.Name, item.Description,
			item.Quantity, item.UnitPrice.String(), item.TotalPrice.String(),
		)
		if err != nil {
			r.logger.Error("Failed to insert request item",
				zap.String("request_id", requestID),
				zap.String("name", item.Name),
				zap.Error(err))
			return fmt.Errorf("failed to insert request item %q: %w", item.Name, err)
		}
	}
	return nil
}

// ListByRequest returns the request's line items in insertion order.
func (r *RequestItemRepository) ListByRequest(requestID string) ([]models.RequestItem, error) {
	rows, err := r.db.Query(`
		SELECT id, request_id, name, description, quantity, unit_price, total_price
		FROM request_items WHERE request_id = ? ORDER BY rowid`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list request items: %w", err)
	}
	defer rows.Close()

	var items []models.RequestItem
	for rows.Next() {
		var item models.RequestItem
		var unitPrice, totalPrice string
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Name, &item.Description,
			&item.Quantity, &unitPrice, &totalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan request item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("invalid unit_price %q: %w", unitPrice, err)
		}
		if item.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
			return nil, fmt.Errorf("invalid total_price %q: %w", totalPrice, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
