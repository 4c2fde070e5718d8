package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// UserRepository resolves actor identities and role recipient lists.
// Authentication lives upstream; this only answers "who is this id" and
// "who holds this role".
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// GetByID retrieves an actor by id, returning (nil, nil) when unknown.
func (r *UserRepository) GetByID(id string) (*models.Actor, error) {
	row := r.db.QueryRow("SELECT id, name, full_name, email, role FROM users WHERE id = ?", id)

	var actor models.Actor
	err := row.Scan(&actor.ID, &actor.Name, &actor.FullName, &actor.Email, &actor.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &actor, nil
}

// EmailsByRole returns the non-empty email addresses of every user holding
// the role.
func (r *UserRepository) EmailsByRole(role string) ([]string, error) {
	rows, err := r.db.Query("SELECT email FROM users WHERE role = ? AND email != ''", role)
	if err != nil {
		return nil, fmt.Errorf("failed to list role emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// Create inserts a user. Used by fixtures and bootstrap seeding.
func (r *UserRepository) Create(tx *sql.Tx, actor *models.Actor) error {
	_, err := on(r.db, tx).Exec(`
		INSERT INTO users (id, name, full_name, email, role) VALUES (?, ?, ?, ?, ?)`,
		actor.ID, actor.Name, actor.FullName, actor.Email, actor.Role,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("id", actor.ID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
