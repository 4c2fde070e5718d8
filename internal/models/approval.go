package models

import "time"

// Approval is an append-only audit record of one approval decision at one
// level. Exactly one row per (request, level) is preserved by the workflow
// engine's per-request locking, not by a schema constraint.
type Approval struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Approver  string    `json:"approver"`
	Level     int       `json:"level"`
	Decision  string    `json:"decision"` // APPROVED, REJECTED
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Actor identifies the user performing a workflow action. Authentication
// and role assignment happen upstream; the workflow engine only checks the
// role against the level table.
type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// DisplayName returns the actor's full name, falling back to the short name.
func (a Actor) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Name
}

// Role constants for the level lookup table
const (
	RoleStaff      = "staff"
	RoleApproverL1 = "approver_lvl1"
	RoleApproverL2 = "approver_lvl2"
	RoleFinance    = "finance"
)
