package workflow

import (
	"fmt"
	"strings"

	"github.com/gathara/procure-to-pay/internal/models"
)

// RoleByLevel is the static authorization table mapping an approval level
// to the role allowed to act at it. Levels without an entry accept any
// actor.
var RoleByLevel = map[int]string{
	1: models.RoleApproverL1,
	2: models.RoleApproverL2,
}

// authorizeLevel checks the actor's role against the level table.
func authorizeLevel(actor models.Actor, level int) error {
	expected, ok := RoleByLevel[level]
	if !ok {
		return nil
	}
	if actor.Role != expected {
		return violation(fmt.Sprintf(
			"user %s is not allowed to approve level %d (needs %s)",
			actor.ID, level, expected,
		))
	}
	return nil
}

// placeholder comment values that default-filled form fields tend to send
var placeholderComments = map[string]bool{
	"":       true,
	"string": true,
	"null":   true,
}

// NormalizeComment trims the comment and blanks out placeholder values.
func NormalizeComment(comment string) string {
	normalized := strings.TrimSpace(comment)
	if placeholderComments[strings.ToLower(normalized)] {
		return ""
	}
	return normalized
}
