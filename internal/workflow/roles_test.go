package workflow

import (
	"testing"

	"github.com/gathara/procure-to-pay/internal/models"
)

func TestAuthorizeLevel(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		level   int
		wantErr bool
	}{
		{
			name:  "level one approver at level one",
			role:  models.RoleApproverL1,
			level: 1,
		},
		{
			name:  "level two approver at level two",
			role:  models.RoleApproverL2,
			level: 2,
		},
		{
			name:    "level two approver at level one",
			role:    models.RoleApproverL2,
			level:   1,
			wantErr: true,
		},
		{
			name:    "staff at level one",
			role:    models.RoleStaff,
			level:   1,
			wantErr: true,
		},
		{
			name:  "unmapped level accepts any role",
			role:  models.RoleFinance,
			level: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizeLevel(models.Actor{ID: "u1", Role: tt.role}, tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("authorizeLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    string
	}{
		{name: "plain comment kept", comment: "approved after vendor check", want: "approved after vendor check"},
		{name: "whitespace trimmed", comment: "  fine \n", want: "fine"},
		{name: "empty stays empty", comment: "", want: ""},
		{name: "literal string placeholder", comment: "string", want: ""},
		{name: "placeholder case insensitive", comment: " NULL ", want: ""},
		{name: "non placeholder kept", comment: "nullable", want: "nullable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeComment(tt.comment); got != tt.want {
				t.Errorf("NormalizeComment(%q) = %q, want %q", tt.comment, got, tt.want)
			}
		})
	}
}
