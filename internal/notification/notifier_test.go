package notification

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/migrations"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// recordingSender captures delivered messages.
type recordingSender struct {
	mu   sync.Mutex
	sent []message
	done chan struct{}
}

func newRecordingSender(expected int) *recordingSender {
	s := &recordingSender{done: make(chan struct{})}
	if expected == 0 {
		close(s.done)
	}
	return s
}

func (s *recordingSender) Send(ctx context.Context, subject, textBody, htmlBody string, recipients []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message{subject: subject, textBody: textBody, htmlBody: htmlBody, recipients: recipients})
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *recordingSender) wait(t *testing.T) message {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[0]
}

func newNotifierFixture(t *testing.T, sender Sender) (*Notifier, *repository.UserRepository) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(migrations.FS, "."))

	dispatcher := NewDispatcher(sender, 8, logger)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)

	userRepo := repository.NewUserRepository(db.DB, logger)
	return NewNotifier(dispatcher, userRepo, logger), userRepo
}

func seedUsers(t *testing.T, userRepo *repository.UserRepository) {
	t.Helper()
	users := []models.Actor{
		{ID: "staff-1", Name: "staff-1", FullName: "Jane Staff", Email: "jane@example.com", Role: models.RoleStaff},
		{ID: "mgr-2", Name: "mgr-2", FullName: "Level Two", Email: "l2@example.com", Role: models.RoleApproverL2},
		{ID: "fin-1", Name: "fin-1", FullName: "Finance One", Email: "finance@example.com", Role: models.RoleFinance},
	}
	for i := range users {
		require.NoError(t, userRepo.Create(nil, &users[i]))
	}
}

func sampleRequest() *models.PurchaseRequest {
	return &models.PurchaseRequest{
		ID:                   "req-1",
		Reference:            "REQ-20260314-ABCDE",
		Title:                "Office laptops",
		Status:               models.StatusPending,
		CreatedBy:            "staff-1",
		CurrentApprovalLevel: 2,
		VendorName:           "Acme Supplies Ltd",
		Currency:             "USD",
	}
}

func TestIntermediateApprovalReachesRequesterAndNextRole(t *testing.T) {
	sender := newRecordingSender(1)
	notifier, userRepo := newNotifierFixture(t, sender)
	seedUsers(t, userRepo)

	approver := models.Actor{ID: "mgr-1", FullName: "First Manager"}
	notifier.IntermediateApproval(sampleRequest(), approver, models.RoleApproverL2)

	msg := sender.wait(t)
	assert.Equal(t, "Purchase Request REQ-20260314-ABCDE approved by First Manager", msg.subject)

	recipients := append([]string(nil), msg.recipients...)
	sort.Strings(recipients)
	assert.Equal(t, []string{"jane@example.com", "l2@example.com"}, recipients)
	assert.Contains(t, msg.textBody, "approved the request at level 2")
	assert.Contains(t, msg.textBody, "Acme Supplies Ltd")
}

func TestFinalApprovalIncludesFinance(t *testing.T) {
	sender := newRecordingSender(1)
	notifier, userRepo := newNotifierFixture(t, sender)
	seedUsers(t, userRepo)

	notifier.FinalApproval(sampleRequest(), models.Actor{ID: "mgr-2", FullName: "Level Two"})

	msg := sender.wait(t)
	assert.Equal(t, "Purchase Request REQ-20260314-ABCDE fully approved", msg.subject)

	recipients := append([]string(nil), msg.recipients...)
	sort.Strings(recipients)
	assert.Equal(t, []string{"finance@example.com", "jane@example.com"}, recipients)
}

func TestRejectionUsesPlaceholderReason(t *testing.T) {
	sender := newRecordingSender(1)
	notifier, userRepo := newNotifierFixture(t, sender)
	seedUsers(t, userRepo)

	notifier.Rejection(sampleRequest(), models.Actor{ID: "mgr-1", FullName: "First Manager"}, "")

	msg := sender.wait(t)
	assert.Equal(t, "Purchase Request REQ-20260314-ABCDE rejected", msg.subject)
	assert.Equal(t, []string{"jane@example.com"}, msg.recipients)
	assert.Contains(t, msg.textBody, "Reason: Not provided.")
}

func TestNotifierSkipsWhenNoRecipients(t *testing.T) {
	sender := newRecordingSender(0)
	notifier, _ := newNotifierFixture(t, sender)

	// No users seeded: requester cannot be resolved, nothing is enqueued.
	notifier.Rejection(sampleRequest(), models.Actor{ID: "mgr-1"}, "no")

	time.Sleep(50 * time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Empty(t, sender.sent)
}
