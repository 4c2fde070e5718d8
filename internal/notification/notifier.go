package notification

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/repository"
)

// Notifier composes workflow notification emails and enqueues them for
// asynchronous delivery. It satisfies the workflow engine's Notifier
// contract: none of the methods block or return errors.
type Notifier struct {
	dispatcher *Dispatcher
	userRepo   *repository.UserRepository
	logger     *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(dispatcher *Dispatcher, userRepo *repository.UserRepository, logger *zap.Logger) *Notifier {
	return &Notifier{dispatcher: dispatcher, userRepo: userRepo, logger: logger}
}

// IntermediateApproval notifies the requester and the next level's role
// holders that one level has been cleared.
func (n *Notifier) IntermediateApproval(req *models.PurchaseRequest, approver models.Actor, nextRole string) {
	recipients := n.requesterEmail(req)
	if nextRole != "" {
		recipients = append(recipients, n.roleEmails(nextRole)...)
	}
	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Purchase Request %s approved by %s", req.Reference, approver.DisplayName())
	textDetails, htmlDetails := formatRequestDetails(req)
	text := fmt.Sprintf(
		"Hello,\n\n%s approved the request at level %d.\nThe next approver has been notified.\n\n%s\n\n"+
			"This is an automated message from the Procure-to-Pay system.",
		approver.DisplayName(), req.CurrentApprovalLevel, textDetails,
	)
	html := fmt.Sprintf(
		"<p>Hello,</p><p>%s approved the request at level %d. The next approver has been notified.</p>%s"+
			"<p>This is an automated message from the Procure-to-Pay system.</p>",
		approver.DisplayName(), req.CurrentApprovalLevel, htmlDetails,
	)

	n.dispatcher.enqueue(message{subject: subject, textBody: text, htmlBody: html, recipients: recipients})
}

// FinalApproval notifies the requester and finance that the request is
// fully approved and its purchase order exists.
func (n *Notifier) FinalApproval(req *models.PurchaseRequest, approver models.Actor) {
	recipients := append(n.requesterEmail(req), n.roleEmails(models.RoleFinance)...)
	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Purchase Request %s fully approved", req.Reference)
	textDetails, htmlDetails := formatRequestDetails(req)
	text := fmt.Sprintf(
		"Hello,\n\n%s approved the final level for this request.\n"+
			"Purchase order generation is complete. Finance can now track receipts.\n\n%s\n\n"+
			"This is an automated message from the Procure-to-Pay system.",
		approver.DisplayName(), textDetails,
	)
	html := fmt.Sprintf(
		"<p>Hello,</p><p>%s approved the final level for this request. "+
			"Purchase order generation is complete. Finance can now track receipts.</p>%s"+
			"<p>This is an automated message from the Procure-to-Pay system.</p>",
		approver.DisplayName(), htmlDetails,
	)

	n.dispatcher.enqueue(message{subject: subject, textBody: text, htmlBody: html, recipients: recipients})
}

// Rejection notifies the requester, carrying the approver's comment or a
// placeholder when none was given.
func (n *Notifier) Rejection(req *models.PurchaseRequest, approver models.Actor, comment string) {
	recipients := n.requesterEmail(req)
	if len(recipients) == 0 {
		return
	}
	reason := comment
	if reason == "" {
		reason = "Not provided."
	}

	subject := fmt.Sprintf("Purchase Request %s rejected", req.Reference)
	textDetails, htmlDetails := formatRequestDetails(req)
	text := fmt.Sprintf(
		"Hello,\n\n%s rejected the request.\nReason: %s\n\n%s\n\n"+
			"Please review and resubmit if necessary.\n"+
			"This is an automated message from the Procure-to-Pay system.",
		approver.DisplayName(), reason, textDetails,
	)
	html := fmt.Sprintf(
		"<p>Hello,</p><p>%s rejected the request.</p><p><strong>Reason:</strong> %s</p>%s"+
			"<p>Please review and resubmit if necessary.</p>"+
			"<p>This is an automated message from the Procure-to-Pay system.</p>",
		approver.DisplayName(), reason, htmlDetails,
	)

	n.dispatcher.enqueue(message{subject: subject, textBody: text, htmlBody: html, recipients: recipients})
}

func (n *Notifier) requesterEmail(req *models.PurchaseRequest) []string {
	requester, err := n.userRepo.GetByID(req.CreatedBy)
	if err != nil {
		n.logger.Warn("Failed to resolve requester for notification",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return nil
	}
	if requester == nil || requester.Email == "" {
		return nil
	}
	return []string{requester.Email}
}

func (n *Notifier) roleEmails(role string) []string {
	emails, err := n.userRepo.EmailsByRole(role)
	if err != nil {
		n.logger.Warn("Failed to resolve role recipients",
			zap.String("role", role),
			zap.Error(err))
		return nil
	}
	return emails
}

func formatRequestDetails(req *models.PurchaseRequest) (string, string) {
	vendor := req.VendorName
	if vendor == "" {
		vendor = "N/A"
	}
	text := fmt.Sprintf(
		"- Title: %s\n- Reference: %s\n- Status: %s\n- Amount: %s %s\n- Vendor: %s",
		req.Title, req.Reference, req.Status,
		req.AmountEstimated.StringFixed(2), req.Currency, vendor,
	)
	html := fmt.Sprintf(
		"<ul><li><strong>Title:</strong> %s</li><li><strong>Reference:</strong> %s</li>"+
			"<li><strong>Status:</strong> %s</li><li><strong>Amount:</strong> %s %s</li>"+
			"<li><strong>Vendor:</strong> %s</li></ul>",
		req.Title, req.Reference, req.Status,
		req.AmountEstimated.StringFixed(2), req.Currency, vendor,
	)
	return text, html
}
