// Package notification composes and dispatches workflow emails. Delivery
// is best effort: failures are logged and never reach the workflow
// transaction.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one email. Implementations wrap a concrete provider.
type Sender interface {
	Send(ctx context.Context, subject, textBody, htmlBody string, recipients []string) error
}

// SenderConfig holds email provider configuration.
type SenderConfig struct {
	APIKey    string
	APIURL    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// HTTPSender delivers email through a Resend-compatible HTTP API. When the
// API key or sender address is missing, sends are skipped silently so the
// system runs without a configured provider.
type HTTPSender struct {
	cfg    SenderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSender creates an email sender.
func NewHTTPSender(cfg SenderConfig, logger *zap.Logger) *HTTPSender {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.resend.com/emails"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (s *HTTPSender) fromIdentity() string {
	if strings.Contains(s.cfg.FromEmail, "<") {
		return s.cfg.FromEmail
	}
	name := s.cfg.FromName
	if name == "" {
		name = "Procure-to-Pay"
	}
	return fmt.Sprintf("%s <%s>", name, s.cfg.FromEmail)
}

// Send posts the email to the provider.
func (s *HTTPSender) Send(ctx context.Context, subject, textBody, htmlBody string, recipients []string) error {
	var to []string
	for _, r := range recipients {
		if r != "" {
			to = append(to, r)
		}
	}
	if s.cfg.APIKey == "" || s.cfg.FromEmail == "" || len(to) == 0 {
		s.logger.Debug("Skipping email send; provider not configured or no recipients",
			zap.String("subject", subject))
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"from":     s.fromIdentity(),
		"to":       to,
		"subject":  subject,
		"text":     textBody,
		"html":     htmlBody,
		"reply_to": s.fromIdentity(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}

	s.logger.Info("Notification email sent",
		zap.String("subject", subject),
		zap.Strings("to", to))
	return nil
}
