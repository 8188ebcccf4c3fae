// Package mail delivers rendered briefs through the Resend API.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/config"
)

// Client sends one email per recipient so a bounce on one address never
// blocks the rest.
type Client struct {
	resend     *resend.Client
	from       string
	recipients []string
	logger     *zap.Logger
}

// NewClient builds a mail client from configuration. Returns nil when
// email is disabled or the API key env is empty; callers treat a nil
// client as delivery off, same as the reasoning provider convention.
func NewClient(cfg config.Email, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return nil
	}
	key := cfg.APIKey()
	if key == "" {
		logger.Warn("email enabled but no API key set", zap.String("env", cfg.APIKeyEnv))
		return nil
	}
	return &Client{
		resend:     resend.NewClient(key),
		from:       cfg.From,
		recipients: cfg.Recipients,
		logger:     logger,
	}
}

// Send delivers the HTML to every configured recipient and returns the
// number of successful deliveries. A failed recipient is logged and
// skipped; an error comes back only when every delivery failed.
func (c *Client) Send(ctx context.Context, subject, html string) (int, error) {
	if len(c.recipients) == 0 {
		c.logger.Warn("no recipients configured")
		return 0, nil
	}

	sent := 0
	var lastErr error
	for _, to := range c.recipients {
		resp, err := c.resend.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
			From:    c.from,
			To:      []string{to},
			Subject: subject,
			Html:    html,
		})
		if err != nil {
			lastErr = err
			c.logger.Error("sending brief", zap.String("to", to), zap.Error(err))
			continue
		}
		sent++
		c.logger.Info("brief sent", zap.String("to", to), zap.String("email_id", resp.Id))
	}

	if sent == 0 && lastErr != nil {
		return 0, fmt.Errorf("all %d deliveries failed: %w", len(c.recipients), lastErr)
	}
	return sent, nil
}
