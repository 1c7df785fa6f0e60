package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/config"
)

type BrevoMailer struct {
	cfg    config.BrevoConfig
	client *http.Client
	log    zerolog.Logger
}

func NewBrevoMailer(cfg config.BrevoConfig, log zerolog.Logger) *BrevoMailer {
	return &BrevoMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmail struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// Send posts one transactional email. Any transport or remote failure is
// returned as a DeliveryError; callers log it and move on.
func (m *BrevoMailer) Send(ctx context.Context, subject, htmlBody, toAddress string) error {
	payload := brevoEmail{
		Sender:      brevoAddress{Email: m.cfg.SenderEmail, Name: m.cfg.SenderName},
		To:          []brevoAddress{{Email: toAddress}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &apierr.DeliveryError{Err: err}
	}

	url := strings.TrimRight(m.cfg.BaseURL, "/") + "/v3/smtp/email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &apierr.DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return &apierr.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apierr.DeliveryError{
			Err: fmt.Errorf("brevo status %d: %s", resp.StatusCode, string(detail)),
		}
	}

	m.log.Debug().Str("to", toAddress).Str("subject", subject).Msg("email dispatched")
	return nil
}
