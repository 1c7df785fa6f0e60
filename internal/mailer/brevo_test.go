package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/config"
)

func newTestMailer(t *testing.T) *BrevoMailer {
	t.Helper()
	m := NewBrevoMailer(config.BrevoConfig{
		APIKey:      "test-key",
		SenderEmail: "no-reply@contentmod.local",
		SenderName:  "Moderation AI",
		BaseURL:     "https://brevo.test",
		Timeout:     5 * time.Second,
	}, zerolog.Nop())
	httpmock.ActivateNonDefault(m.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return m
}

func TestSend(t *testing.T) {
	m := newTestMailer(t)

	var captured brevoEmail
	httpmock.RegisterResponder(http.MethodPost, "https://brevo.test/v3/smtp/email",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "test-key", req.Header.Get("api-key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewStringResponse(http.StatusCreated, `{"messageId":"1"}`), nil
		})

	err := m.Send(context.Background(), "Result ready", "<p>done</p>", "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, "no-reply@contentmod.local", captured.Sender.Email)
	require.Len(t, captured.To, 1)
	assert.Equal(t, "user@example.com", captured.To[0].Email)
	assert.Equal(t, "Result ready", captured.Subject)
	assert.Equal(t, "<p>done</p>", captured.HTMLContent)
}

func TestSendRemoteFailure(t *testing.T) {
	m := newTestMailer(t)

	httpmock.RegisterResponder(http.MethodPost, "https://brevo.test/v3/smtp/email",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"invalid api key"}`))

	err := m.Send(context.Background(), "s", "<p></p>", "user@example.com")

	var deliveryErr *apierr.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Contains(t, deliveryErr.Err.Error(), "invalid api key")
}
