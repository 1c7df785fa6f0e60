// Package mailer dispatches transactional email through Brevo's REST API.
package mailer

import "context"

type Mailer interface {
	Send(ctx context.Context, subject, htmlBody, toAddress string) error
}
