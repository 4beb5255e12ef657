package channel

import (
	"context"
	"fmt"
	"html"

	"github.com/mrz1836/postmark"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

// postmarkSender is the slice of the Postmark client the email channel
// needs, narrowed for tests.
type postmarkSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Email delivers alerts through Postmark, one message per alert. Digest
// alerts arrive as a single summary mail like any other.
type Email struct {
	conf   config.EmailChannel
	client postmarkSender
}

func NewEmail(conf config.EmailChannel) *Email {
	return &Email{
		conf:   conf,
		client: postmark.NewClient(conf.Creds.Token, ""),
	}
}

// WithClient overrides the Postmark client, for tests.
func (e *Email) WithClient(client postmarkSender) *Email {
	e.client = client

	return e
}

func (e *Email) ID() entity.ChannelID {
	return entity.ChannelEmail
}

func (e *Email) Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error) {
	if contact == "" {
		return false, nil
	}

	resp, err := e.client.SendEmail(ctx, postmark.Email{
		From:     e.conf.From,
		To:       contact,
		Subject:  alert.Title,
		Tag:      string(alert.Type),
		HTMLBody: emailBody(alert),
		TextBody: alert.Message,
	})
	if err != nil {
		return false, pipeline.NewErrRetryableError(fmt.Errorf("failed to send email: %w", err))
	}

	// Postmark reports API-level rejections in the response body, not as
	// transport errors. Those are permanent, a retry would be rejected too.
	if resp.ErrorCode > 0 {
		return false, fmt.Errorf("postmark rejected the message: %d - %s", resp.ErrorCode, resp.Message)
	}

	return true, nil
}

func emailBody(alert entity.Alert) string {
	return fmt.Sprintf("<h2>%s</h2><p>%s</p><p><em>Priority: %s</em></p>",
		html.EscapeString(alert.Title),
		html.EscapeString(alert.Message),
		alert.Priority.String())
}
