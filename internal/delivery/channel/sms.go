package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

const smsBodyLimit = 160

// smsPayload is the request body for the SMS gateway.
type smsPayload struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// SMS delivers alerts as text messages through an HTTP gateway. The body is
// squeezed into a single segment.
type SMS struct {
	conf   config.SMSChannel
	client *http.Client
}

func NewSMS(conf config.SMSChannel) *SMS {
	return &SMS{
		conf: conf,
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// WithHTTPClient overrides the transport, for tests.
func (s *SMS) WithHTTPClient(client *http.Client) *SMS {
	s.client = client

	return s
}

func (s *SMS) ID() entity.ChannelID {
	return entity.ChannelSMS
}

func (s *SMS) Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error) {
	if contact == "" {
		return false, nil
	}

	body, err := json.Marshal(smsPayload{
		To:   contact,
		From: s.conf.From,
		Body: smsText(alert),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	status, err := postJSON(ctx, s.client, s.conf.URL, s.conf.Creds.Token, body)
	if err != nil {
		return false, pipeline.NewErrRetryableError(err)
	}

	switch {
	case status >= 500 || status == http.StatusTooManyRequests:
		return false, pipeline.NewErrRetryableError(fmt.Errorf("sms gateway returned status %d", status))
	case status >= 300:
		return false, fmt.Errorf("sms gateway returned status %d", status)
	}

	return true, nil
}

func smsText(alert entity.Alert) string {
	text := alert.Title
	if alert.Message != "" {
		text += ": " + alert.Message
	}

	runes := []rune(text)
	if len(runes) > smsBodyLimit {
		text = string(runes[:smsBodyLimit-3]) + "..."
	}

	return text
}
