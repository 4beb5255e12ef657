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

// pushPayload is the request body for the push gateway.
type pushPayload struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
	AlertID  string `json:"alertId"`
}

// Push delivers alerts through an HTTP push gateway. A stale device token
// (404 or 410 from the gateway) marks the recipient unreachable instead of
// failing the attempt.
type Push struct {
	conf   config.HTTPChannel
	client *http.Client
}

func NewPush(conf config.HTTPChannel) *Push {
	return &Push{
		conf: conf,
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// WithHTTPClient overrides the transport, for tests.
func (p *Push) WithHTTPClient(client *http.Client) *Push {
	p.client = client

	return p
}

func (p *Push) ID() entity.ChannelID {
	return entity.ChannelPush
}

func (p *Push) Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error) {
	if contact == "" {
		return false, nil
	}

	body, err := json.Marshal(pushPayload{
		Token:    contact,
		Title:    alert.Title,
		Body:     alert.Message,
		Priority: alert.Priority.String(),
		AlertID:  alert.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	status, err := postJSON(ctx, p.client, p.conf.URL, p.conf.Creds.Token, body)
	if err != nil {
		return false, pipeline.NewErrRetryableError(err)
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		// The gateway no longer knows this token.
		return false, nil
	case status >= 500:
		return false, pipeline.NewErrRetryableError(fmt.Errorf("push gateway returned status %d", status))
	case status >= 300:
		return false, fmt.Errorf("push gateway returned status %d", status)
	}

	return true, nil
}
