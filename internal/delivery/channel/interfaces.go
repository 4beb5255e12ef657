package channel

import (
	"context"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// Sender pushes one alert to one recipient over a single channel. The
// boolean distinguishes sent from unreachable: a recipient with no live
// session or registered address is skipped, never retried. Transient
// transport failures come back wrapped retryable so the caller's retry
// policy applies; permanent rejections are plain errors.
type Sender interface {
	ID() entity.ChannelID
	Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error)
}
