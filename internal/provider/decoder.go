package provider

import (
	"fmt"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/provider/decoders"
)

// Feed identifiers, matching the provider sections of the configuration.
const (
	FanStats   entity.ProviderID = "fanstats"
	OddsLine   entity.ProviderID = "oddsline"
	StatStream entity.ProviderID = "statstream"
)

// Decoder translates one provider dialect into domain events.
//
// Subscribe renders the handshake frame announcing interest in the given
// topics, or nil when the feed needs no handshake. Decode maps one inbound
// frame to its events; control frames decode to no events and no error.
// The manager stamps the Provider field on decoded events.
type Decoder interface {
	Subscribe(topics []string) ([]byte, error)
	Decode(frame []byte) ([]entity.DomainEvent, error)
}

// NewDecoder returns the decoder for the given provider. Unknown providers
// are a configuration error.
func NewDecoder(provider entity.ProviderID) (Decoder, error) {
	switch provider {
	case FanStats:
		return decoders.NewFanStats(), nil
	case OddsLine:
		return decoders.NewOddsLine(), nil
	case StatStream:
		return decoders.NewStatStream(), nil
	default:
		return nil, fmt.Errorf("no decoder registered for provider %q", provider)
	}
}
