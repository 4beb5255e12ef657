package channel

import (
	"github.com/fanpulse/livewire/internal/domain/entity"
)

// Registry holds the configured channel senders. Registration happens once
// during wiring; lookups are read-only after that, so no locking.
type Registry struct {
	senders map[entity.ChannelID]Sender
}

func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[entity.ChannelID]Sender),
	}
}

func (r *Registry) Register(sender Sender) {
	r.senders[sender.ID()] = sender
}

func (r *Registry) Get(id entity.ChannelID) (Sender, bool) {
	sender, ok := r.senders[id]

	return sender, ok
}

func (r *Registry) List() []entity.ChannelID {
	ids := make([]entity.ChannelID, 0, len(r.senders))
	for id := range r.senders {
		ids = append(ids, id)
	}

	return ids
}
