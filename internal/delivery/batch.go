package delivery

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// channelOrder fixes the channel ordering on digest alerts so flushes are
// deterministic.
var channelOrder = []entity.ChannelID{
	entity.ChannelWebsocket,
	entity.ChannelPush,
	entity.ChannelSMS,
	entity.ChannelEmail,
}

type batchKey struct {
	user entity.UserID
	typ  entity.AlertType
}

type batchState struct {
	count    int
	first    time.Time
	priority entity.Priority
	channels map[entity.ChannelID]bool
}

// Buffer accumulates batched-mode alerts per (user, type) until the next
// flush turns each bucket into one digest alert.
type Buffer struct {
	mu     sync.Mutex
	states map[batchKey]*batchState
}

func NewBuffer() *Buffer {
	return &Buffer{
		states: make(map[batchKey]*batchState),
	}
}

// Add absorbs one alert for one recipient into the matching bucket.
func (b *Buffer) Add(alert entity.Alert, user entity.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := batchKey{user: user, typ: alert.Type}

	state, ok := b.states[key]
	if !ok {
		state = &batchState{
			first:    alert.CreatedAt,
			channels: make(map[entity.ChannelID]bool),
		}
		b.states[key] = state
	}

	state.count++

	if alert.CreatedAt.Before(state.first) {
		state.first = alert.CreatedAt
	}

	if alert.Priority > state.priority {
		state.priority = alert.Priority
	}

	for _, id := range alert.Channels {
		state.channels[id] = true
	}
}

// Len reports the number of non-empty buckets.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.states)
}

// Flush drains every bucket into one digest alert each. The digest keeps
// the highest priority seen and the union of requested channels, filtered
// by batchable, and goes back through the normal immediate path.
func (b *Buffer) Flush(now time.Time, batchable func(entity.ChannelID) bool) []entity.Alert {
	b.mu.Lock()
	states := b.states
	b.states = make(map[batchKey]*batchState)
	b.mu.Unlock()

	ret := make([]entity.Alert, 0, len(states))

	for key, state := range states {
		ret = append(ret, entity.Alert{
			ID:       uuid.NewString(),
			Type:     entity.AlertDigest,
			Priority: state.priority,
			Title:    fmt.Sprintf("%d %s updates", state.count, key.typ),
			Message: fmt.Sprintf("%d %s alerts accumulated since %s",
				state.count, key.typ, state.first.UTC().Format(time.TimeOnly)),
			Recipients: []entity.UserID{key.user},
			Channels:   orderedChannels(state.channels, batchable),
			CreatedAt:  now,
			State:      entity.AlertPending,
			Summary: &entity.BatchSummary{
				User:        key.user,
				Type:        key.typ,
				Count:       state.count,
				WindowStart: state.first,
				WindowEnd:   now,
			},
		})
	}

	return ret
}

func orderedChannels(set map[entity.ChannelID]bool, keep func(entity.ChannelID) bool) []entity.ChannelID {
	ret := make([]entity.ChannelID, 0, len(set))

	for _, id := range channelOrder {
		if set[id] && keep(id) {
			ret = append(ret, id)
		}
	}

	return ret
}
