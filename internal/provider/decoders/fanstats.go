package decoders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// FanStats decodes the fanstats websocket dialect: an op/args subscribe
// handshake, then one JSON object per frame carrying a player stat line, a
// single play, or a status change. Acks and pongs echo the op back and are
// skipped.
type FanStats struct{}

func NewFanStats() FanStats {
	return FanStats{}
}

type fanStatsSubscribe struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type fanStatsFrame struct {
	Op   string `json:"op"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	TS   int64  `json:"ts"`

	Player fanStatsPlayer `json:"player"`

	Stats  map[string]float64 `json:"stats"`
	Deltas map[string]float64 `json:"deltas"`

	Play        string `json:"play"`
	Description string `json:"description"`

	Status fanStatsStatus `json:"status"`
}

type fanStatsPlayer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Team     string `json:"team"`
}

type fanStatsStatus struct {
	Kind   string `json:"kind"`
	Old    string `json:"old"`
	New    string `json:"new"`
	Detail string `json:"detail"`
}

func (d FanStats) Subscribe(topics []string) ([]byte, error) {
	ret, err := json.Marshal(fanStatsSubscribe{
		Op:   "subscribe",
		Args: topics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render subscribe frame: %w", err)
	}

	return ret, nil
}

func (d FanStats) Decode(frame []byte) ([]entity.DomainEvent, error) {
	parsed := fanStatsFrame{}

	err := json.Unmarshal(frame, &parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	if parsed.Op != "" {
		return nil, nil
	}

	if parsed.Type == "" {
		return nil, fmt.Errorf("frame carries no type")
	}

	if parsed.Player.ID == "" {
		return nil, fmt.Errorf("frame carries no player id")
	}

	if parsed.TS <= 0 {
		return nil, fmt.Errorf("frame carries no timestamp")
	}

	event := entity.DomainEvent{
		Entity: entity.EntityRef{
			Kind: entity.KindPlayer,
			ID:   parsed.Player.ID,
		},
		Meta: entity.EntityMeta{
			Name:     parsed.Player.Name,
			Position: parsed.Player.Position,
			Team:     parsed.Player.Team,
		},
		Timestamp: time.UnixMilli(parsed.TS).UTC(),
		Seq:       parsed.Seq,
	}

	switch parsed.Type {
	case "stat_update":
		event.Kind = entity.EventMetricUpdate
		event.Metric = &entity.MetricUpdate{
			Stats:  parsed.Stats,
			Deltas: parsed.Deltas,
		}
	case "play":
		event.Kind = entity.EventOccurrence
		event.Occurrence = &entity.Occurrence{
			Subtype:     parsed.Play,
			Description: parsed.Description,
			Deltas:      parsed.Deltas,
		}
	case "status":
		event.Kind = entity.EventStatusChange
		event.Status = &entity.StatusChange{
			Subtype:   parsed.Status.Kind,
			OldStatus: parsed.Status.Old,
			NewStatus: parsed.Status.New,
			Detail:    parsed.Status.Detail,
		}
	default:
		event.Kind = entity.EventUnknown
		event.Unknown = &entity.UnknownPayload{Raw: frame}
	}

	return []entity.DomainEvent{event}, nil
}
