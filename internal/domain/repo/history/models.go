package history

import (
	"time"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// record is the persisted shape of one settled alert. The originating event
// is not kept, only what a client needs to render the feed.
type record struct {
	AlertID    string    `json:"alertId"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	State      string    `json:"state"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityKind string    `json:"entityKind"`
	EntityID   string    `json:"entityId"`
	CreatedAt  time.Time `json:"createdAt"`
	RecordedAt time.Time `json:"recordedAt"`
	Results    []result  `json:"results,omitempty"`
}

type result struct {
	User      string `json:"user"`
	Channel   string `json:"channel"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Attempts  uint   `json:"attempts"`
}

func mapToRecord(alert entity.Alert, results []entity.DeliveryResult, recordedAt time.Time) record {
	ret := record{
		AlertID:    alert.ID,
		Type:       string(alert.Type),
		Priority:   alert.Priority.String(),
		State:      string(alert.State),
		Title:      alert.Title,
		Message:    alert.Message,
		EntityKind: string(alert.Entity.Kind),
		EntityID:   alert.Entity.ID,
		CreatedAt:  alert.CreatedAt,
		RecordedAt: recordedAt,
		Results:    make([]result, 0, len(results)),
	}

	for _, res := range results {
		ret.Results = append(ret.Results, result{
			User:      string(res.User),
			Channel:   string(res.Channel),
			Outcome:   string(res.Outcome),
			Reason:    res.Reason,
			LatencyMs: res.Latency.Milliseconds(),
			Attempts:  res.Attempts,
		})
	}

	return ret
}

func mapToEntity(rec record) (entity.HistoryEntry, error) {
	priority, err := entity.ParsePriority(rec.Priority)
	if err != nil {
		return entity.HistoryEntry{}, err
	}

	ret := entity.HistoryEntry{
		Alert: entity.Alert{
			ID:       rec.AlertID,
			Type:     entity.AlertType(rec.Type),
			Priority: priority,
			State:    entity.AlertState(rec.State),
			Title:    rec.Title,
			Message:  rec.Message,
			Entity: entity.EntityRef{
				Kind: entity.EntityKind(rec.EntityKind),
				ID:   rec.EntityID,
			},
			CreatedAt: rec.CreatedAt,
		},
		Results:    make([]entity.DeliveryResult, 0, len(rec.Results)),
		RecordedAt: rec.RecordedAt,
	}

	for _, res := range rec.Results {
		ret.Results = append(ret.Results, entity.DeliveryResult{
			AlertID:  rec.AlertID,
			User:     entity.UserID(res.User),
			Channel:  entity.ChannelID(res.Channel),
			Outcome:  entity.DeliveryOutcome(res.Outcome),
			Reason:   res.Reason,
			Latency:  time.Duration(res.LatencyMs) * time.Millisecond,
			Attempts: res.Attempts,
		})
	}

	return ret, nil
}
