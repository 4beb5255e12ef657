package decoders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// StatStream decodes the internal kafka envelope: one envelope per message,
// already close to the domain shape, no handshake.
type StatStream struct{}

func NewStatStream() StatStream {
	return StatStream{}
}

type statStreamEnvelope struct {
	Kind string `json:"kind"`
	Seq  uint64 `json:"seq"`
	TS   int64  `json:"ts"`

	Entity  statStreamEntity `json:"entity"`
	Meta    statStreamMeta   `json:"meta"`
	Payload json.RawMessage  `json:"payload"`
}

type statStreamEntity struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type statStreamMeta struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Team     string `json:"team"`
}

type statStreamMetric struct {
	Stats  map[string]float64 `json:"stats"`
	Deltas map[string]float64 `json:"deltas"`
}

type statStreamOccurrence struct {
	Subtype     string             `json:"subtype"`
	Description string             `json:"description"`
	Deltas      map[string]float64 `json:"deltas"`
}

type statStreamQuote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Prev   decimal.Decimal `json:"prev"`
	Line   decimal.Decimal `json:"line"`
	Spread decimal.Decimal `json:"spread"`
}

type statStreamStatus struct {
	Subtype string `json:"subtype"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Detail  string `json:"detail"`
}

func (d StatStream) Subscribe(topics []string) ([]byte, error) {
	return nil, nil
}

func (d StatStream) Decode(frame []byte) ([]entity.DomainEvent, error) {
	envelope := statStreamEnvelope{}

	err := json.Unmarshal(frame, &envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	entityKind, err := parseEntityKind(envelope.Entity.Kind)
	if err != nil {
		return nil, err
	}

	if envelope.Entity.ID == "" {
		return nil, fmt.Errorf("envelope carries no entity id")
	}

	if envelope.TS <= 0 {
		return nil, fmt.Errorf("envelope carries no timestamp")
	}

	event := entity.DomainEvent{
		Entity: entity.EntityRef{
			Kind: entityKind,
			ID:   envelope.Entity.ID,
		},
		Meta: entity.EntityMeta{
			Name:     envelope.Meta.Name,
			Position: envelope.Meta.Position,
			Team:     envelope.Meta.Team,
		},
		Timestamp: time.UnixMilli(envelope.TS).UTC(),
		Seq:       envelope.Seq,
	}

	switch entity.EventKind(envelope.Kind) {
	case entity.EventMetricUpdate:
		payload := statStreamMetric{}

		err := json.Unmarshal(envelope.Payload, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse metric payload: %w", err)
		}

		event.Kind = entity.EventMetricUpdate
		event.Metric = &entity.MetricUpdate{
			Stats:  payload.Stats,
			Deltas: payload.Deltas,
		}
	case entity.EventOccurrence:
		payload := statStreamOccurrence{}

		err := json.Unmarshal(envelope.Payload, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse occurrence payload: %w", err)
		}

		event.Kind = entity.EventOccurrence
		event.Occurrence = &entity.Occurrence{
			Subtype:     payload.Subtype,
			Description: payload.Description,
			Deltas:      payload.Deltas,
		}
	case entity.EventQuoteUpdate:
		payload := statStreamQuote{}

		err := json.Unmarshal(envelope.Payload, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quote payload: %w", err)
		}

		event.Kind = entity.EventQuoteUpdate
		event.Quote = &entity.QuoteUpdate{
			Symbol:    payload.Symbol,
			Price:     payload.Price,
			PrevPrice: payload.Prev,
			Line:      payload.Line,
			Spread:    payload.Spread,
		}
	case entity.EventStatusChange:
		payload := statStreamStatus{}

		err := json.Unmarshal(envelope.Payload, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse status payload: %w", err)
		}

		event.Kind = entity.EventStatusChange
		event.Status = &entity.StatusChange{
			Subtype:   payload.Subtype,
			OldStatus: payload.Old,
			NewStatus: payload.New,
			Detail:    payload.Detail,
		}
	default:
		if envelope.Kind == "" {
			return nil, fmt.Errorf("envelope carries no kind")
		}

		event.Kind = entity.EventUnknown
		event.Unknown = &entity.UnknownPayload{Raw: frame}
	}

	return []entity.DomainEvent{event}, nil
}

func parseEntityKind(s string) (entity.EntityKind, error) {
	switch kind := entity.EntityKind(s); kind {
	case entity.KindPlayer, entity.KindTeam, entity.KindMarket:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}
