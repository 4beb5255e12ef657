package decoders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

// OddsLine decodes the oddsline websocket dialect. Prices arrive as decimal
// strings and stay decimal end to end. Subscription acks and heartbeats are
// event frames and are skipped.
type OddsLine struct{}

func NewOddsLine() OddsLine {
	return OddsLine{}
}

type oddsLineSubscribe struct {
	Action  string   `json:"action"`
	Markets []string `json:"markets"`
}

type oddsLineFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Seq     uint64 `json:"seq"`
	TS      int64  `json:"ts"`

	Market oddsLineMarket  `json:"market"`
	Price  decimal.Decimal `json:"price"`
	Prev   decimal.Decimal `json:"prev"`
	Line   decimal.Decimal `json:"line"`
	Spread decimal.Decimal `json:"spread"`
}

type oddsLineMarket struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

func (d OddsLine) Subscribe(topics []string) ([]byte, error) {
	ret, err := json.Marshal(oddsLineSubscribe{
		Action:  "subscribe",
		Markets: topics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render subscribe frame: %w", err)
	}

	return ret, nil
}

func (d OddsLine) Decode(frame []byte) ([]entity.DomainEvent, error) {
	parsed := oddsLineFrame{}

	err := json.Unmarshal(frame, &parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	if parsed.Event != "" {
		return nil, nil
	}

	if parsed.Channel == "" {
		return nil, fmt.Errorf("frame carries no channel")
	}

	if parsed.Market.ID == "" {
		return nil, fmt.Errorf("frame carries no market id")
	}

	if parsed.TS <= 0 {
		return nil, fmt.Errorf("frame carries no timestamp")
	}

	event := entity.DomainEvent{
		Entity: entity.EntityRef{
			Kind: entity.KindMarket,
			ID:   parsed.Market.ID,
		},
		Meta: entity.EntityMeta{
			Name: parsed.Market.Symbol,
		},
		Timestamp: time.UnixMilli(parsed.TS).UTC(),
		Seq:       parsed.Seq,
	}

	switch parsed.Channel {
	case "quotes":
		event.Kind = entity.EventQuoteUpdate
		event.Quote = &entity.QuoteUpdate{
			Symbol:    parsed.Market.Symbol,
			Price:     parsed.Price,
			PrevPrice: parsed.Prev,
			Line:      parsed.Line,
			Spread:    parsed.Spread,
		}
	default:
		event.Kind = entity.EventUnknown
		event.Unknown = &entity.UnknownPayload{Raw: frame}
	}

	return []entity.DomainEvent{event}, nil
}
