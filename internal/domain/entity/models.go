package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type (
	ProviderID string
	UserID     string
	EntityKind string
)

const (
	KindPlayer EntityKind = "player"
	KindTeam   EntityKind = "team"
	KindMarket EntityKind = "market"
)

type EntityRef struct {
	Kind EntityKind
	ID   string
}

// ConnState tracks a provider connection through its lifecycle. Only the
// connection manager mutates it.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

type EventKind string

const (
	EventMetricUpdate EventKind = "metric_update"
	EventOccurrence   EventKind = "occurrence"
	EventQuoteUpdate  EventKind = "quote_update"
	EventStatusChange EventKind = "status_change"
	EventUnknown      EventKind = "unknown"
)

// EntityMeta carries descriptive fields a provider may or may not include.
// Missing fields are filled from the live cache during enrichment.
type EntityMeta struct {
	Name     string
	Position string
	Team     string
}

func (m EntityMeta) Merge(other EntityMeta) EntityMeta {
	if m.Name == "" {
		m.Name = other.Name
	}
	if m.Position == "" {
		m.Position = other.Position
	}
	if m.Team == "" {
		m.Team = other.Team
	}
	return m
}

// DomainEvent is the normalized, provider-agnostic form of one inbound
// update. Exactly one payload pointer matching Kind is set. Events are
// immutable once decoded and flow by value through the pipeline.
type DomainEvent struct {
	Provider  ProviderID
	Entity    EntityRef
	Meta      EntityMeta
	Timestamp time.Time
	Seq       uint64

	Kind       EventKind
	Metric     *MetricUpdate
	Occurrence *Occurrence
	Quote      *QuoteUpdate
	Status     *StatusChange
	Unknown    *UnknownPayload
}

// MetricUpdate is a cumulative stat-line refresh plus the per-stat change
// since the previous refresh.
type MetricUpdate struct {
	Stats  map[string]float64
	Deltas map[string]float64
}

// Occurrence is a single discrete play (touchdown, interception, ...).
type Occurrence struct {
	Subtype     string
	Description string
	Deltas      map[string]float64
}

// QuoteUpdate is a market price/line move for a tradable symbol.
type QuoteUpdate struct {
	Symbol    string
	Price     decimal.Decimal
	PrevPrice decimal.Decimal
	Line      decimal.Decimal
	Spread    decimal.Decimal
}

type StatusChange struct {
	Subtype   string
	OldStatus string
	NewStatus string
	Detail    string
}

// UnknownPayload preserves frames whose shape decoded but whose kind is not
// yet modeled, for forward compatibility.
type UnknownPayload struct {
	Raw []byte
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

type AlertType string

const (
	AlertInjury      AlertType = "injury"
	AlertScoring     AlertType = "scoring"
	AlertPerformance AlertType = "performance"
	AlertMarket      AlertType = "market"
	AlertStatus      AlertType = "status"
	AlertDigest      AlertType = "digest"
)

type AlertState string

const (
	AlertPending   AlertState = "pending"
	AlertDelivered AlertState = "delivered"
	AlertFailed    AlertState = "failed"
	AlertCancelled AlertState = "cancelled"
)

// Alert is a user-facing notification derived from one event, or from a
// batch of them (Summary set, Event nil).
type Alert struct {
	ID         string
	Type       AlertType
	Priority   Priority
	Title      string
	Message    string
	Entity     EntityRef
	Recipients []UserID
	Channels   []ChannelID
	CreatedAt  time.Time
	State      AlertState
	Attempts   int

	Event   *DomainEvent
	Summary *BatchSummary
}

// BatchSummary is the payload of a digest alert flushed from a per-user
// batch buffer.
type BatchSummary struct {
	User        UserID
	Type        AlertType
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
}

type ChannelID string

const (
	ChannelWebsocket ChannelID = "websocket"
	ChannelPush      ChannelID = "push"
	ChannelSMS       ChannelID = "sms"
	ChannelEmail     ChannelID = "email"
)

func KnownChannel(id ChannelID) bool {
	switch id {
	case ChannelWebsocket, ChannelPush, ChannelSMS, ChannelEmail:
		return true
	default:
		return false
	}
}

type DeliveryMode string

const (
	ModeImmediate DeliveryMode = "immediate"
	ModeBatched   DeliveryMode = "batched"
	ModeDisabled  DeliveryMode = "disabled"
)

// QuietHours is a daily window, in minutes from local midnight, during
// which only critical alerts go out immediately. Start > End means the
// window wraps past midnight.
type QuietHours struct {
	StartMinute int
	EndMinute   int
	Timezone    string
}

func (q QuietHours) Configured() bool {
	return q.Timezone != "" && q.StartMinute != q.EndMinute
}

type Preference struct {
	User        UserID
	Channels    map[ChannelID]bool
	Modes       map[AlertType]DeliveryMode
	Contacts    map[ChannelID]string
	Quiet       QuietHours
	MinPriority Priority
}

// Mode defaults to immediate for alert types the user never configured.
func (p Preference) Mode(t AlertType) DeliveryMode {
	if m, ok := p.Modes[t]; ok {
		return m
	}
	return ModeImmediate
}

func (p Preference) ChannelEnabled(id ChannelID) bool {
	return p.Channels[id]
}

// Contact returns the delivery address registered for a channel, e.g. an
// email address or a device token. Empty when none is known.
func (p Preference) Contact(id ChannelID) string {
	return p.Contacts[id]
}

// ChannelPolicy is the static per-channel delivery policy, loaded and
// validated at startup.
type ChannelPolicy struct {
	Channel       ChannelID
	MaxPerMinute  int
	MaxPerHour    int
	MaxPerDay     int
	Batchable     bool
	BatchInterval time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
}

type DeliveryOutcome string

const (
	OutcomeDelivered   DeliveryOutcome = "delivered"
	OutcomeFailed      DeliveryOutcome = "failed"
	OutcomeRateLimited DeliveryOutcome = "rate_limited"
	OutcomeRescheduled DeliveryOutcome = "rescheduled"
	OutcomeSkipped     DeliveryOutcome = "skipped"
)

// DeliveryResult is the record of one channel attempt for one recipient.
type DeliveryResult struct {
	AlertID  string
	User     UserID
	Channel  ChannelID
	Outcome  DeliveryOutcome
	Reason   string
	Latency  time.Duration
	Attempts uint
}

// HistoryEntry is one persisted delivery record, written after the engine
// settled every channel attempt for the alert.
type HistoryEntry struct {
	Alert      Alert
	Results    []DeliveryResult
	RecordedAt time.Time
}

type LifecycleKind string

const (
	LifecycleConnected    LifecycleKind = "connected"
	LifecycleDisconnected LifecycleKind = "disconnected"
	LifecycleDegraded     LifecycleKind = "degraded"
	LifecycleFailed       LifecycleKind = "failed"
)

// LifecycleEvent reports a provider connection transition for observers.
// Failed is terminal: the manager has given up reconnecting.
type LifecycleEvent struct {
	Provider ProviderID
	Kind     LifecycleKind
	Reason   string
	Attempts int
	At       time.Time
}
