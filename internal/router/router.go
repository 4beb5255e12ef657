package router

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
	"github.com/fanpulse/livewire/internal/livecache"
)

const metricsNamespace = "livewire"

const (
	subtypeInjury    = "injury"
	subtypeTouchdown = "touchdown"

	touchdownHighThreshold = 6.0
	criticalDeltaThreshold = 10.0
)

// Router turns domain events into alerts: classify by impact, enrich from
// the live cache, resolve recipients from rostered followers. Classification
// and enrichment are pure in-memory; the roster lookup is the single external
// call and runs under the configured timeout. A resolver failure degrades to
// an empty recipient set, it never drops the alert.
type Router struct {
	conf     config.Router
	cache    *livecache.Cache
	resolver repo.RosterResolver
	clock    clockwork.Clock

	logger *logr.Logger

	metrics routerMetrics
}

type routerMetrics struct {
	alerts        *prometheus.CounterVec
	resolveErrors prometheus.Counter
}

func New(conf config.Router, cache *livecache.Cache, resolver repo.RosterResolver, clock clockwork.Clock, registry prometheus.Registerer) (*Router, error) {
	metrics, err := createRouterMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Router{
		conf:     conf,
		cache:    cache,
		resolver: resolver,
		clock:    clock,
		metrics:  metrics,
	}, nil
}

func createRouterMetrics(registry prometheus.Registerer) (routerMetrics, error) {
	ret := routerMetrics{
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "router",
			Name:      "alerts_total",
			Help:      "Alerts produced by priority.",
		}, []string{"priority"}),
		resolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "router",
			Name:      "resolve_errors_total",
			Help:      "Roster lookups that failed and fell back to an empty recipient set.",
		}),
	}

	for _, collector := range []prometheus.Collector{ret.alerts, ret.resolveErrors} {
		err := registry.Register(collector)
		if err != nil {
			return routerMetrics{}, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return ret, nil
}

func (r *Router) WithLogger(logger logr.Logger) *Router {
	r.logger = &logger

	return r
}

// Route classifies the event and returns the alerts it produces. Events with
// no meaningful impact return an empty slice and no error.
func (r *Router) Route(ctx context.Context, event entity.DomainEvent) ([]entity.Alert, error) {
	alertType, priority, matched := r.classify(event)
	if !matched {
		return nil, nil
	}

	meta := r.enrich(event)

	recipients, err := r.resolve(ctx, event.Entity)
	if err != nil {
		// Shutdown noise aside, a resolver failure must not drop the alert.
		if ctx.Err() != nil {
			return nil, err
		}

		r.metrics.resolveErrors.Inc()
		r.logError(err, "Failed to resolve recipients", "entity", event.Entity.ID)

		recipients = nil
	}

	title, message := renderAlert(alertType, event, meta)

	alert := entity.Alert{
		ID:         uuid.NewString(),
		Type:       alertType,
		Priority:   priority,
		Title:      title,
		Message:    message,
		Entity:     event.Entity,
		Recipients: recipients,
		Channels:   requestedChannels(priority),
		CreatedAt:  r.clock.Now().UTC(),
		State:      entity.AlertPending,
		Event:      &event,
	}

	r.metrics.alerts.WithLabelValues(priority.String()).Inc()
	r.logInfo(1, "Routed alert", "alert", alert.ID, "type", alertType, "priority", priority.String(), "recipients", len(recipients))

	return []entity.Alert{alert}, nil
}

// classify maps an event to an alert type and priority. The boolean reports
// whether the event produces an alert at all.
func (r *Router) classify(event entity.DomainEvent) (entity.AlertType, entity.Priority, bool) {
	delta := fantasyDelta(event)

	var alertType entity.AlertType

	var priority entity.Priority

	switch event.Kind {
	case entity.EventStatusChange:
		if event.Status == nil {
			return "", 0, false
		}

		if event.Status.Subtype == subtypeInjury {
			alertType, priority = entity.AlertInjury, entity.PriorityCritical
		} else {
			alertType, priority = entity.AlertStatus, entity.PriorityMedium
		}
	case entity.EventOccurrence:
		if event.Occurrence == nil || math.Abs(delta) < r.conf.MinFantasyDelta {
			return "", 0, false
		}

		if event.Occurrence.Subtype == subtypeTouchdown && delta > touchdownHighThreshold {
			alertType, priority = entity.AlertScoring, entity.PriorityHigh
		} else {
			alertType, priority = entity.AlertScoring, entity.PriorityMedium
		}
	case entity.EventMetricUpdate:
		if math.Abs(delta) < r.conf.MinFantasyDelta {
			return "", 0, false
		}

		alertType, priority = entity.AlertPerformance, entity.PriorityMedium
	case entity.EventQuoteUpdate:
		if !r.quoteMoved(event.Quote) {
			return "", 0, false
		}

		alertType, priority = entity.AlertMarket, entity.PriorityMedium
	default:
		return "", 0, false
	}

	// A double-digit swing is critical whatever produced it.
	if math.Abs(delta) > criticalDeltaThreshold {
		priority = entity.PriorityCritical
	}

	return alertType, priority, true
}

// enrich fills descriptive fields the inbound payload omitted from the
// cache's latest snapshot. Event data always wins over cached data.
func (r *Router) enrich(event entity.DomainEvent) entity.EntityMeta {
	snapshot, ok := r.cache.Get(event.Entity)
	if !ok {
		return event.Meta
	}

	return event.Meta.Merge(snapshot.Meta)
}

func (r *Router) resolve(ctx context.Context, ref entity.EntityRef) ([]entity.UserID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.conf.ResolveTimeout)
	defer cancel()

	return r.resolver.ResolveAffectedUsers(ctx, ref)
}

func (r *Router) quoteMoved(quote *entity.QuoteUpdate) bool {
	if quote == nil || quote.PrevPrice.IsZero() {
		return false
	}

	move := quote.Price.Sub(quote.PrevPrice).Abs().Div(quote.PrevPrice.Abs())

	return move.GreaterThanOrEqual(decimal.NewFromFloat(r.conf.QuoteMoveThreshold))
}

// requestedChannels is the channel set an alert asks for before user
// preferences narrow it down.
func requestedChannels(priority entity.Priority) []entity.ChannelID {
	switch priority {
	case entity.PriorityCritical:
		return []entity.ChannelID{entity.ChannelWebsocket, entity.ChannelPush, entity.ChannelSMS, entity.ChannelEmail}
	case entity.PriorityHigh:
		return []entity.ChannelID{entity.ChannelWebsocket, entity.ChannelPush, entity.ChannelSMS}
	default:
		return []entity.ChannelID{entity.ChannelWebsocket, entity.ChannelPush}
	}
}

func renderAlert(alertType entity.AlertType, event entity.DomainEvent, meta entity.EntityMeta) (string, string) {
	name := meta.Name
	if name == "" {
		name = event.Entity.ID
	}

	switch alertType {
	case entity.AlertInjury:
		title := fmt.Sprintf("Injury: %s", name)
		message := fmt.Sprintf("%s status changed from %q to %q", describe(name, meta), event.Status.OldStatus, event.Status.NewStatus)

		if event.Status.Detail != "" {
			message = fmt.Sprintf("%s (%s)", message, event.Status.Detail)
		}

		return title, message
	case entity.AlertStatus:
		title := fmt.Sprintf("Status update: %s", name)
		message := fmt.Sprintf("%s is now %q", describe(name, meta), event.Status.NewStatus)

		return title, message
	case entity.AlertScoring:
		title := fmt.Sprintf("Big play: %s", name)
		message := event.Occurrence.Description

		if message == "" {
			message = fmt.Sprintf("%s recorded a %s", describe(name, meta), event.Occurrence.Subtype)
		}

		return title, message
	case entity.AlertPerformance:
		delta := fantasyDelta(event)
		title := fmt.Sprintf("Fantasy swing: %s", name)
		message := fmt.Sprintf("%s moved %+.1f fantasy points", describe(name, meta), delta)

		return title, message
	case entity.AlertMarket:
		symbol := event.Quote.Symbol
		if symbol == "" {
			symbol = event.Entity.ID
		}

		title := fmt.Sprintf("Line move: %s", symbol)
		message := fmt.Sprintf("%s moved from %s to %s", symbol, event.Quote.PrevPrice.String(), event.Quote.Price.String())

		return title, message
	default:
		return fmt.Sprintf("Update: %s", name), fmt.Sprintf("New activity for %s", name)
	}
}

// describe renders "name (position, team)" with whatever meta is known.
func describe(name string, meta entity.EntityMeta) string {
	switch {
	case meta.Position != "" && meta.Team != "":
		return fmt.Sprintf("%s (%s, %s)", name, meta.Position, meta.Team)
	case meta.Team != "":
		return fmt.Sprintf("%s (%s)", name, meta.Team)
	case meta.Position != "":
		return fmt.Sprintf("%s (%s)", name, meta.Position)
	default:
		return name
	}
}

func (r *Router) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r *Router) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}
