package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/delivery/channel"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

const (
	metricsNamespace = "livewire"

	defaultWorkers  = 4
	resubmitTimeout = 10 * time.Second
)

// Submitter accepts re-submitted work: digests coming out of a flush and
// alerts deferred past quiet hours.
type Submitter interface {
	Submit(ctx context.Context, alert entity.Alert) error
}

// Engine applies per-recipient preferences to each alert and hands it to
// the channel senders under per-channel rate and retry policies. One
// recipient's failure never blocks the others.
type Engine struct {
	conf     config.Delivery
	registry *channel.Registry
	prefs    repo.PreferenceStore
	clock    clockwork.Clock

	policies map[entity.ChannelID]entity.ChannelPolicy
	rates    map[entity.ChannelID]*RateWindow
	buffer   *Buffer

	submitter Submitter
	logger    *logr.Logger

	metrics engineMetrics
}

type engineMetrics struct {
	results     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	flushes     prometheus.Counter
}

func NewEngine(conf config.Delivery, registry *channel.Registry, prefs repo.PreferenceStore, clock clockwork.Clock, promRegistry prometheus.Registerer) (*Engine, error) {
	metrics, err := createEngineMetrics(promRegistry)
	if err != nil {
		return nil, err
	}

	policies := mapPolicies(conf)

	rates := make(map[entity.ChannelID]*RateWindow, len(policies))
	for id, policy := range policies {
		rates[id] = NewRateWindow(policy.MaxPerMinute, policy.MaxPerHour, policy.MaxPerDay, clock)
	}

	return &Engine{
		conf:     conf,
		registry: registry,
		prefs:    prefs,
		clock:    clock,
		policies: policies,
		rates:    rates,
		buffer:   NewBuffer(),
		metrics:  metrics,
	}, nil
}

func createEngineMetrics(registry prometheus.Registerer) (engineMetrics, error) {
	ret := engineMetrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "results_total",
			Help:      "Delivery results by channel and outcome.",
		}, []string{"channel", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "latency_ms",
			Help:      "Channel send latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"channel"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "rate_limited_total",
			Help:      "Sends denied by a channel rate window.",
		}, []string{"channel"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "delivery",
			Name:      "batches_flushed_total",
			Help:      "Digest batches flushed.",
		}),
	}

	for _, metric := range []prometheus.Collector{ret.results, ret.latency, ret.rateLimited, ret.flushes} {
		err := registry.Register(metric)
		if err != nil {
			return engineMetrics{}, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return ret, nil
}

func mapPolicies(conf config.Delivery) map[entity.ChannelID]entity.ChannelPolicy {
	perChannel := map[entity.ChannelID]config.Policy{
		entity.ChannelWebsocket: conf.Policies.Websocket,
		entity.ChannelPush:      conf.Policies.Push,
		entity.ChannelSMS:       conf.Policies.SMS,
		entity.ChannelEmail:     conf.Policies.Email,
	}

	ret := make(map[entity.ChannelID]entity.ChannelPolicy, len(perChannel))

	for id, policy := range perChannel {
		ret[id] = entity.ChannelPolicy{
			Channel:       id,
			MaxPerMinute:  policy.MaxPerMinute,
			MaxPerHour:    policy.MaxPerHour,
			MaxPerDay:     policy.MaxPerDay,
			Batchable:     policy.Batchable,
			BatchInterval: conf.BatchFlushInterval,
			RetryAttempts: policy.RetryAttempts,
			RetryDelay:    policy.RetryDelay,
		}
	}

	return ret
}

func (e *Engine) WithLogger(logger logr.Logger) *Engine {
	e.logger = &logger

	return e
}

// WithSubmitter sets the sink deferred alerts and digests go back through,
// usually the dispatcher.
func (e *Engine) WithSubmitter(submitter Submitter) *Engine {
	e.submitter = submitter

	return e
}

// Send fans the alert out to its recipients and reports one result per
// channel attempted per recipient, plus one per recipient filtered out.
func (e *Engine) Send(ctx context.Context, alert entity.Alert) ([]entity.DeliveryResult, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers())

	var mu sync.Mutex
	results := make([]entity.DeliveryResult, 0, len(alert.Recipients))

	for _, user := range alert.Recipients {
		group.Go(func() error {
			recipientResults := e.sendToRecipient(groupCtx, alert, user)

			mu.Lock()
			results = append(results, recipientResults...)
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	for _, result := range results {
		e.observe(result)
	}

	if ctx.Err() != nil {
		return results, ctx.Err()
	}

	return results, nil
}

// sendToRecipient walks the preference filters in order, then tries every
// channel left. The order matters: a disabled type must win over quiet
// hours, and quiet hours over batching.
func (e *Engine) sendToRecipient(ctx context.Context, alert entity.Alert, user entity.UserID) []entity.DeliveryResult {
	pref := e.preference(ctx, alert, user)

	if pref.Mode(alert.Type) == entity.ModeDisabled {
		return []entity.DeliveryResult{filtered(alert, user, entity.OutcomeSkipped, "alert type disabled")}
	}

	if alert.Priority < pref.MinPriority {
		return []entity.DeliveryResult{filtered(alert, user, entity.OutcomeSkipped, "below minimum priority")}
	}

	if alert.Priority != entity.PriorityCritical {
		deferred, result := e.deferForQuietHours(alert, user, pref)
		if deferred {
			return []entity.DeliveryResult{result}
		}

		if alert.Type != entity.AlertDigest && pref.Mode(alert.Type) == entity.ModeBatched {
			e.buffer.Add(alert, user)

			return []entity.DeliveryResult{filtered(alert, user, entity.OutcomeRescheduled, "accumulated for digest")}
		}
	}

	channels := enabledChannels(alert, pref)
	if len(channels) == 0 {
		return []entity.DeliveryResult{filtered(alert, user, entity.OutcomeSkipped, "no enabled channel")}
	}

	results := make([]entity.DeliveryResult, 0, len(channels))
	for _, id := range channels {
		results = append(results, e.sendOnChannel(ctx, alert, user, pref, id))
	}

	return results
}

// deferForQuietHours schedules a single-recipient copy for the end of the
// quiet window. A malformed timezone must not mute the user, so it is
// logged and treated as no quiet hours.
func (e *Engine) deferForQuietHours(alert entity.Alert, user entity.UserID, pref entity.Preference) (bool, entity.DeliveryResult) {
	active, end, err := pref.Quiet.Window(e.clock.Now())
	if err != nil {
		e.logError(err, "Ignoring quiet hours", "user", user)

		return false, entity.DeliveryResult{}
	}

	if !active {
		return false, entity.DeliveryResult{}
	}

	e.scheduleResubmit(alert, user, end)

	return true, filtered(alert, user, entity.OutcomeRescheduled,
		fmt.Sprintf("quiet hours until %s", end.UTC().Format(time.RFC3339)))
}

// scheduleResubmit re-submits a copy narrowed to one recipient when the
// quiet window ends. Timers do not survive a restart; the history entry
// still shows the reschedule.
func (e *Engine) scheduleResubmit(alert entity.Alert, user entity.UserID, at time.Time) {
	if e.submitter == nil {
		return
	}

	deferred := alert
	deferred.Recipients = []entity.UserID{user}

	e.clock.AfterFunc(at.Sub(e.clock.Now()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), resubmitTimeout)
		defer cancel()

		err := e.submitter.Submit(ctx, deferred)
		if err != nil {
			e.logError(err, "Failed to re-submit deferred alert", "alert", deferred.ID, "user", user)
		}
	})
}

func (e *Engine) sendOnChannel(ctx context.Context, alert entity.Alert, user entity.UserID, pref entity.Preference, id entity.ChannelID) entity.DeliveryResult {
	ret := entity.DeliveryResult{
		AlertID: alert.ID,
		User:    user,
		Channel: id,
	}

	sender, ok := e.registry.Get(id)
	if !ok {
		ret.Outcome = entity.OutcomeFailed
		ret.Reason = "no sender registered"

		return ret
	}

	// One rate slot covers the attempt including its retries.
	rate, ok := e.rates[id]
	if ok && !rate.Allow() {
		e.metrics.rateLimited.WithLabelValues(string(id)).Inc()

		ret.Outcome = entity.OutcomeRateLimited
		ret.Reason = "rate limit exceeded"

		return ret
	}

	policy := e.policies[id]
	start := e.clock.Now()

	delivered := false

	err := retry.Do(
		func() error {
			ret.Attempts++

			ok, err := sender.Send(ctx, alert, user, pref.Contact(id))
			if err != nil {
				return err
			}

			delivered = ok

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(policy.RetryAttempts),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, pipeline.ErrRetryableError)
		}),
		retry.Delay(policy.RetryDelay),
		retry.LastErrorOnly(true),
	)

	ret.Latency = e.clock.Since(start)

	switch {
	case err != nil:
		ret.Outcome = entity.OutcomeFailed
		ret.Reason = err.Error()
	case !delivered:
		ret.Outcome = entity.OutcomeSkipped
		ret.Reason = "recipient unreachable"
	default:
		ret.Outcome = entity.OutcomeDelivered
	}

	return ret
}

// Start runs the digest flush loop until ctx is done, then flushes once
// more so accumulated batches survive an orderly shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.logInfo(0, "Start delivery engine", "flushInterval", e.conf.BatchFlushInterval)

	ticker := e.clock.NewTicker(e.conf.BatchFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.flush(context.WithoutCancel(ctx))

			return nil
		case <-ticker.Chan():
			e.flush(ctx)
		}
	}
}

func (e *Engine) flush(ctx context.Context) {
	if e.submitter == nil {
		return
	}

	digests := e.buffer.Flush(e.clock.Now().UTC(), e.channelBatchable)
	if len(digests) == 0 {
		return
	}

	e.metrics.flushes.Add(float64(len(digests)))
	e.logInfo(1, "Flushing digest batches", "count", len(digests))

	for _, digest := range digests {
		err := e.submitter.Submit(ctx, digest)
		if err != nil {
			e.logError(err, "Failed to submit digest", "alert", digest.ID)
		}
	}
}

func (e *Engine) channelBatchable(id entity.ChannelID) bool {
	return e.policies[id].Batchable
}

// preference falls back to a permissive default when the store has no
// entry or the lookup fails: the alert's requested channels enabled,
// immediate mode, no minimum priority. Channels without a registered
// contact stay unreachable, so the default cannot spam anyone.
func (e *Engine) preference(ctx context.Context, alert entity.Alert, user entity.UserID) entity.Preference {
	pref, err := e.prefs.GetPreference(ctx, user)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			e.logError(err, "Failed to load preference", "user", user)
		}

		return defaultPreference(alert, user)
	}

	return pref
}

func defaultPreference(alert entity.Alert, user entity.UserID) entity.Preference {
	channels := make(map[entity.ChannelID]bool, len(alert.Channels))
	for _, id := range alert.Channels {
		channels[id] = true
	}

	return entity.Preference{
		User:        user,
		Channels:    channels,
		MinPriority: entity.PriorityLow,
	}
}

func enabledChannels(alert entity.Alert, pref entity.Preference) []entity.ChannelID {
	ret := make([]entity.ChannelID, 0, len(alert.Channels))

	for _, id := range alert.Channels {
		if pref.ChannelEnabled(id) {
			ret = append(ret, id)
		}
	}

	return ret
}

func filtered(alert entity.Alert, user entity.UserID, outcome entity.DeliveryOutcome, reason string) entity.DeliveryResult {
	return entity.DeliveryResult{
		AlertID: alert.ID,
		User:    user,
		Outcome: outcome,
		Reason:  reason,
	}
}

func (e *Engine) observe(result entity.DeliveryResult) {
	label := string(result.Channel)
	if label == "" {
		label = "none"
	}

	e.metrics.results.WithLabelValues(label, string(result.Outcome)).Inc()

	if result.Channel != "" {
		e.metrics.latency.WithLabelValues(label).Observe(float64(result.Latency.Milliseconds()))
	}
}

func (e *Engine) workers() int {
	if e.conf.Workers > 0 {
		return e.conf.Workers
	}

	return defaultWorkers
}

func (e *Engine) logInfo(level int, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.V(level).Info(msg, keysAndValues...)
}

func (e *Engine) logError(err error, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.Error(err, msg, keysAndValues...)
}
