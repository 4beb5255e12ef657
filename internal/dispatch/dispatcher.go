package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
)

const (
	categoryDispatch = "dispatch"

	historyTimeout    = 10 * time.Second
	maxInFlightWrites = 16
)

// Sender delivers one alert to its recipients and reports one result per
// recipient-channel attempt. The delivery engine implements it.
type Sender interface {
	Send(ctx context.Context, alert entity.Alert) ([]entity.DeliveryResult, error)
}

// Dispatcher owns the alert state machine. Non-critical alerts wait in the
// queue for a tick; critical alerts are dispatched synchronously on Submit.
// A failed attempt re-enqueues the alert narrowed to the recipients that
// missed it, keeping the original creation time, until attempts run out.
type Dispatcher struct {
	conf   config.Dispatch
	queue  *Queue
	sender Sender
	clock  clockwork.Clock

	history repo.AlertHistoryWriter
	logger  *logr.Logger

	historySlots chan struct{}
	wg           sync.WaitGroup

	metrics dispatcherMetrics
}

type dispatcherMetrics struct {
	batchSize prometheus.Histogram
}

func NewDispatcher(conf config.Dispatch, queue *Queue, sender Sender, clock clockwork.Clock, registry prometheus.Registerer) (*Dispatcher, error) {
	metrics, err := createDispatcherMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		conf:         conf,
		queue:        queue,
		sender:       sender,
		clock:        clock,
		historySlots: make(chan struct{}, maxInFlightWrites),
		metrics:      metrics,
	}, nil
}

func createDispatcherMetrics(registry prometheus.Registerer) (dispatcherMetrics, error) {
	ret := dispatcherMetrics{
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatch",
			Name:      "batch_size",
			Help:      "Alerts popped per dispatch tick.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}

	err := registry.Register(ret.batchSize)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("failed to register metric: %w", err)
	}

	return ret, nil
}

func (d *Dispatcher) WithLogger(logger logr.Logger) *Dispatcher {
	d.logger = &logger

	return d
}

// WithHistory sets the write-behind sink for settled alerts. A nil writer
// means settlements are only logged.
func (d *Dispatcher) WithHistory(history repo.AlertHistoryWriter) *Dispatcher {
	d.history = history

	return d
}

// Submit accepts a routed alert. Critical alerts skip the queue and are
// dispatched before Submit returns; everything else waits for a tick.
func (d *Dispatcher) Submit(ctx context.Context, alert entity.Alert) error {
	if alert.Priority == entity.PriorityCritical {
		d.dispatch(ctx, alert)

		return nil
	}

	err := d.queue.Push(alert)
	if err != nil {
		return common.NewErrProcessingError(err, categoryDispatch, nil, "failed to enqueue alert %s", alert.ID)
	}

	return nil
}

// Start drains the queue on every tick until ctx is done. Alerts still
// queued at shutdown are discarded, with a log line saying how many.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logInfo(0, "Start dispatching", "tick", d.conf.TickInterval, "batchSize", d.conf.BatchSize)

	ticker := d.clock.NewTicker(d.conf.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dropped := d.queue.Len()
			if dropped > 0 {
				d.logInfo(0, "Discarding queued alerts on shutdown", "count", dropped)
			}

			d.wg.Wait()

			return nil
		case <-ticker.Chan():
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	batch := d.queue.PopBatch(d.conf.BatchSize)
	d.metrics.batchSize.Observe(float64(len(batch)))

	for _, alert := range batch {
		if ctx.Err() != nil {
			return
		}

		d.dispatch(ctx, alert)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, alert entity.Alert) {
	results, err := d.sender.Send(ctx, alert)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		// An engine-level failure counts as a failed attempt for everyone.
		d.logError(err, "Delivery engine failed", "alert", alert.ID)
		d.retryOrFail(alert, results, allUsers(alert.Recipients))

		return
	}

	d.settle(alert, results)
}

// settle applies the per-alert state machine to one attempt's results.
func (d *Dispatcher) settle(alert entity.Alert, results []entity.DeliveryResult) {
	delivered := map[entity.UserID]bool{}
	failed := map[entity.UserID]bool{}
	deferred := 0

	for _, result := range results {
		switch result.Outcome {
		case entity.OutcomeDelivered:
			delivered[result.User] = true
		case entity.OutcomeFailed, entity.OutcomeRateLimited:
			failed[result.User] = true
		case entity.OutcomeRescheduled:
			deferred++
		}
	}

	// A recipient counts as failed only when no channel reached them.
	for user := range delivered {
		delete(failed, user)
	}

	switch {
	case len(failed) > 0:
		if len(delivered) > 0 {
			// The delivered part is final; record it before retrying the rest.
			done := alert
			done.State = entity.AlertDelivered
			done.Recipients = pickUsers(alert.Recipients, delivered)
			d.recordHistory(done, resultsFor(results, delivered))
		}

		d.retryOrFail(alert, results, failed)
	case len(delivered) > 0:
		alert.State = entity.AlertDelivered
		d.logInfo(1, "Alert delivered", "alert", alert.ID, "recipients", len(delivered))
		d.recordHistory(alert, results)
	case deferred > 0:
		// Rescheduled work comes back through Submit; nothing to settle yet.
	default:
		// Every recipient was filtered out, or there were none to begin with.
		alert.State = entity.AlertCancelled
		d.logInfo(1, "Alert cancelled by filtering", "alert", alert.ID)
		d.recordHistory(alert, results)
	}
}

// retryOrFail re-enqueues the alert for the recipients still missing it, or
// marks it failed once attempts are exhausted. The retry keeps the original
// creation time so it does not lose its place in the queue.
func (d *Dispatcher) retryOrFail(alert entity.Alert, results []entity.DeliveryResult, failed map[entity.UserID]bool) {
	alert.Attempts++
	alert.Recipients = pickUsers(alert.Recipients, failed)

	if alert.Attempts >= d.conf.MaxAttempts {
		alert.State = entity.AlertFailed
		d.logInfo(0, "Alert failed permanently", "alert", alert.ID, "attempts", alert.Attempts)
		d.recordHistory(alert, resultsFor(results, failed))

		return
	}

	alert.State = entity.AlertPending

	err := d.queue.Push(alert)
	if err != nil {
		alert.State = entity.AlertFailed
		d.logError(err, "Failed to re-enqueue alert", "alert", alert.ID, "attempts", alert.Attempts)
		d.recordHistory(alert, resultsFor(results, failed))

		return
	}

	d.logInfo(1, "Alert re-enqueued", "alert", alert.ID, "attempts", alert.Attempts, "recipients", len(alert.Recipients))
}

// recordHistory hands the settled alert to the history writer without
// blocking the dispatch path. In-flight writes are bounded; under pressure
// the feed loses entries, not the dispatcher its tick.
func (d *Dispatcher) recordHistory(alert entity.Alert, results []entity.DeliveryResult) {
	if d.history == nil {
		return
	}

	select {
	case d.historySlots <- struct{}{}:
	default:
		d.logInfo(1, "History write skipped", "alert", alert.ID)

		return
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		defer func() {
			<-d.historySlots
		}()

		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()

		err := d.history.WriteAlert(ctx, alert, results)
		if err != nil {
			d.logError(err, "Failed to write alert history", "alert", alert.ID)
		}
	}()
}

func pickUsers(users []entity.UserID, keep map[entity.UserID]bool) []entity.UserID {
	ret := make([]entity.UserID, 0, len(keep))

	for _, user := range users {
		if keep[user] {
			ret = append(ret, user)
		}
	}

	return ret
}

func resultsFor(results []entity.DeliveryResult, keep map[entity.UserID]bool) []entity.DeliveryResult {
	ret := make([]entity.DeliveryResult, 0, len(results))

	for _, result := range results {
		if keep[result.User] {
			ret = append(ret, result)
		}
	}

	return ret
}

func allUsers(users []entity.UserID) map[entity.UserID]bool {
	ret := make(map[entity.UserID]bool, len(users))

	for _, user := range users {
		ret[user] = true
	}

	return ret
}

func (d *Dispatcher) logInfo(level int, msg string, keysAndValues ...any) {
	if d.logger == nil {
		return
	}

	d.logger.V(level).Info(msg, keysAndValues...)
}

func (d *Dispatcher) logError(err error, msg string, keysAndValues ...any) {
	if d.logger == nil {
		return
	}

	d.logger.Error(err, msg, keysAndValues...)
}
