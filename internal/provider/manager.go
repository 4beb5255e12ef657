package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

const (
	metricsNamespace = "livewire"

	lifecycleBuffer   = 64
	deadLetterTimeout = 10 * time.Second
	maxInFlightDumps  = 8
)

// Manager supervises one connection per registered provider: dialing,
// subscribing, reading, reconnecting with exponential backoff, and marking
// feeds degraded when they go quiet. Decoded events go to the shared fan-in
// channel, connection transitions to the lifecycle channel.
//
// All timers run on the injected clock. A provider stuck in backoff never
// blocks another provider's reads.
type Manager struct {
	conf  config.Connection
	clock clockwork.Clock
	out   chan<- entity.DomainEvent

	logger          *logr.Logger
	errorProcessing pipeline.ErrorProcessing

	mu      sync.Mutex
	handles map[entity.ProviderID]*handle
	stopped bool
	wg      sync.WaitGroup

	lifecycle chan entity.LifecycleEvent
	dumpSlots chan struct{}

	metrics managerMetrics
}

// handle is the manager-owned supervision state of one provider. The
// transport, decoder and endpoint are immutable after Register; everything
// else is guarded by the manager mutex.
type handle struct {
	provider  entity.ProviderID
	transport Transport
	decoder   Decoder
	endpoint  Endpoint

	state      entity.ConnState
	lastUpdate time.Time
	failures   int

	stream Stream
	cancel context.CancelFunc
	timer  clockwork.Timer
}

type managerMetrics struct {
	events       *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	state        *prometheus.GaugeVec
}

// HealthStatus is a point-in-time view of one provider connection.
type HealthStatus struct {
	Provider   entity.ProviderID
	State      entity.ConnState
	LastUpdate time.Time
	Failures   int
}

func NewManager(conf config.Connection, clock clockwork.Clock, registry prometheus.Registerer, out chan<- entity.DomainEvent) (*Manager, error) {
	metrics, err := createManagerMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Manager{
		conf:      conf,
		clock:     clock,
		out:       out,
		handles:   map[entity.ProviderID]*handle{},
		lifecycle: make(chan entity.LifecycleEvent, lifecycleBuffer),
		dumpSlots: make(chan struct{}, maxInFlightDumps),
		metrics:   metrics,
	}, nil
}

func createManagerMetrics(registry prometheus.Registerer) (managerMetrics, error) {
	ret := managerMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "events_total",
			Help:      "Decoded events by provider and kind.",
		}, []string{"provider", "kind"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they did not decode.",
		}, []string{"provider"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled.",
		}, []string{"provider"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "connection_state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected, 3 backoff.",
		}, []string{"provider"}),
	}

	for _, collector := range []prometheus.Collector{ret.events, ret.decodeErrors, ret.reconnects, ret.state} {
		err := registry.Register(collector)
		if err != nil {
			return managerMetrics{}, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return ret, nil
}

func (m *Manager) WithLogger(logger logr.Logger) *Manager {
	m.logger = &logger

	return m
}

// WithErrorProcessing sets the sink undecodable frames are dumped to. A nil
// sink means decode errors are only logged and counted.
func (m *Manager) WithErrorProcessing(errorProcessing pipeline.ErrorProcessing) *Manager {
	m.errorProcessing = errorProcessing

	return m
}

// Register adds a provider. All registrations happen before Start.
func (m *Manager) Register(provider entity.ProviderID, transport Transport, decoder Decoder, endpoint Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.handles[provider]
	if ok {
		return fmt.Errorf("provider %q already registered", provider)
	}

	h := &handle{
		provider:  provider,
		transport: transport,
		decoder:   decoder,
		endpoint:  endpoint,
	}

	m.handles[provider] = h
	m.setState(h, entity.StateDisconnected)

	return nil
}

// Start connects every registered provider and supervises them until ctx is
// done, then tears all connections down and waits for the read loops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	providers := make([]entity.ProviderID, 0, len(m.handles))
	for id := range m.handles {
		providers = append(providers, id)
	}
	m.mu.Unlock()

	for _, id := range providers {
		err := m.Connect(ctx, id)
		if err != nil {
			return err
		}
	}

	ticker := m.clock.NewTicker(m.conf.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stop()
			m.wg.Wait()

			return nil
		case <-ticker.Chan():
			m.checkStale(ctx)
		}
	}
}

// Connect starts supervising the provider. It is a no-op when the provider
// is already connecting, connected or backing off. Connecting a provider
// that gave up restarts it with a clean failure count.
func (m *Manager) Connect(ctx context.Context, provider entity.ProviderID) error {
	m.mu.Lock()

	h, ok := m.handles[provider]
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("unknown provider %q", provider)
	}

	if m.stopped {
		m.mu.Unlock()

		return errors.New("manager is stopped")
	}

	if h.state != entity.StateDisconnected {
		m.mu.Unlock()

		return nil
	}

	h.failures = 0
	m.setState(h, entity.StateConnecting)
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		m.connect(ctx, h)
	}()

	return nil
}

// Disconnect stops supervising the provider: pending reconnects are
// cancelled and the connection is torn down. Safe to call twice.
func (m *Manager) Disconnect(provider entity.ProviderID) error {
	m.mu.Lock()

	h, ok := m.handles[provider]
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("unknown provider %q", provider)
	}

	wasActive := h.state != entity.StateDisconnected
	m.deactivate(h)
	m.mu.Unlock()

	if wasActive {
		m.emit(entity.LifecycleEvent{
			Provider: provider,
			Kind:     entity.LifecycleDisconnected,
			Reason:   "disconnect requested",
			At:       m.clock.Now(),
		})
		m.logInfo(0, "Provider disconnected", "provider", provider)
	}

	return nil
}

// Lifecycle exposes connection transitions. The channel is never closed;
// events are dropped when nobody drains it.
func (m *Manager) Lifecycle() <-chan entity.LifecycleEvent {
	return m.lifecycle
}

// Health reports the current state of every registered provider, sorted by
// provider id.
func (m *Manager) Health() []HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	ret := make([]HealthStatus, 0, len(m.handles))

	for _, h := range m.handles {
		ret = append(ret, HealthStatus{
			Provider:   h.provider,
			State:      h.state,
			LastUpdate: h.lastUpdate,
			Failures:   h.failures,
		})
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Provider < ret[j].Provider
	})

	return ret
}

func (m *Manager) connect(ctx context.Context, h *handle) {
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if m.stopped || h.state == entity.StateDisconnected || h.state == entity.StateConnected {
		m.mu.Unlock()

		return
	}
	h.timer = nil
	m.setState(h, entity.StateConnecting)
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.conf.DialTimeout)
	stream, err := h.transport.Dial(dialCtx, h.endpoint)
	cancel()

	if err != nil {
		m.handleFailure(ctx, h, fmt.Errorf("failed to dial: %w", err))

		return
	}

	frame, err := h.decoder.Subscribe(h.endpoint.Topics)
	if err == nil && frame != nil {
		err = stream.Send(ctx, frame)
	}

	if err != nil {
		stream.Close()
		m.handleFailure(ctx, h, fmt.Errorf("failed to subscribe: %w", err))

		return
	}

	connCtx, connCancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopped || ctx.Err() != nil {
		m.mu.Unlock()
		connCancel()
		stream.Close()

		return
	}
	h.stream = stream
	h.cancel = connCancel
	h.failures = 0
	h.lastUpdate = m.clock.Now()
	m.setState(h, entity.StateConnected)
	m.wg.Add(2)
	m.mu.Unlock()

	m.emit(entity.LifecycleEvent{
		Provider: h.provider,
		Kind:     entity.LifecycleConnected,
		At:       m.clock.Now(),
	})
	m.logInfo(0, "Provider connected", "provider", h.provider)

	go m.watchCancel(connCtx, stream)
	go m.readLoop(connCtx, connCancel, h, stream)
}

// watchCancel closes the stream when the connection context ends, so a read
// blocked on a quiet transport unblocks promptly.
func (m *Manager) watchCancel(ctx context.Context, stream Stream) {
	defer m.wg.Done()

	<-ctx.Done()
	stream.Close()
}

func (m *Manager) readLoop(ctx context.Context, cancel context.CancelFunc, h *handle, stream Stream) {
	defer m.wg.Done()
	defer cancel()

	for {
		frame, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Whoever cancelled already handled the transition.
				return
			}

			m.emit(entity.LifecycleEvent{
				Provider: h.provider,
				Kind:     entity.LifecycleDisconnected,
				Reason:   err.Error(),
				At:       m.clock.Now(),
			})
			m.handleFailure(ctx, h, err)

			return
		}

		events, err := m.decode(h, frame)
		if err != nil {
			m.metrics.decodeErrors.WithLabelValues(string(h.provider)).Inc()
			m.logError(err, "Failed to decode frame", "provider", h.provider)
			m.dumpDecodeError(h.provider, frame, err)

			continue
		}

		if len(events) == 0 {
			continue
		}

		for i := range events {
			events[i].Provider = h.provider

			select {
			case m.out <- events[i]:
			case <-ctx.Done():
				return
			}

			m.metrics.events.WithLabelValues(string(h.provider), string(events[i].Kind)).Inc()
		}

		m.mu.Lock()
		h.lastUpdate = m.clock.Now()
		m.mu.Unlock()
	}
}

// decode guards against panicking decoders so a poison frame cannot take
// the read loop down.
func (m *Manager) decode(h *handle, frame []byte) (events []entity.DomainEvent, err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()

	return h.decoder.Decode(frame)
}

func (m *Manager) handleFailure(ctx context.Context, h *handle, failure error) {
	m.logError(failure, "Provider connection failed", "provider", h.provider)

	m.mu.Lock()

	if m.stopped || h.state == entity.StateDisconnected {
		m.mu.Unlock()

		return
	}

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	if h.stream != nil {
		h.stream.Close()
		h.stream = nil
	}

	h.failures++
	failures := h.failures

	if failures >= m.conf.MaxConsecutiveFailures {
		m.setState(h, entity.StateDisconnected)
		m.mu.Unlock()

		m.emit(entity.LifecycleEvent{
			Provider: h.provider,
			Kind:     entity.LifecycleFailed,
			Reason:   failure.Error(),
			Attempts: failures,
			At:       m.clock.Now(),
		})
		m.logError(failure, "Provider gave up reconnecting", "provider", h.provider, "failures", failures)

		return
	}

	m.setState(h, entity.StateBackoff)
	m.scheduleReconnect(ctx, h, failures-1)
	m.mu.Unlock()
}

// checkStale forces a reconnect for connected providers that have not
// decoded an event within the staleness threshold.
func (m *Manager) checkStale(ctx context.Context) {
	now := m.clock.Now()
	degraded := []entity.LifecycleEvent{}

	m.mu.Lock()
	for _, h := range m.handles {
		if h.state != entity.StateConnected {
			continue
		}

		age := now.Sub(h.lastUpdate)
		if age < m.conf.StaleThreshold {
			continue
		}

		if h.cancel != nil {
			h.cancel()
			h.cancel = nil
		}

		if h.stream != nil {
			h.stream.Close()
			h.stream = nil
		}

		m.setState(h, entity.StateBackoff)
		m.scheduleReconnect(ctx, h, h.failures)

		degraded = append(degraded, entity.LifecycleEvent{
			Provider: h.provider,
			Kind:     entity.LifecycleDegraded,
			Reason:   fmt.Sprintf("no update for %v", age),
			Attempts: h.failures,
			At:       now,
		})
	}
	m.mu.Unlock()

	for _, event := range degraded {
		m.emit(event)
		m.logInfo(0, "Provider feed went stale", "provider", event.Provider, "reason", event.Reason)
	}
}

// scheduleReconnect arms the next dial attempt. Caller holds the mutex.
func (m *Manager) scheduleReconnect(ctx context.Context, h *handle, priorFailures int) {
	delay := m.backoffDelay(priorFailures)

	m.metrics.reconnects.WithLabelValues(string(h.provider)).Inc()
	m.logInfo(0, "Scheduling reconnect", "provider", h.provider, "delay", delay)

	h.timer = m.clock.AfterFunc(delay, func() {
		m.reconnect(ctx, h)
	})
}

func (m *Manager) reconnect(ctx context.Context, h *handle) {
	m.mu.Lock()
	if m.stopped || ctx.Err() != nil {
		m.mu.Unlock()

		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()

	m.connect(ctx, h)
}

// backoffDelay doubles the base delay per consecutive failure, capped at
// the configured maximum.
func (m *Manager) backoffDelay(failures int) time.Duration {
	delay := m.conf.BackoffBaseDelay

	for i := 0; i < failures; i++ {
		delay *= 2

		if delay >= m.conf.BackoffMaxDelay {
			return m.conf.BackoffMaxDelay
		}
	}

	if delay > m.conf.BackoffMaxDelay {
		return m.conf.BackoffMaxDelay
	}

	return delay
}

func (m *Manager) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true

	for _, h := range m.handles {
		m.deactivate(h)
	}
}

// deactivate tears one provider down. Caller holds the mutex.
func (m *Manager) deactivate(h *handle) {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	if h.stream != nil {
		h.stream.Close()
		h.stream = nil
	}

	m.setState(h, entity.StateDisconnected)
}

// setState updates the handle state and the state gauge. Caller holds the
// mutex.
func (m *Manager) setState(h *handle, state entity.ConnState) {
	h.state = state
	m.metrics.state.WithLabelValues(string(h.provider)).Set(float64(state))
}

func (m *Manager) emit(event entity.LifecycleEvent) {
	select {
	case m.lifecycle <- event:
	default:
		m.logInfo(1, "Lifecycle event dropped", "provider", event.Provider, "kind", event.Kind)
	}
}

// dumpDecodeError hands the frame to the error sink without blocking the
// read loop. In-flight dumps are bounded; a poison stream loses dumps, not
// reads.
func (m *Manager) dumpDecodeError(provider entity.ProviderID, frame []byte, decodeErr error) {
	if m.errorProcessing == nil {
		return
	}

	select {
	case m.dumpSlots <- struct{}{}:
	default:
		m.logInfo(1, "Decode error dump skipped", "provider", provider)

		return
	}

	processingError := pipeline.NewErrProcessingError(decodeErr, pipeline.DecodeCategory, []pipeline.Input{{
		Source: "frame",
		Key:    string(provider),
		Value:  frame,
	}})

	go func() {
		defer func() {
			<-m.dumpSlots
		}()

		ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
		defer cancel()

		err := m.errorProcessing.Process(ctx, processingError)
		if err != nil {
			m.logError(err, "Failed to dump decode error", "provider", provider)
		}
	}()
}

func (m *Manager) logInfo(level int, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.V(level).Info(msg, keysAndValues...)
}

func (m *Manager) logError(err error, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.Error(err, msg, keysAndValues...)
}
