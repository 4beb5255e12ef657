package provider_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/provider"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

var errStreamClosed = errors.New("stream closed")

// scriptStream is a connection fed by the test. Close or fail unblocks a
// pending Read.
type scriptStream struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	sent    [][]byte
	readErr error
}

func newScriptStream() *scriptStream {
	return &scriptStream{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (s *scriptStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.readErr != nil {
			return nil, s.readErr
		}

		return nil, errStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptStream) Send(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, payload)

	return nil
}

func (s *scriptStream) Close() error {
	s.once.Do(func() {
		close(s.done)
	})

	return nil
}

func (s *scriptStream) push(frame []byte) {
	s.frames <- frame
}

// fail makes the pending Read return the given error, like a connection
// dropped by the remote side.
func (s *scriptStream) fail(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()

	s.once.Do(func() {
		close(s.done)
	})
}

func (s *scriptStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *scriptStream) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]byte{}, s.sent...)
}

type dialResult struct {
	stream *scriptStream
	err    error
}

func dialOK(stream *scriptStream) dialResult {
	return dialResult{stream: stream}
}

func dialErr(err error) dialResult {
	return dialResult{err: err}
}

// scriptTransport replays one dial result per attempt; the last result
// repeats once the script runs out.
type scriptTransport struct {
	mu      sync.Mutex
	results []dialResult
	dials   int
}

func newScriptTransport(results ...dialResult) *scriptTransport {
	return &scriptTransport{results: results}
}

func (t *scriptTransport) Dial(_ context.Context, _ provider.Endpoint) (provider.Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := t.results[len(t.results)-1]
	if t.dials < len(t.results) {
		result = t.results[t.dials]
	}

	t.dials++

	if result.err != nil {
		return nil, result.err
	}

	return result.stream, nil
}

func (t *scriptTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dials
}

// staticDecoder turns every frame into one event keyed by the frame bytes.
type staticDecoder struct {
	handshake []byte
	decodeErr error
	panicMsg  string
}

func (d staticDecoder) Subscribe(_ []string) ([]byte, error) {
	return d.handshake, nil
}

func (d staticDecoder) Decode(frame []byte) ([]entity.DomainEvent, error) {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}

	if d.decodeErr != nil {
		return nil, d.decodeErr
	}

	return []entity.DomainEvent{{
		Entity: entity.EntityRef{Kind: entity.KindPlayer, ID: string(frame)},
		Kind:   entity.EventOccurrence,
	}}, nil
}

// captureSink records processing errors handed to the error pipeline.
type captureSink struct {
	mu     sync.Mutex
	caught []pipeline.ErrProcessingError
}

func (s *captureSink) Process(_ context.Context, processingError pipeline.ErrProcessingError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.caught = append(s.caught, processingError)

	return nil
}

func (s *captureSink) errors() []pipeline.ErrProcessingError {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]pipeline.ErrProcessingError{}, s.caught...)
}

func connectionConf() config.Connection {
	return config.Connection{
		DialTimeout:            time.Second,
		BackoffBaseDelay:       time.Second,
		BackoffMaxDelay:        30 * time.Second,
		MaxConsecutiveFailures: 3,
		HealthInterval:         5 * time.Second,
		StaleThreshold:         30 * time.Second,
	}
}

type managerFixture struct {
	manager *provider.Manager
	events  chan entity.DomainEvent
}

// startManager registers one provider and runs the supervision loop until
// the test ends. Shutdown is asserted in cleanup.
func startManager(t *testing.T, conf config.Connection, clock clockwork.Clock, transport provider.Transport, decoder provider.Decoder, sink pipeline.ErrorProcessing) managerFixture {
	t.Helper()

	events := make(chan entity.DomainEvent, 16)

	manager, err := provider.NewManager(conf, clock, prometheus.NewPedanticRegistry(), events)
	require.NoError(t, err)

	if sink != nil {
		manager.WithErrorProcessing(sink)
	}

	err = manager.Register("fanstats", transport, decoder, provider.Endpoint{URL: "wss://feeds.test/ws", Topics: []string{"stats.nfl"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- manager.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("manager did not stop")
		}
	})

	return managerFixture{manager: manager, events: events}
}

func waitState(t *testing.T, manager *provider.Manager, state entity.ConnState) {
	t.Helper()

	require.Eventually(t, func() bool {
		health := manager.Health()

		return len(health) == 1 && health[0].State == state
	}, time.Second, 5*time.Millisecond)
}

func drainLifecycle(lifecycle <-chan entity.LifecycleEvent) []entity.LifecycleEvent {
	ret := []entity.LifecycleEvent{}

	for {
		select {
		case event := <-lifecycle:
			ret = append(ret, event)
		default:
			return ret
		}
	}
}

// collectLifecycle drains transitions until count have been seen.
func collectLifecycle(t *testing.T, manager *provider.Manager, count int) []entity.LifecycleEvent {
	t.Helper()

	ret := []entity.LifecycleEvent{}

	require.Eventually(t, func() bool {
		ret = append(ret, drainLifecycle(manager.Lifecycle())...)

		return len(ret) >= count
	}, time.Second, 10*time.Millisecond)

	return ret
}

func lifecycleKinds(events []entity.LifecycleEvent) []entity.LifecycleKind {
	ret := make([]entity.LifecycleKind, 0, len(events))

	for _, event := range events {
		ret = append(ret, event.Kind)
	}

	return ret
}

func TestManagerDeliversDecodedEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := newScriptStream()
	transport := newScriptTransport(dialOK(stream))
	decoder := staticDecoder{handshake: []byte(`{"op":"subscribe","args":["stats.nfl"]}`)}

	fixture := startManager(t, connectionConf(), clock, transport, decoder, nil)

	waitState(t, fixture.manager, entity.StateConnected)

	// The handshake reached the wire before any reads
	frames := stream.sentFrames()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"op":"subscribe","args":["stats.nfl"]}`, string(frames[0]))

	stream.push([]byte("play-77"))

	select {
	case event := <-fixture.events:
		assert.Equal(t, entity.ProviderID("fanstats"), event.Provider)
		assert.Equal(t, "play-77", event.Entity.ID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	health := fixture.manager.Health()
	require.Len(t, health, 1)
	assert.Zero(t, health[0].Failures)
}

func TestManagerReconnectsAfterStreamFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	first := newScriptStream()
	second := newScriptStream()
	transport := newScriptTransport(dialOK(first), dialOK(second))

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{}, nil)

	waitState(t, fixture.manager, entity.StateConnected)

	first.fail(errors.New("connection reset by peer"))

	waitState(t, fixture.manager, entity.StateBackoff)

	// First retry waits the base delay
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		health := fixture.manager.Health()

		return health[0].State == entity.StateConnected && health[0].Failures == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, transport.dialCount())

	transitions := collectLifecycle(t, fixture.manager, 3)
	assert.Equal(t, []entity.LifecycleKind{
		entity.LifecycleConnected,
		entity.LifecycleDisconnected,
		entity.LifecycleConnected,
	}, lifecycleKinds(transitions))
	assert.Contains(t, transitions[1].Reason, "connection reset")

	// The replacement stream keeps delivering
	second.push([]byte("play-78"))

	select {
	case event := <-fixture.events:
		assert.Equal(t, "play-78", event.Entity.ID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered after reconnect")
	}
}

func TestManagerGivesUpAfterRepeatedFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	transport := newScriptTransport(dialErr(errors.New("connection refused")))

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{}, nil)

	require.Eventually(t, func() bool {
		return fixture.manager.Health()[0].Failures == 1
	}, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return fixture.manager.Health()[0].Failures == 2
	}, time.Second, 5*time.Millisecond)

	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool {
		health := fixture.manager.Health()

		return health[0].State == entity.StateDisconnected && health[0].Failures == 3
	}, time.Second, 5*time.Millisecond)

	transitions := collectLifecycle(t, fixture.manager, 1)
	require.Len(t, transitions, 1)
	assert.Equal(t, entity.LifecycleFailed, transitions[0].Kind)
	assert.Equal(t, 3, transitions[0].Attempts)
	assert.Contains(t, transitions[0].Reason, "connection refused")

	// No further attempts are scheduled
	clock.Advance(time.Minute)
	assert.Never(t, func() bool {
		return transport.dialCount() > 3
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestManagerRestartsQuietFeeds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	first := newScriptStream()
	second := newScriptStream()
	transport := newScriptTransport(dialOK(first), dialOK(second))

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{}, nil)

	waitState(t, fixture.manager, entity.StateConnected)

	// Nothing arrives for the whole staleness window
	clock.Advance(30 * time.Second)

	waitState(t, fixture.manager, entity.StateBackoff)

	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return fixture.manager.Health()[0].State == entity.StateConnected && transport.dialCount() == 2
	}, time.Second, 5*time.Millisecond)

	transitions := collectLifecycle(t, fixture.manager, 3)
	assert.Equal(t, []entity.LifecycleKind{
		entity.LifecycleConnected,
		entity.LifecycleDegraded,
		entity.LifecycleConnected,
	}, lifecycleKinds(transitions))
	assert.Contains(t, transitions[1].Reason, "no update")
	assert.True(t, first.closed())
}

func TestManagerDisconnectIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := newScriptStream()
	transport := newScriptTransport(dialOK(stream))

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{}, nil)

	waitState(t, fixture.manager, entity.StateConnected)
	collectLifecycle(t, fixture.manager, 1)

	err := fixture.manager.Disconnect("fanstats")
	require.NoError(t, err)

	assert.True(t, stream.closed())
	assert.Equal(t, entity.StateDisconnected, fixture.manager.Health()[0].State)

	transitions := drainLifecycle(fixture.manager.Lifecycle())
	require.Len(t, transitions, 1)
	assert.Equal(t, entity.LifecycleDisconnected, transitions[0].Kind)

	// Second disconnect is silent
	err = fixture.manager.Disconnect("fanstats")
	require.NoError(t, err)
	assert.Empty(t, drainLifecycle(fixture.manager.Lifecycle()))

	err = fixture.manager.Disconnect("oddsline")
	assert.Error(t, err)
}

func TestManagerDumpsUndecodableFrames(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := newScriptStream()
	transport := newScriptTransport(dialOK(stream))
	sink := &captureSink{}

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{decodeErr: errors.New("not json")}, sink)

	waitState(t, fixture.manager, entity.StateConnected)

	stream.push([]byte("garbage"))

	require.Eventually(t, func() bool {
		return len(sink.errors()) == 1
	}, time.Second, 10*time.Millisecond)

	processingError := sink.errors()[0]
	assert.Equal(t, pipeline.DecodeCategory, processingError.Category)
	require.Len(t, processingError.AdditionalInputs, 1)
	assert.Equal(t, "frame", processingError.AdditionalInputs[0].Source)
	assert.Equal(t, "fanstats", processingError.AdditionalInputs[0].Key)
	assert.Equal(t, []byte("garbage"), processingError.AdditionalInputs[0].Value)

	// A poison frame does not kill the connection or forward anything
	assert.Equal(t, entity.StateConnected, fixture.manager.Health()[0].State)
	assert.Zero(t, len(fixture.events))
}

func TestManagerSurvivesPanickingDecoder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := newScriptStream()
	transport := newScriptTransport(dialOK(stream))
	sink := &captureSink{}

	fixture := startManager(t, connectionConf(), clock, transport, staticDecoder{panicMsg: "boom"}, sink)

	waitState(t, fixture.manager, entity.StateConnected)

	stream.push([]byte("poison"))

	require.Eventually(t, func() bool {
		return len(sink.errors()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, sink.errors()[0].Error(), "decoder panicked")
	assert.Equal(t, entity.StateConnected, fixture.manager.Health()[0].State)
}
