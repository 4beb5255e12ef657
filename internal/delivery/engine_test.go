package delivery_test

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
	"go.uber.org/mock/gomock"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/delivery"
	"github.com/fanpulse/livewire/internal/delivery/channel"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
	"github.com/fanpulse/livewire/internal/domain/repo/mock"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

// fakeChannel scripts one channel sender. The default response delivers.
type fakeChannel struct {
	id      entity.ChannelID
	mu      sync.Mutex
	calls   []channelCall
	respond func(call int, user entity.UserID) (bool, error)
}

type channelCall struct {
	alert   entity.Alert
	user    entity.UserID
	contact string
}

func (c *fakeChannel) ID() entity.ChannelID {
	return c.id
}

func (c *fakeChannel) Send(ctx context.Context, alert entity.Alert, user entity.UserID, contact string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := len(c.calls)
	c.calls = append(c.calls, channelCall{alert: alert, user: user, contact: contact})

	if c.respond == nil {
		return true, nil
	}

	return c.respond(call, user)
}

func (c *fakeChannel) sent() []channelCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]channelCall{}, c.calls...)
}

// fakeSubmitter records alerts coming back through the dispatcher path.
type fakeSubmitter struct {
	mu    sync.Mutex
	calls []entity.Alert
}

func (s *fakeSubmitter) Submit(ctx context.Context, alert entity.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, alert)

	return nil
}

func (s *fakeSubmitter) submissions() []entity.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.Alert{}, s.calls...)
}

func deliveryConf() config.Delivery {
	fast := config.Policy{RetryAttempts: 1, RetryDelay: time.Millisecond}

	return config.Delivery{
		Workers:            2,
		BatchFlushInterval: time.Minute,
		Policies: config.Policies{
			Websocket: fast,
			Push:      config.Policy{Batchable: true, RetryAttempts: 3, RetryDelay: time.Millisecond},
			SMS:       fast,
			Email:     config.Policy{Batchable: true, RetryAttempts: 1, RetryDelay: time.Millisecond},
		},
	}
}

func prefStore(t *testing.T, prefs map[entity.UserID]entity.Preference) repo.PreferenceStore {
	t.Helper()

	ctrl := gomock.NewController(t)
	store := mock.NewMockPreferenceStore(ctrl)
	store.EXPECT().GetPreference(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, user entity.UserID) (entity.Preference, error) {
			pref, ok := prefs[user]
			if !ok {
				return entity.Preference{}, repo.ErrNotFound
			}

			return pref, nil
		}).AnyTimes()

	return store
}

func newEngine(t *testing.T, conf config.Delivery, channels []*fakeChannel, prefs map[entity.UserID]entity.Preference, clock clockwork.Clock) (*delivery.Engine, *fakeSubmitter) {
	t.Helper()

	registry := channel.NewRegistry()
	for _, ch := range channels {
		registry.Register(ch)
	}

	engine, err := delivery.NewEngine(conf, registry, prefStore(t, prefs), clock, prometheus.NewPedanticRegistry())
	require.NoError(t, err)

	submitter := &fakeSubmitter{}
	engine.WithSubmitter(submitter)

	return engine, submitter
}

func scoringAlert(id string, priority entity.Priority, channels []entity.ChannelID, recipients ...entity.UserID) entity.Alert {
	return entity.Alert{
		ID:         id,
		Type:       entity.AlertScoring,
		Priority:   priority,
		Title:      "Scoring update",
		Message:    "J. Carter scored",
		Entity:     entity.EntityRef{Kind: entity.KindPlayer, ID: "p1"},
		Recipients: recipients,
		Channels:   channels,
		CreatedAt:  time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC),
		State:      entity.AlertPending,
	}
}

func prefWith(user entity.UserID, enabled ...entity.ChannelID) entity.Preference {
	channels := map[entity.ChannelID]bool{}
	for _, id := range enabled {
		channels[id] = true
	}

	return entity.Preference{
		User:     user,
		Channels: channels,
		Contacts: map[entity.ChannelID]string{
			entity.ChannelPush:  "device-" + string(user),
			entity.ChannelSMS:   "+1555" + string(user),
			entity.ChannelEmail: string(user) + "@example.com",
		},
	}
}

func resultsByUser(results []entity.DeliveryResult) map[entity.UserID][]entity.DeliveryResult {
	ret := map[entity.UserID][]entity.DeliveryResult{}
	for _, result := range results {
		ret[result.User] = append(ret[result.User], result)
	}

	return ret
}

func TestSendDeliversOnEnabledChannels(t *testing.T) {
	t.Parallel()

	ws := &fakeChannel{id: entity.ChannelWebsocket}
	push := &fakeChannel{id: entity.ChannelPush}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws, push},
		map[entity.UserID]entity.Preference{
			"u1": prefWith("u1", entity.ChannelWebsocket, entity.ChannelPush),
		}, clockwork.NewFakeClock())

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket, entity.ChannelPush}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.Equal(t, "a1", result.AlertID)
		assert.Equal(t, entity.UserID("u1"), result.User)
		assert.Equal(t, entity.OutcomeDelivered, result.Outcome)
		assert.Equal(t, uint(1), result.Attempts)
	}

	require.Len(t, push.sent(), 1)
	assert.Equal(t, "device-u1", push.sent()[0].contact)
	require.Len(t, ws.sent(), 1)
}

func TestSendFiltersRecipients(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		pref       entity.Preference
		priority   entity.Priority
		outcome    entity.DeliveryOutcome
		reason     string
		wantCalled bool
	}{
		{
			name: "disabled alert type is skipped",
			pref: entity.Preference{
				User:     "u1",
				Channels: map[entity.ChannelID]bool{entity.ChannelWebsocket: true},
				Modes:    map[entity.AlertType]entity.DeliveryMode{entity.AlertScoring: entity.ModeDisabled},
			},
			priority: entity.PriorityMedium,
			outcome:  entity.OutcomeSkipped,
			reason:   "alert type disabled",
		},
		{
			name: "below minimum priority is skipped",
			pref: entity.Preference{
				User:        "u1",
				Channels:    map[entity.ChannelID]bool{entity.ChannelWebsocket: true},
				MinPriority: entity.PriorityHigh,
			},
			priority: entity.PriorityMedium,
			outcome:  entity.OutcomeSkipped,
			reason:   "below minimum priority",
		},
		{
			name: "empty channel intersection is skipped",
			pref: entity.Preference{
				User:     "u1",
				Channels: map[entity.ChannelID]bool{entity.ChannelPush: true},
			},
			priority: entity.PriorityMedium,
			outcome:  entity.OutcomeSkipped,
			reason:   "no enabled channel",
		},
		{
			name: "critical passes the minimum priority bar",
			pref: entity.Preference{
				User:        "u1",
				Channels:    map[entity.ChannelID]bool{entity.ChannelWebsocket: true},
				MinPriority: entity.PriorityHigh,
			},
			priority:   entity.PriorityCritical,
			outcome:    entity.OutcomeDelivered,
			wantCalled: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			ws := &fakeChannel{id: entity.ChannelWebsocket}

			engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws},
				map[entity.UserID]entity.Preference{"u1": testCase.pref}, clockwork.NewFakeClock())

			alert := scoringAlert("a1", testCase.priority,
				[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

			results, err := engine.Send(context.Background(), alert)
			require.NoError(t, err)
			require.Len(t, results, 1)

			assert.Equal(t, testCase.outcome, results[0].Outcome)
			if testCase.reason != "" {
				assert.Equal(t, testCase.reason, results[0].Reason)
			}

			if testCase.wantCalled {
				assert.Len(t, ws.sent(), 1)
			} else {
				assert.Empty(t, ws.sent())
			}
		})
	}
}

func TestQuietHoursDeferAndResubmit(t *testing.T) {
	t.Parallel()

	// 23:00 UTC, inside a 22:00-08:00 quiet window.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 11, 2, 23, 0, 0, 0, time.UTC))

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	pref := prefWith("u1", entity.ChannelWebsocket)
	pref.Quiet = entity.QuietHours{StartMinute: 22 * 60, EndMinute: 8 * 60, Timezone: "UTC"}

	engine, submitter := newEngine(t, deliveryConf(), []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{"u1": pref}, clock)

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeRescheduled, results[0].Outcome)
	assert.Contains(t, results[0].Reason, "quiet hours until")
	assert.Empty(t, ws.sent(), "nothing goes out during quiet hours")

	// The window ends at 08:00 the next morning; the timer must hand the
	// alert back for a fresh dispatch then, and not a tick before.
	clock.Advance(8 * time.Hour)
	assert.Empty(t, submitter.submissions())

	clock.Advance(time.Hour)

	require.Eventually(t, func() bool {
		return len(submitter.submissions()) == 1
	}, time.Second, time.Millisecond)

	resubmitted := submitter.submissions()[0]
	assert.Equal(t, "a1", resubmitted.ID)
	assert.Equal(t, []entity.UserID{"u1"}, resubmitted.Recipients)
}

func TestCriticalIgnoresQuietHours(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 11, 2, 23, 0, 0, 0, time.UTC))

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	pref := prefWith("u1", entity.ChannelWebsocket)
	pref.Quiet = entity.QuietHours{StartMinute: 22 * 60, EndMinute: 8 * 60, Timezone: "UTC"}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{"u1": pref}, clock)

	alert := scoringAlert("a1", entity.PriorityCritical,
		[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeDelivered, results[0].Outcome)
	assert.Len(t, ws.sent(), 1)
}

func TestRetryOnRetryableErrors(t *testing.T) {
	t.Parallel()

	push := &fakeChannel{
		id: entity.ChannelPush,
		respond: func(call int, user entity.UserID) (bool, error) {
			if call < 2 {
				return false, pipeline.NewErrRetryableError(errors.New("gateway hiccup"))
			}

			return true, nil
		},
	}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{"u1": prefWith("u1", entity.ChannelPush)},
		clockwork.NewFakeClock())

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelPush}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeDelivered, results[0].Outcome)
	assert.Equal(t, uint(3), results[0].Attempts)
	assert.Len(t, push.sent(), 3)
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	push := &fakeChannel{
		id: entity.ChannelPush,
		respond: func(call int, user entity.UserID) (bool, error) {
			return false, errors.New("payload rejected")
		},
	}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{"u1": prefWith("u1", entity.ChannelPush)},
		clockwork.NewFakeClock())

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelPush}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Reason, "payload rejected")
	assert.Equal(t, uint(1), results[0].Attempts, "permanent errors burn a single attempt")
	assert.Len(t, push.sent(), 1)
}

func TestUnreachableRecipientIsSkipped(t *testing.T) {
	t.Parallel()

	ws := &fakeChannel{
		id: entity.ChannelWebsocket,
		respond: func(call int, user entity.UserID) (bool, error) {
			return false, nil
		},
	}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{"u1": prefWith("u1", entity.ChannelWebsocket)},
		clockwork.NewFakeClock())

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, "recipient unreachable", results[0].Reason)
	assert.Len(t, ws.sent(), 1, "unreachable is discovered by trying, not retried")
}

func TestRateLimitDeniesOverCap(t *testing.T) {
	t.Parallel()

	conf := deliveryConf()
	conf.Policies.Websocket.MaxPerMinute = 2

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	engine, _ := newEngine(t, conf, []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{"u1": prefWith("u1", entity.ChannelWebsocket)},
		clockwork.NewFakeClock())

	outcomes := []entity.DeliveryOutcome{}

	for i := 0; i < 3; i++ {
		alert := scoringAlert("a1", entity.PriorityMedium,
			[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

		results, err := engine.Send(context.Background(), alert)
		require.NoError(t, err)
		require.Len(t, results, 1)

		outcomes = append(outcomes, results[0].Outcome)
	}

	assert.Equal(t, []entity.DeliveryOutcome{
		entity.OutcomeDelivered,
		entity.OutcomeDelivered,
		entity.OutcomeRateLimited,
	}, outcomes)
	assert.Len(t, ws.sent(), 2, "a denied send never reaches the channel")
}

func TestInjuryFanOutAcrossOwners(t *testing.T) {
	t.Parallel()

	// One owner takes the push immediately; the other has push disabled and
	// nothing else enabled, so the critical alert reaches them nowhere.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 11, 2, 23, 0, 0, 0, time.UTC))

	push := &fakeChannel{id: entity.ChannelPush}

	u2 := entity.Preference{
		User:     "u2",
		Channels: map[entity.ChannelID]bool{entity.ChannelPush: false},
		Quiet:    entity.QuietHours{StartMinute: 22 * 60, EndMinute: 8 * 60, Timezone: "UTC"},
	}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{
			"u1": prefWith("u1", entity.ChannelPush),
			"u2": u2,
		}, clock)

	alert := entity.Alert{
		ID:         "inj1",
		Type:       entity.AlertInjury,
		Priority:   entity.PriorityCritical,
		Title:      "Injury: J. Carter",
		Recipients: []entity.UserID{"u1", "u2"},
		Channels:   []entity.ChannelID{entity.ChannelPush},
		CreatedAt:  clock.Now(),
		State:      entity.AlertPending,
	}

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)

	byUser := resultsByUser(results)

	require.Len(t, byUser["u1"], 1)
	assert.Equal(t, entity.OutcomeDelivered, byUser["u1"][0].Outcome)
	assert.Equal(t, entity.ChannelPush, byUser["u1"][0].Channel)

	require.Len(t, byUser["u2"], 1)
	assert.Equal(t, entity.OutcomeSkipped, byUser["u2"][0].Outcome)
	assert.Equal(t, "no enabled channel", byUser["u2"][0].Reason)

	sent := push.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, entity.UserID("u1"), sent[0].user)
}

func TestUnknownUserGetsDefaultPreference(t *testing.T) {
	t.Parallel()

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{}, clockwork.NewFakeClock())

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket}, "stranger")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeDelivered, results[0].Outcome)
	require.Len(t, ws.sent(), 1)
	assert.Empty(t, ws.sent()[0].contact, "an unknown user has no registered contact")
}

func TestPreferenceLookupErrorFallsBack(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock.NewMockPreferenceStore(ctrl)
	store.EXPECT().GetPreference(gomock.Any(), gomock.Any()).
		Return(entity.Preference{}, errors.New("store down")).AnyTimes()

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	registry := channel.NewRegistry()
	registry.Register(ws)

	engine, err := delivery.NewEngine(deliveryConf(), registry, store,
		clockwork.NewFakeClock(), prometheus.NewPedanticRegistry())
	require.NoError(t, err)

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

	results, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeDelivered, results[0].Outcome,
		"a broken preference store must not mute delivery")
}

func TestBatchedModeAccumulatesAndFlushes(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()

	push := &fakeChannel{id: entity.ChannelPush}

	pref := prefWith("u1", entity.ChannelPush)
	pref.Modes = map[entity.AlertType]entity.DeliveryMode{entity.AlertScoring: entity.ModeBatched}

	engine, submitter := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{"u1": pref}, clock)

	for _, id := range []string{"a1", "a2"} {
		alert := scoringAlert(id, entity.PriorityMedium,
			[]entity.ChannelID{entity.ChannelPush}, "u1")

		results, err := engine.Send(context.Background(), alert)
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, entity.OutcomeRescheduled, results[0].Outcome)
		assert.Equal(t, "accumulated for digest", results[0].Reason)
	}

	assert.Empty(t, push.sent(), "batched alerts wait for the flush")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = engine.Start(ctx)
	}()

	err := clock.BlockUntilContext(ctx, 1)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return len(submitter.submissions()) == 1
	}, time.Second, time.Millisecond)

	digest := submitter.submissions()[0]
	assert.Equal(t, entity.AlertDigest, digest.Type)
	assert.Equal(t, "2 scoring updates", digest.Title)
	assert.Equal(t, []entity.UserID{"u1"}, digest.Recipients)
	assert.Equal(t, []entity.ChannelID{entity.ChannelPush}, digest.Channels)
	require.NotNil(t, digest.Summary)
	assert.Equal(t, 2, digest.Summary.Count)

	cancel()
	<-done
}

func TestDigestAlertIsNotReBatched(t *testing.T) {
	t.Parallel()

	push := &fakeChannel{id: entity.ChannelPush}

	// Scoring is batched, but a digest must go straight out or it would
	// loop through the buffer forever.
	pref := prefWith("u1", entity.ChannelPush)
	pref.Modes = map[entity.AlertType]entity.DeliveryMode{entity.AlertScoring: entity.ModeBatched}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{"u1": pref}, clockwork.NewFakeClock())

	digest := entity.Alert{
		ID:         "d1",
		Type:       entity.AlertDigest,
		Priority:   entity.PriorityMedium,
		Title:      "3 scoring updates",
		Recipients: []entity.UserID{"u1"},
		Channels:   []entity.ChannelID{entity.ChannelPush},
		State:      entity.AlertPending,
		Summary:    &entity.BatchSummary{User: "u1", Type: entity.AlertScoring, Count: 3},
	}

	results, err := engine.Send(context.Background(), digest)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, entity.OutcomeDelivered, results[0].Outcome)
	assert.Len(t, push.sent(), 1)
}

func TestShutdownFlushesBatchesOnce(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()

	push := &fakeChannel{id: entity.ChannelPush}

	pref := prefWith("u1", entity.ChannelPush)
	pref.Modes = map[entity.AlertType]entity.DeliveryMode{entity.AlertScoring: entity.ModeBatched}

	engine, submitter := newEngine(t, deliveryConf(), []*fakeChannel{push},
		map[entity.UserID]entity.Preference{"u1": pref}, clock)

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelPush}, "u1")

	_, err := engine.Send(context.Background(), alert)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = engine.Start(ctx)
	}()

	err = clock.BlockUntilContext(ctx, 1)
	require.NoError(t, err)

	cancel()
	<-done

	require.Len(t, submitter.submissions(), 1, "shutdown flushes pending batches exactly once")
	assert.Equal(t, entity.AlertDigest, submitter.submissions()[0].Type)
}

func TestSendReportsCancelledContext(t *testing.T) {
	t.Parallel()

	ws := &fakeChannel{id: entity.ChannelWebsocket}

	engine, _ := newEngine(t, deliveryConf(), []*fakeChannel{ws},
		map[entity.UserID]entity.Preference{"u1": prefWith("u1", entity.ChannelWebsocket)},
		clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alert := scoringAlert("a1", entity.PriorityMedium,
		[]entity.ChannelID{entity.ChannelWebsocket}, "u1")

	_, err := engine.Send(ctx, alert)
	assert.ErrorIs(t, err, context.Canceled)
}
