package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo/mock"
	"github.com/fanpulse/livewire/internal/livecache"
	"github.com/fanpulse/livewire/internal/router"
)

var (
	playerRef = entity.EntityRef{Kind: entity.KindPlayer, ID: "p42"}
	marketRef = entity.EntityRef{Kind: entity.KindMarket, ID: "spread-kc-buf"}

	owners = []entity.UserID{"u1", "u2"}
)

func routerConf() config.Router {
	return config.Router{
		ResolveTimeout:     time.Second,
		MinFantasyDelta:    1.0,
		QuoteMoveThreshold: 0.05,
	}
}

func newRouter(t *testing.T, resolver *mock.MockRosterResolver, cache *livecache.Cache) *router.Router {
	t.Helper()

	if cache == nil {
		cache = livecache.New(livecache.Config{Shards: 4, RingCapacity: 8})
	}

	ret, err := router.New(routerConf(), cache, resolver, clockwork.NewFakeClock(), prometheus.NewPedanticRegistry())
	require.NoError(t, err)

	return ret
}

func statusEvent(subtype string) entity.DomainEvent {
	return entity.DomainEvent{
		Provider:  "fanstats",
		Entity:    playerRef,
		Timestamp: time.Date(2026, 8, 21, 19, 30, 0, 0, time.UTC),
		Kind:      entity.EventStatusChange,
		Status: &entity.StatusChange{
			Subtype:   subtype,
			OldStatus: "active",
			NewStatus: "out",
		},
	}
}

func playEvent(subtype string, deltas map[string]float64) entity.DomainEvent {
	return entity.DomainEvent{
		Provider:  "fanstats",
		Entity:    playerRef,
		Timestamp: time.Date(2026, 8, 21, 19, 30, 0, 0, time.UTC),
		Kind:      entity.EventOccurrence,
		Occurrence: &entity.Occurrence{
			Subtype: subtype,
			Deltas:  deltas,
		},
	}
}

func statEvent(deltas map[string]float64) entity.DomainEvent {
	return entity.DomainEvent{
		Provider:  "fanstats",
		Entity:    playerRef,
		Timestamp: time.Date(2026, 8, 21, 19, 30, 0, 0, time.UTC),
		Kind:      entity.EventMetricUpdate,
		Metric: &entity.MetricUpdate{
			Deltas: deltas,
		},
	}
}

func quoteEvent(prev, price float64) entity.DomainEvent {
	return entity.DomainEvent{
		Provider:  "oddsline",
		Entity:    marketRef,
		Timestamp: time.Date(2026, 8, 21, 19, 30, 0, 0, time.UTC),
		Kind:      entity.EventQuoteUpdate,
		Quote: &entity.QuoteUpdate{
			Symbol:    "KC-BUF",
			Price:     decimal.NewFromFloat(price),
			PrevPrice: decimal.NewFromFloat(prev),
		},
	}
}

func TestClassification(t *testing.T) {
	type testCase struct {
		name      string
		event     entity.DomainEvent
		dropped   bool
		alertType entity.AlertType
		priority  entity.Priority
		channels  int
	}

	cases := []testCase{
		{
			name:      "injury status change is critical",
			event:     statusEvent("injury"),
			alertType: entity.AlertInjury,
			priority:  entity.PriorityCritical,
			channels:  4,
		},
		{
			name:      "other status change is medium",
			event:     statusEvent("role"),
			alertType: entity.AlertStatus,
			priority:  entity.PriorityMedium,
			channels:  2,
		},
		{
			name:      "touchdown above six points is high",
			event:     playEvent("touchdown", map[string]float64{"rushing_tds": 1, "rushing_yards": 4}),
			alertType: entity.AlertScoring,
			priority:  entity.PriorityHigh,
			channels:  3,
		},
		{
			name:      "touchdown with double digit swing is critical",
			event:     playEvent("touchdown", map[string]float64{"fantasy_points": 10.5}),
			alertType: entity.AlertScoring,
			priority:  entity.PriorityCritical,
			channels:  4,
		},
		{
			name:      "minor play is medium",
			event:     playEvent("reception", map[string]float64{"receptions": 1, "receiving_yards": 12}),
			alertType: entity.AlertScoring,
			priority:  entity.PriorityMedium,
			channels:  2,
		},
		{
			name:    "negligible play is dropped",
			event:   playEvent("kneel", map[string]float64{"rushing_yards": -1}),
			dropped: true,
		},
		{
			name:      "stat line swing is medium",
			event:     statEvent(map[string]float64{"passing_yards": 55}),
			alertType: entity.AlertPerformance,
			priority:  entity.PriorityMedium,
			channels:  2,
		},
		{
			name:      "negative double digit swing is critical",
			event:     statEvent(map[string]float64{"fantasy_points": -12}),
			alertType: entity.AlertPerformance,
			priority:  entity.PriorityCritical,
			channels:  4,
		},
		{
			name:    "negligible stat change is dropped",
			event:   statEvent(map[string]float64{"passing_yards": 5}),
			dropped: true,
		},
		{
			name:      "large line move is medium market alert",
			event:     quoteEvent(4.0, 4.5),
			alertType: entity.AlertMarket,
			priority:  entity.PriorityMedium,
			channels:  2,
		},
		{
			name:    "small line move is dropped",
			event:   quoteEvent(4.0, 4.05),
			dropped: true,
		},
		{
			name: "unknown event is dropped",
			event: entity.DomainEvent{
				Provider:  "fanstats",
				Entity:    playerRef,
				Timestamp: time.Date(2026, 8, 21, 19, 30, 0, 0, time.UTC),
				Kind:      entity.EventUnknown,
				Unknown:   &entity.UnknownPayload{Raw: []byte("{}")},
			},
			dropped: true,
		},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			resolver := mock.NewMockRosterResolver(ctrl)
			resolver.EXPECT().ResolveAffectedUsers(gomock.Any(), gomock.Any()).Return(owners, nil).AnyTimes()

			r := newRouter(t, resolver, nil)

			alerts, err := r.Route(context.Background(), c.event)
			require.NoError(t, err)

			if c.dropped {
				assert.Empty(t, alerts)

				return
			}

			require.Len(t, alerts, 1)
			alert := alerts[0]

			assert.NotEmpty(t, alert.ID)
			assert.Equal(t, c.alertType, alert.Type)
			assert.Equal(t, c.priority, alert.Priority)
			assert.Equal(t, entity.AlertPending, alert.State)
			assert.Equal(t, owners, alert.Recipients)
			assert.Len(t, alert.Channels, c.channels)
			assert.NotEmpty(t, alert.Title)
			assert.NotEmpty(t, alert.Message)
		})
	}
}

func TestEnrichmentFromCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mock.NewMockRosterResolver(ctrl)
	resolver.EXPECT().ResolveAffectedUsers(gomock.Any(), playerRef).Return(owners, nil).Times(1)

	cache := livecache.New(livecache.Config{Shards: 4, RingCapacity: 8})

	seed := statEvent(map[string]float64{"receiving_yards": 30})
	seed.Meta = entity.EntityMeta{Name: "J. Chase", Position: "WR", Team: "CIN"}
	require.True(t, cache.Upsert(seed))

	r := newRouter(t, resolver, cache)

	// The injury frame itself carries no descriptive fields.
	alerts, err := r.Route(context.Background(), statusEvent("injury"))
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Contains(t, alerts[0].Title, "J. Chase")
	assert.Contains(t, alerts[0].Message, "CIN")
}

func TestResolverFailureKeepsAlert(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mock.NewMockRosterResolver(ctrl)
	resolver.EXPECT().ResolveAffectedUsers(gomock.Any(), playerRef).Return(nil, errors.New("valkey down")).Times(1)

	r := newRouter(t, resolver, nil)

	alerts, err := r.Route(context.Background(), statusEvent("injury"))
	require.NoError(t, err, "a resolver failure must not drop the alert")
	require.Len(t, alerts, 1)

	assert.Empty(t, alerts[0].Recipients)
	assert.Equal(t, entity.PriorityCritical, alerts[0].Priority)
}

func TestRouteCancelledContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mock.NewMockRosterResolver(ctrl)
	resolver.EXPECT().ResolveAffectedUsers(gomock.Any(), playerRef).
		DoAndReturn(func(ctx context.Context, ref entity.EntityRef) ([]entity.UserID, error) {
			return nil, ctx.Err()
		}).Times(1)

	r := newRouter(t, resolver, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Route(ctx, statusEvent("injury"))
	require.Error(t, err, "shutdown should surface instead of emitting a recipient-less alert")
}
