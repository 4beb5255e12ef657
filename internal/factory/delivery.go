package factory

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/delivery"
	"github.com/fanpulse/livewire/internal/delivery/channel"
	"github.com/fanpulse/livewire/internal/dispatch"
	"github.com/fanpulse/livewire/internal/domain/repo"
	"github.com/fanpulse/livewire/internal/log"
)

// CreateDispatchPath wires queue, delivery engine and dispatcher together.
// The engine re-submits deferred alerts and digests through the dispatcher,
// which is why the two are created as one unit.
func CreateDispatchPath(conf *config.Config, channels *channel.Registry, prefs repo.PreferenceStore, history repo.AlertHistoryWriter, clock clockwork.Clock, registry prometheus.Registerer) (*dispatch.Dispatcher, *delivery.Engine, error) {
	queue, err := dispatch.NewQueue(conf.Dispatch.QueueCapacity, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create alert queue: %w", err)
	}

	engine, err := delivery.NewEngine(conf.Delivery, channels, prefs, clock, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create delivery engine: %w", err)
	}

	dispatcher, err := dispatch.NewDispatcher(conf.Dispatch, queue, engine, clock, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	dispatcher.WithLogger(log.Logger()).WithHistory(history)
	engine.WithLogger(log.Logger()).WithSubmitter(dispatcher)

	return dispatcher, engine, nil
}
