package router

import (
	"context"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/livecache"
)

// Submitter accepts routed alerts for dispatch. Critical alerts are expected
// to be dispatched synchronously inside Submit; everything else is queued.
type Submitter interface {
	Submit(ctx context.Context, alert entity.Alert) error
}

// Processing is the pipeline stage run by the event workers: write the event
// to the live cache, route it, hand resulting alerts to the dispatcher.
// Stale replays stop at the cache and are not an error.
type Processing struct {
	cache     *livecache.Cache
	router    *Router
	submitter Submitter
}

func NewProcessing(cache *livecache.Cache, router *Router, submitter Submitter) Processing {
	return Processing{
		cache:     cache,
		router:    router,
		submitter: submitter,
	}
}

func (p Processing) Process(ctx context.Context, event entity.DomainEvent) error {
	if !p.cache.Upsert(event) {
		return nil
	}

	alerts, err := p.router.Route(ctx, event)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		err := p.submitter.Submit(ctx, alert)
		if err != nil {
			return err
		}
	}

	return nil
}
