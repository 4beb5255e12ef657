package history

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
)

// ParallelWriter fans one settled alert out to every backing store, the hot
// feed and the archive.
type ParallelWriter struct {
	writers []repo.AlertHistoryWriter
}

func NewParallelWriter(writers ...repo.AlertHistoryWriter) ParallelWriter {
	return ParallelWriter{
		writers: writers,
	}
}

func (p ParallelWriter) WriteAlert(ctx context.Context, alert entity.Alert, results []entity.DeliveryResult) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, w := range p.writers {
		writer := w

		group.Go(func() error {
			return writer.WriteAlert(ctx, alert, results)
		})
	}

	return group.Wait()
}
