package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

const metricsNamespace = "livewire"

/*
 * DecorateProcessing decorates the event stage as follow:
 *
 * panic --> duration --> retry --> main (cache + route + submit)
 *
 * Retries are bounded: the fan-in channel has no durable upstream to
 * re-deliver from, so a stuck payload goes to the error stage instead of
 * pinning a worker.
 */
func DecorateProcessing(mainProcessing pipeline.Processing[entity.DomainEvent], registry prometheus.Registerer) (pipeline.Processing[entity.DomainEvent], error) {
	ret := mainProcessing

	ret = pipeline.NewRetryProcessing(ret, pipeline.RetryConfig{MaxAttempt: 3, Delay: 200 * time.Millisecond})

	ret, err := pipeline.NewDurationMetricsDecoratorProcessing(ret, registry, clockwork.NewRealClock(), pipeline.MetricsConfig{Namespace: metricsNamespace, Stage: "routing"})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing(ret)

	return ret, nil
}

/*
 * DecorateErrorProcessing decorates the error processing as follow:
 *
 *                                    ---> retry --> main (dead letter)
 *  panic --> duration --> parallel --|
 *                                    ---> error count
 */
func DecorateErrorProcessing(mainProcessing pipeline.ErrorProcessing, registry prometheus.Registerer) (pipeline.ErrorProcessing, error) {
	ret := mainProcessing

	ret = pipeline.NewRetryProcessing(ret, pipeline.RetryConfig{MaxAttempt: 3, Delay: time.Second})

	errorCount, err := pipeline.NewErrorCountProcessing(registry, pipeline.MetricsConfig{Namespace: metricsNamespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create error count processing: %w", err)
	}

	ret = pipeline.NewParallelProcessing(ret, errorCount)

	ret, err = pipeline.NewDurationMetricsDecoratorProcessing(ret, registry, clockwork.NewRealClock(), pipeline.MetricsConfig{Namespace: metricsNamespace, Stage: "error"})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing(ret)

	return ret, nil
}

// NewDeadLetterProcessing adapts the processing-error writer to the error
// stage contract.
func NewDeadLetterProcessing(writer repo.ProcessingErrorWriter) pipeline.ErrorProcessing {
	return deadLetterProcessing{writer: writer}
}

type deadLetterProcessing struct {
	writer repo.ProcessingErrorWriter
}

func (p deadLetterProcessing) Process(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	return p.writer.WriteProcessingError(ctx, pErr)
}
