package pipeline

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Runner drains a payload channel with a fixed pool of workers, pushing each
// payload through the processing chain. Failed payloads are handed to the
// error processing; the runner itself only stops on context cancellation or
// when the source channel is closed.
type Runner[Payload any] struct {
	source  <-chan Payload
	workers int

	processing      Processing[Payload]
	errorProcessing ErrorProcessing

	logger *logr.Logger
}

func NewRunner[Payload any](source <-chan Payload, workers int, processing Processing[Payload], errorProcessing ErrorProcessing) Runner[Payload] {
	if workers <= 0 {
		workers = 1
	}

	return Runner[Payload]{
		source:          source,
		workers:         workers,
		processing:      processing,
		errorProcessing: errorProcessing,
	}
}

func (r Runner[Payload]) WithLogger(logger logr.Logger) Runner[Payload] {
	r.logger = &logger

	return r
}

func (r Runner[Payload]) Start(ctx context.Context) error {
	r.logInfo(0, "Start draining", "workers", r.workers)

	group, ctx := errgroup.WithContext(ctx)

	for i := 0; i < r.workers; i++ {
		group.Go(func() error {
			return r.work(ctx)
		})
	}

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	r.logInfo(0, "Drained")

	return nil
}

func (r Runner[Payload]) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-r.source:
			if !ok {
				return nil
			}

			err := r.processing.Process(ctx, payload)
			if err != nil {
				r.processError(ctx, payload, err)
			}
		}
	}
}

func (r Runner[Payload]) processError(ctx context.Context, payload Payload, pipelineError error) {
	// If context has been cancelled, the failure is most likely shutdown noise
	err := ctx.Err()
	if err != nil {
		r.logInfo(1, "Not processing error, context has been cancelled")

		return
	}

	r.logError(pipelineError, "Processing failed")

	processingError := createProcessingError(pipelineError)

	err = r.errorProcessing.Process(ctx, processingError)
	if err != nil {
		r.logError(err, "Error pipeline failed")

		r.dumpErrorContext(payload, processingError)
	}
}

func (r Runner[Payload]) dumpErrorContext(payload Payload, err ErrProcessingError) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err,
		"Failed to process payload",
		"payload", payload,
		"additionalInputs", err.AdditionalInputs,
		"category", err.Category,
	)
}

func (r Runner[Payload]) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r Runner[Payload]) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}

func createProcessingError(err error) ErrProcessingError {
	ret := ErrProcessingError{}
	if errors.As(err, &ret) {
		return ret
	}

	return NewErrProcessingError(err, UnknownCategory, nil)
}
