package pipeline

import (
	"errors"
	"fmt"
)

// ErrProcessingError

type ErrProcessingError struct {
	error
	Category         string
	AdditionalInputs []Input
}

// Input attaches named context to a failed payload, e.g. the raw provider
// frame or the upstream key it came from.
type Input struct {
	Source string
	Key    string
	Value  []byte
}

const (
	UnknownCategory   = "unknown"
	DecodeCategory    = "decode"
	TransportCategory = "transport"
	ResolveCategory   = "resolve"
	StorageCategory   = "storage"
	RateLimitCategory = "rate_limit"
	ChannelCategory   = "channel"
	ConfigCategory    = "config"
	PanicCategory     = "panic"
)

func NewErrProcessingError(err error, category string, additionalInputs []Input) ErrProcessingError {
	return ErrProcessingError{
		error:            err,
		Category:         category,
		AdditionalInputs: additionalInputs,
	}
}

func (e ErrProcessingError) Unwrap() error {
	return e.error
}

// ErrRetryableError

var ErrRetryableError = errors.New("retryable error")

func NewErrRetryableError(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryableError, err)
}

func NewRetryableErrProcessingError(err error, category string, additionalInputs []Input) ErrProcessingError {
	return NewErrProcessingError(NewErrRetryableError(err), category, additionalInputs)
}
