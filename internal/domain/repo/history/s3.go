package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

var ErrInvalidAlertID = errors.New("invalid alert id")

// S3Writer archives one ndjson object per settled alert, partitioned by
// creation date. Row one is the alert record, the rest are per-channel
// results, so downstream jobs can load either without joins.
type S3Writer struct {
	s3client *s3.Client
	clock    clockwork.Clock

	bucket string
	prefix string
}

func NewS3Writer(s3client *s3.Client, clock clockwork.Clock, bucket string, prefix string) S3Writer {
	return S3Writer{
		s3client: s3client,
		clock:    clock,
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (s S3Writer) WriteAlert(ctx context.Context, alert entity.Alert, results []entity.DeliveryResult) error {
	rec := mapToRecord(alert, results, s.clock.Now())

	body, err := s.renderBody(rec)
	if err != nil {
		return fmt.Errorf("failed to render archive body: %w", err)
	}

	key, err := s.computeObjectKey(alert.ID, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to compute object key: %w", err)
	}

	params := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	}

	_, err = s.s3client.PutObject(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to write in s3: %w", err)
	}

	return nil
}

func (s S3Writer) renderBody(rec record) ([]byte, error) {
	buf := bytes.Buffer{}

	header := rec
	header.Results = nil

	err := writeLine(&buf, header)
	if err != nil {
		return nil, err
	}

	for _, res := range rec.Results {
		err := writeLine(&buf, res)
		if err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Object key last part must start by [0-9a-f]. Alert ids are uuids, which
// always satisfy this, but the constraint is enforced for any caller.
func (s S3Writer) computeObjectKey(id string, ts time.Time) (string, error) {
	if id == "" {
		return "", ErrInvalidAlertID
	}

	start := []rune(id)[0]
	startByLowercaseHexa := (start >= '0' && start <= '9') || (start >= 'a' && start <= 'f')

	if !startByLowercaseHexa {
		return "", fmt.Errorf("%w: %q must start with a lowercase hex char", ErrInvalidAlertID, id)
	}

	return fmt.Sprintf("%s/%s/%s.ndjson", s.prefix, ts.Format("2006-01-02"), id), nil
}

func writeLine(buf *bytes.Buffer, obj any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	buf.Write(b)
	buf.WriteByte('\n')

	return nil
}
