package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/common/version"

	"github.com/fanpulse/livewire/internal/log"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/<category>/<id>.json"
)

// S3Writer dumps payloads the pipeline gave up on, with enough context to
// replay them once the bug is fixed.
type S3Writer struct {
	s3client *s3.Client
	clock    clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client *s3.Client, clock clockwork.Clock, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "failed to get hostname, falling backing to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		clock:    clock,
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (r S3Writer) WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	obj := r.createFailedPayload(pErr)

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key := r.computeObjectKey(obj)

	params := &s3.PutObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
		Body:   bytes.NewReader(b),
	}

	_, err = r.s3client.PutObject(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to write in s3: %w", err)
	}

	return nil
}

func (r S3Writer) createFailedPayload(pErr pipeline.ErrProcessingError) FailedPayload {
	category := pErr.Category
	if category == "" {
		category = pipeline.UnknownCategory
	}

	ret := FailedPayload{
		ProcessingContext: ProcessingContext{
			Component: Component{
				Branch:   version.Branch,
				Revision: version.Revision,
			},
			Time: r.clock.Now(),
			Host: r.hostname,
		},
		Sources: make([]Source, 0, len(pErr.AdditionalInputs)),
		Reason: Reason{
			Category: category,
			Error:    pErr.Error(),
		},
	}

	for _, input := range pErr.AdditionalInputs {
		ret.Sources = append(ret.Sources, Source{
			Name:  input.Source,
			Key:   input.Key,
			Value: input.Value,
		})
	}

	return ret
}

func (r S3Writer) computeObjectKey(obj FailedPayload) string {
	at := obj.ProcessingContext.Time

	template := strings.NewReplacer(
		"<prefix>", r.prefix,
		"<year>", fmt.Sprintf("%04d", at.Year()),
		"<month>", fmt.Sprintf("%02d", at.Month()),
		"<day>", fmt.Sprintf("%02d", at.Day()),
		"<category>", obj.Reason.Category,
		"<id>", uuid.NewString(),
	)

	return template.Replace(keyTemplate)
}
