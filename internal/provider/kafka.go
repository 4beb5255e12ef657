package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
)

const kafkaFrameBuffer = 100

// KafkaTransport adapts a consumer group to the stream contract. One live
// stream at a time: sarama does not allow concurrent Consume calls on the
// same group.
type KafkaTransport struct {
	group sarama.ConsumerGroup

	logger    *logr.Logger
	drainOnce sync.Once
}

func NewKafkaTransport(group sarama.ConsumerGroup) *KafkaTransport {
	return &KafkaTransport{
		group: group,
	}
}

func (t *KafkaTransport) WithLogger(logger logr.Logger) *KafkaTransport {
	t.logger = &logger

	return t
}

func (t *KafkaTransport) Dial(ctx context.Context, endpoint Endpoint) (Stream, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	if len(endpoint.Topics) == 0 {
		return nil, errors.New("kafka endpoint requires at least one topic")
	}

	t.drainOnce.Do(func() {
		go t.drainErrors()
	})

	runCtx, cancel := context.WithCancel(context.Background())

	ret := &kafkaStream{
		frames: make(chan []byte, kafkaFrameBuffer),
		dead:   make(chan struct{}),
		cancel: cancel,
	}

	go ret.run(runCtx, t.group, endpoint.Topics)

	return ret, nil
}

// drainErrors keeps the group error channel from filling up. It ends when
// the group is closed.
func (t *KafkaTransport) drainErrors() {
	for err := range t.group.Errors() {
		t.logError(err, "kafka consumer error")
	}
}

func (t *KafkaTransport) logError(err error, msg string, keysAndValues ...any) {
	if t.logger == nil {
		return
	}

	t.logger.Error(err, msg, keysAndValues...)
}

type kafkaStream struct {
	frames chan []byte
	dead   chan struct{}
	cancel context.CancelFunc

	// set before dead closes
	failure error
}

func (s *kafkaStream) run(ctx context.Context, group sarama.ConsumerGroup, topics []string) {
	defer close(s.dead)

	handler := frameForwarder{frames: s.frames}

	for {
		// Consume returns on every rebalance and must be called again
		err := group.Consume(ctx, topics, handler)
		if err != nil {
			if ctx.Err() != nil {
				s.failure = ctx.Err()
			} else {
				s.failure = fmt.Errorf("consumer failed: %w", err)
			}

			return
		}

		err = ctx.Err()
		if err != nil {
			s.failure = err

			return
		}
	}
}

func (s *kafkaStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-s.frames:
		return frame, nil
	case <-s.dead:
		return nil, s.failure
	}
}

func (s *kafkaStream) Send(ctx context.Context, payload []byte) error {
	return errors.New("kafka streams do not accept outbound frames")
}

func (s *kafkaStream) Close() error {
	s.cancel()

	return nil
}

// frameForwarder hands message values to the stream reader. Offsets are
// committed on handoff, redelivery after a crash is accepted.
type frameForwarder struct {
	frames chan<- []byte
}

func (h frameForwarder) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h frameForwarder) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h frameForwarder) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()

	for msg := range claim.Messages() {
		// If a re-balancing occurred, context will be canceled
		// Could also be a termination signal or anything
		if ctx.Err() != nil {
			break
		}

		if msg == nil {
			continue
		}

		select {
		case h.frames <- msg.Value:
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}

	return nil
}
