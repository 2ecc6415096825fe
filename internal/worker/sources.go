package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/match-stream/internal/kafka"
	"github.com/nats-io/nats.go"
)

// KafkaSource reads deliveries from a consumer-group reader. Offsets are
// committed only through Delivery.Ack.
type KafkaSource struct {
	Consumer *kafka.Consumer
}

var _ Source = (*KafkaSource)(nil)

func (s *KafkaSource) Fetch(ctx context.Context, max int, wait time.Duration) (Delivery, error) {
	msgs, err := s.Consumer.FetchBatch(ctx, max, wait)
	if err != nil {
		return Delivery{}, err
	}
	payloads := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, m.Value)
	}
	return Delivery{
		Payloads: payloads,
		Ack: func(ctx context.Context) error {
			return s.Consumer.Commit(ctx, msgs...)
		},
	}, nil
}

func (s *KafkaSource) Close() error { return s.Consumer.Close() }

// JetStreamSource pulls from a durable consumer. Unacked messages come back
// after the consumer's AckWait.
type JetStreamSource struct {
	sub *nats.Subscription
}

var _ Source = (*JetStreamSource)(nil)

func NewJetStreamSource(js nats.JetStreamContext, subject, durable string, ackWait time.Duration) (*JetStreamSource, error) {
	var opts []nats.SubOpt
	if ackWait > 0 {
		opts = append(opts, nats.AckWait(ackWait))
	}
	sub, err := js.PullSubscribe(subject, durable, opts...)
	if err != nil {
		return nil, err
	}
	return &JetStreamSource{sub: sub}, nil
}

func (s *JetStreamSource) Fetch(ctx context.Context, max int, wait time.Duration) (Delivery, error) {
	for {
		fctx, cancel := context.WithTimeout(ctx, wait)
		msgs, err := s.sub.Fetch(max, nats.Context(fctx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return Delivery{}, ctx.Err()
			}
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return Delivery{}, err
		}
		if len(msgs) == 0 {
			continue
		}

		payloads := make([][]byte, 0, len(msgs))
		for _, m := range msgs {
			payloads = append(payloads, m.Data)
		}
		return Delivery{
			Payloads: payloads,
			Ack: func(ctx context.Context) error {
				var firstErr error
				for _, m := range msgs {
					if err := m.AckSync(nats.Context(ctx)); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		}, nil
	}
}

// Close leaves the durable consumer in place (Unsubscribe would delete it);
// the connection drain releases the subscription.
func (s *JetStreamSource) Close() error { return nil }
