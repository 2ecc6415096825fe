package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/match-stream/internal/metrics"
	"github.com/jmehdipour/match-stream/internal/service/match"
	"github.com/jmehdipour/match-stream/internal/stream"
	"go.uber.org/zap"
)

// Delivery is one batch of raw payloads pulled from a Source, in partition order.
type Delivery struct {
	Payloads [][]byte
	// Ack acknowledges every payload of the delivery.
	Ack func(ctx context.Context) error
}

// Source hands out deliveries. Fetch blocks until at least one payload arrives.
type Source interface {
	Fetch(ctx context.Context, max int, wait time.Duration) (Delivery, error)
	Close() error
}

// DeadLetter receives batches that kept failing after every retry.
type DeadLetter interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// BatchProcessor is the coordinator as seen by the worker.
type BatchProcessor interface {
	Process(ctx context.Context, records []stream.Record) (match.Result, error)
}

// DeadLetterEnvelope is what lands on the dead-letter destination.
type DeadLetterEnvelope struct {
	FailedAt time.Time         `json:"failedAt"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error"`
	Records  []json.RawMessage `json:"records"`
}

// StreamWorker:
// - pulls batches from the change stream,
// - runs each batch through the coordinator, retrying the whole batch on failure,
// - parks batches that never succeed on the dead-letter destination, then acks.
type StreamWorker struct {
	// Dependencies
	Source     Source
	Processor  BatchProcessor
	DeadLetter DeadLetter
	Log        *zap.Logger

	// Behavior
	BatchSize     int           // max payloads per delivery
	BatchWait     time.Duration // max time to fill a delivery after the first payload
	RetryAttempts int           // extra attempts after the first failure
	RetryBackoff  time.Duration // pause between attempts
}

// NewStreamWorker builds a worker with the production delivery settings
// (batches of 10, three retries).
func NewStreamWorker(src Source, proc BatchProcessor, dlq DeadLetter, log *zap.Logger) *StreamWorker {
	return &StreamWorker{
		Source:        src,
		Processor:     proc,
		DeadLetter:    dlq,
		Log:           log,
		BatchSize:     10,
		BatchWait:     500 * time.Millisecond,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
	}
}

// Run blocks until ctx is cancelled. It returns an error only when a failed batch
// could not be dead-lettered; the batch is left unacknowledged in that case.
func (w *StreamWorker) Run(ctx context.Context) error {
	if w.Source == nil || w.Processor == nil {
		return errors.New("stream worker: source and processor are required")
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 10
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}
	if w.RetryAttempts < 0 {
		w.RetryAttempts = 0
	}

	for {
		d, err := w.Source.Fetch(ctx, w.BatchSize, w.BatchWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Log.Warn("fetch failed", zap.Error(err))
			if !sleep(ctx, 200*time.Millisecond) {
				return nil
			}
			continue
		}
		if len(d.Payloads) == 0 {
			continue
		}
		if err := w.handle(ctx, d); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle processes one delivery and acks it, unless ctx ends first.
func (w *StreamWorker) handle(ctx context.Context, d Delivery) error {
	// 1) decode; poison payloads are dropped, never retried
	var records []stream.Record
	for i, p := range d.Payloads {
		recs, err := stream.DecodePayload(p)
		if err != nil {
			w.Log.Warn("dropping undecodable payload", zap.Int("index", i), zap.Int("bytes", len(p)), zap.Error(err))
			metrics.RecordsTotal.WithLabelValues("unknown", "poison").Inc()
			continue
		}
		records = append(records, recs...)
	}

	// 2) process, retrying the whole batch
	attempts, err := w.process(ctx, records)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// 3) park what never succeeded
	if err != nil {
		if dlqErr := w.deadLetter(ctx, d, attempts, err); dlqErr != nil {
			return fmt.Errorf("dead-letter batch: %w", dlqErr)
		}
		metrics.BatchesTotal.WithLabelValues("dead_lettered").Inc()
		w.Log.Error("batch dead-lettered", zap.Int("attempts", attempts), zap.Int("payloads", len(d.Payloads)), zap.Error(err))
	}

	// 4) ack
	if d.Ack != nil {
		if err := d.Ack(ctx); err != nil {
			w.Log.Warn("ack failed", zap.Error(err))
		}
	}
	return nil
}

func (w *StreamWorker) process(ctx context.Context, records []stream.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var err error
	attempt := 0
	for attempt <= w.RetryAttempts {
		attempt++
		var res match.Result
		res, err = w.Processor.Process(ctx, records)
		if err == nil {
			metrics.BatchesTotal.WithLabelValues("succeeded").Inc()
			return attempt, nil
		}
		metrics.BatchesTotal.WithLabelValues("failed").Inc()
		w.Log.Warn("batch failed",
			zap.Int("attempt", attempt),
			zap.Int("failed", res.Failed),
			zap.Int("total", res.Total),
			zap.Error(err),
		)
		if attempt > w.RetryAttempts || !sleep(ctx, w.RetryBackoff) {
			break
		}
	}
	return attempt, err
}

func (w *StreamWorker) deadLetter(ctx context.Context, d Delivery, attempts int, cause error) error {
	if w.DeadLetter == nil {
		return errors.New("no dead-letter destination configured")
	}
	env := DeadLetterEnvelope{
		FailedAt: time.Now().UTC(),
		Attempts: attempts,
		Error:    cause.Error(),
		Records:  make([]json.RawMessage, 0, len(d.Payloads)),
	}
	for _, p := range d.Payloads {
		if json.Valid(p) {
			env.Records = append(env.Records, json.RawMessage(p))
			continue
		}
		// keep non-JSON payloads as a JSON string so the envelope stays valid
		s, _ := json.Marshal(string(p))
		env.Records = append(env.Records, s)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return w.DeadLetter.Send(ctx, nil, body)
}

// sleep waits for d or ctx; it reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
