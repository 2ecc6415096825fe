package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/match-stream/internal/config"
	"github.com/jmehdipour/match-stream/internal/metrics"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmehdipour/match-stream/internal/stream"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EventHandler runs the side effects of one normalized change event.
type EventHandler interface {
	Handle(ctx context.Context, ev model.ChangeEvent) error
}

// Stores are the four outbound collaborators of the handler.
type Stores struct {
	Users        repository.UsersRepository
	Jobs         repository.JobsRepository
	Transactions repository.TransactionsRepository
	History      repository.HistoryRepository
}

// Result counts what happened to each record of a batch.
type Result struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
}

// BatchError is returned when at least one record failed. The delivery layer
// treats it as "redeliver the whole batch".
type BatchError struct {
	Total int
	errs  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to process %d record(s) out of %d: %v", len(e.Errors()), e.Total, e.errs)
}

// Errors lists the per-record failures in batch order.
func (e *BatchError) Errors() []error { return multierr.Errors(e.errs) }

func (e *BatchError) Unwrap() []error { return e.Errors() }

// Coordinator feeds a batch through normalization and the handler, one record
// at a time and in delivery order.
type Coordinator struct {
	handler EventHandler
	log     *zap.Logger
}

// NewCoordinator refuses to build when the configuration lacks a required store.
func NewCoordinator(cfg *config.Config, handler EventHandler, log *zap.Logger) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("coordinator: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	if handler == nil {
		return nil, errors.New("coordinator: nil handler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{handler: handler, log: log}, nil
}

// New wires the default handler over stores, with one breaker per counter store.
func New(cfg *config.Config, stores Stores, log *zap.Logger) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("coordinator: nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}
	br := cfg.Counters.Breaker
	h := NewHandler(
		NewHistoryRecorder(stores.History),
		NewCounterUpdater(UserCounterStore(stores.Users), NewMicroBreaker(br.FailThreshold, br.OpenFor)),
		NewCounterUpdater(JobCounterStore(stores.Jobs), NewMicroBreaker(br.FailThreshold, br.OpenFor)),
		NewTransactionInitiator(stores.Transactions),
		log.Named("handler"),
	)
	return NewCoordinator(cfg, h, log)
}

// Process attempts every record, whatever happens to the ones before it.
// A non-nil error is always a *BatchError.
func (c *Coordinator) Process(ctx context.Context, records []stream.Record) (Result, error) {
	start := time.Now()
	res := Result{Total: len(records)}
	c.log.Info("processing batch", zap.Int("records", len(records)))

	var errs error
	for i, rec := range records {
		ev, err := stream.Normalize(rec)
		if errors.Is(err, stream.ErrMissingEventKind) {
			c.log.Warn("record missing event kind, skipping", zap.Int("index", i), zap.String("event_id", rec.EventID))
			metrics.RecordsTotal.WithLabelValues("unknown", "skipped").Inc()
			res.Skipped++
			continue
		}
		if err == nil {
			err = c.handler.Handle(ctx, ev)
		}

		kind := kindLabel(ev.Kind)
		switch {
		case err != nil:
			c.log.Error("record failed", zap.Int("index", i), zap.String("event_id", rec.EventID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("record %d (%s): %w", i, rec.EventID, err))
			metrics.RecordsTotal.WithLabelValues(kind, "failed").Inc()
			res.Failed++
		case !ev.Kind.Valid():
			metrics.RecordsTotal.WithLabelValues(kind, "skipped").Inc()
			res.Skipped++
		default:
			metrics.RecordsTotal.WithLabelValues(kind, "processed").Inc()
			res.Processed++
		}
	}
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	if errs != nil {
		return res, &BatchError{Total: res.Total, errs: errs}
	}
	c.log.Info("batch processed",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// kindLabel keeps the metric label set bounded.
func kindLabel(k model.EventKind) string {
	if k.Valid() {
		return k.String()
	}
	return "unknown"
}
