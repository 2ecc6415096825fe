package match

import (
	"context"
	"fmt"

	"github.com/jmehdipour/match-stream/internal/model"
	"go.uber.org/zap"
)

// Handler decides which derived writes a change event triggers and runs them in order.
type Handler struct {
	history      *HistoryRecorder
	users        *CounterUpdater
	jobs         *CounterUpdater
	transactions *TransactionInitiator
	log          *zap.Logger
}

func NewHandler(history *HistoryRecorder, users, jobs *CounterUpdater, transactions *TransactionInitiator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		history:      history,
		users:        users,
		jobs:         jobs,
		transactions: transactions,
		log:          log,
	}
}

// step is one side effect together with the policy its error is handled by.
type step struct {
	effect string
	policy Policy
	fn     effectFunc
}

// Handle runs the side effects of ev. The first propagated error stops the
// remaining steps and is returned; counter failures never do.
func (h *Handler) Handle(ctx context.Context, ev model.ChangeEvent) error {
	log := h.log.With(
		zap.String("match_id", ev.MatchID),
		zap.String("event_id", ev.EventID),
		zap.String("kind", ev.Kind.String()),
	)

	var steps []step
	switch ev.Kind {
	case model.KindInsert:
		steps = h.insertSteps(ev)
	case model.KindModify:
		steps = h.modifySteps(ev)
	case model.KindRemove:
		steps = h.removeSteps(ev)
	default:
		log.Warn("unknown event kind, skipping")
		return nil
	}

	log.Info("processing event")
	for _, s := range steps {
		if err := run(ctx, log, s.effect, s.policy, s.fn); err != nil {
			log.Error("event failed", zap.String("effect", s.effect), zap.Error(err))
			return fmt.Errorf("%s %s for match %s: %w", ev.Kind, s.effect, ev.MatchID, err)
		}
	}
	log.Info("event processed")
	return nil
}

// insertSteps: CREATED entry, both counters, and a MATCH_CREATED transaction
// when the new match is ACTIVE.
func (h *Handler) insertSteps(ev model.ChangeEvent) []step {
	steps := []step{h.historyStep(ev, model.ActionCreated, "", ev.NewStatus, ev.After)}
	steps = append(steps, h.counterSteps(ev)...)
	if ev.After != nil && ev.NewStatus == model.MatchStatusActive {
		steps = append(steps, h.transactionStep(ev, model.TxMatchCreated))
	}
	return steps
}

// modifySteps never touches the counters; they track existence, not edits.
func (h *Handler) modifySteps(ev model.ChangeEvent) []step {
	action := model.ActionUpdated
	if ev.OldStatus != ev.NewStatus {
		action = model.ActionStatusChanged
	}
	steps := []step{h.historyStep(ev, action, ev.OldStatus, ev.NewStatus, ev.After)}
	if ev.NewStatus == model.MatchStatusCompleted && ev.OldStatus != model.MatchStatusCompleted {
		steps = append(steps, h.transactionStep(ev, model.TxMatchCompleted))
	}
	return steps
}

func (h *Handler) removeSteps(ev model.ChangeEvent) []step {
	steps := []step{h.historyStep(ev, model.ActionDeleted, ev.OldStatus, "", ev.Before)}
	return append(steps, h.counterSteps(ev)...)
}

func (h *Handler) historyStep(ev model.ChangeEvent, action model.HistoryAction, prev, next string, image *model.MatchRecord) step {
	return step{
		effect: EffectHistory,
		policy: Propagate,
		fn: func(ctx context.Context) (bool, error) {
			_, err := h.history.Record(ctx, ev.MatchID, action, prev, next, image)
			return err == nil, err
		},
	}
}

func (h *Handler) counterSteps(ev model.ChangeEvent) []step {
	delta := counterDelta(ev.Kind)
	var steps []step
	if ev.UserID != "" {
		steps = append(steps, counterStep(EffectUserCounter, h.users, ev.UserID, delta))
	}
	if ev.JobID != "" {
		steps = append(steps, counterStep(EffectJobCounter, h.jobs, ev.JobID, delta))
	}
	return steps
}

func counterStep(effect string, u *CounterUpdater, id string, delta int64) step {
	return step{
		effect: effect,
		policy: Suppress,
		fn: func(ctx context.Context) (bool, error) {
			return u.Apply(ctx, id, delta)
		},
	}
}

func (h *Handler) transactionStep(ev model.ChangeEvent, typ model.TxType) step {
	return step{
		effect: EffectTransaction,
		policy: Propagate,
		fn: func(ctx context.Context) (bool, error) {
			_, err := h.transactions.Initiate(ctx, ev.MatchID, ev.UserID, ev.JobID, nil, typ)
			return err == nil, err
		},
	}
}
