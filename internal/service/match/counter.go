package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
)

// ErrCounterStoreUnavailable is returned while the store's breaker is open.
var ErrCounterStoreUnavailable = errors.New("counter store unavailable")

// CounterStore is the read-by-identity / increment-by-identity contract shared by
// the User and Job stores.
type CounterStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error
}

type userCounterStore struct{ repo repository.UsersRepository }

// UserCounterStore adapts the User store to CounterStore.
func UserCounterStore(repo repository.UsersRepository) CounterStore {
	return userCounterStore{repo: repo}
}

func (s userCounterStore) Exists(ctx context.Context, id string) (bool, error) {
	u, err := s.repo.Get(ctx, id)
	return u != nil, err
}

func (s userCounterStore) IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error {
	return s.repo.IncrementMatchCount(ctx, id, delta, at)
}

type jobCounterStore struct{ repo repository.JobsRepository }

// JobCounterStore adapts the Job store to CounterStore.
func JobCounterStore(repo repository.JobsRepository) CounterStore {
	return jobCounterStore{repo: repo}
}

func (s jobCounterStore) Exists(ctx context.Context, id string) (bool, error) {
	j, err := s.repo.Get(ctx, id)
	return j != nil, err
}

func (s jobCounterStore) IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error {
	return s.repo.IncrementMatchCount(ctx, id, delta, at)
}

// CounterUpdater keeps the matchCount aggregate of one related entity type.
// It reads before writing, so an entity that doesn't exist is never created.
type CounterUpdater struct {
	store   CounterStore
	breaker *MicroBreaker
	now     func() time.Time
}

// NewCounterUpdater wires a store with an optional breaker (nil disables it).
func NewCounterUpdater(store CounterStore, breaker *MicroBreaker) *CounterUpdater {
	return &CounterUpdater{store: store, breaker: breaker, now: time.Now}
}

// Apply adds delta to the entity's counter and refreshes updatedAt.
// applied is false when the entity is absent.
func (u *CounterUpdater) Apply(ctx context.Context, id string, delta int64) (bool, error) {
	if !u.breaker.TryAcquire() {
		return false, ErrCounterStoreUnavailable
	}
	applied, err := u.apply(ctx, id, delta)
	if err != nil {
		u.breaker.OnFailure()
		return false, err
	}
	u.breaker.OnSuccess()
	return applied, nil
}

func (u *CounterUpdater) apply(ctx context.Context, id string, delta int64) (bool, error) {
	ok, err := u.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	if err := u.store.IncrementMatchCount(ctx, id, delta, u.now().UTC()); err != nil {
		return false, fmt.Errorf("increment %s: %w", id, err)
	}
	return true, nil
}

// counterDelta is +1 for a new match. Removal goes through the same path with a
// zero delta, so removed matches are never subtracted from the counts.
func counterDelta(kind model.EventKind) int64 {
	if kind == model.KindInsert {
		return 1
	}
	return 0
}
