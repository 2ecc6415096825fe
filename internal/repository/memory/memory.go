// Package memory holds in-process store implementations used by replay --dry-run
// and by tests. They honor the same contracts as the networked stores.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
)

// Increment records one counter call, including zero-delta ones.
type Increment struct {
	ID    string
	Delta int64
	At    time.Time
}

// Users is an in-memory User store. Set Err to make every call fail.
type Users struct {
	mu         sync.Mutex
	rows       map[string]model.User
	increments []Increment
	Err        error
}

var _ repository.UsersRepository = (*Users)(nil)

func NewUsers(seed ...model.User) *Users {
	u := &Users{rows: make(map[string]model.User)}
	for _, s := range seed {
		s.AccType = model.UserAccType
		u.rows[s.ID] = s
	}
	return u
}

func (u *Users) Get(_ context.Context, id string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	row, ok := u.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (u *Users) IncrementMatchCount(_ context.Context, id string, delta int64, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return u.Err
	}
	row, ok := u.rows[id]
	if !ok {
		return nil
	}
	row.MatchCount += delta
	row.UpdatedAt = at
	u.rows[id] = row
	u.increments = append(u.increments, Increment{ID: id, Delta: delta, At: at})
	return nil
}

func (u *Users) Put(_ context.Context, row model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return u.Err
	}
	row.AccType = model.UserAccType
	u.rows[row.ID] = row
	return nil
}

// Snapshot returns a copy of the user row and whether it exists.
func (u *Users) Snapshot(id string) (model.User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.rows[id]
	return row, ok
}

func (u *Users) Increments() []Increment {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Increment(nil), u.increments...)
}

func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

// Jobs is an in-memory Job store. Set Err to make every call fail.
type Jobs struct {
	mu         sync.Mutex
	rows       map[string]model.Job
	increments []Increment
	Err        error
}

var _ repository.JobsRepository = (*Jobs)(nil)

func NewJobs(seed ...model.Job) *Jobs {
	j := &Jobs{rows: make(map[string]model.Job)}
	for _, s := range seed {
		j.rows[s.ID] = s
	}
	return j
}

func (j *Jobs) Get(_ context.Context, id string) (*model.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return nil, j.Err
	}
	row, ok := j.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (j *Jobs) IncrementMatchCount(_ context.Context, id string, delta int64, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return j.Err
	}
	row, ok := j.rows[id]
	if !ok {
		return nil
	}
	row.MatchCount += delta
	row.UpdatedAt = at
	j.rows[id] = row
	j.increments = append(j.increments, Increment{ID: id, Delta: delta, At: at})
	return nil
}

func (j *Jobs) Put(_ context.Context, row model.Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return j.Err
	}
	j.rows[row.ID] = row
	return nil
}

func (j *Jobs) Snapshot(id string) (model.Job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	row, ok := j.rows[id]
	return row, ok
}

func (j *Jobs) Increments() []Increment {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Increment(nil), j.increments...)
}

func (j *Jobs) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.rows)
}
