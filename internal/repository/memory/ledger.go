package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmoiron/sqlx"
)

// Transactions is an append-only in-memory ledger. The tx argument is ignored.
type Transactions struct {
	mu   sync.Mutex
	rows []model.Transaction
	Err  error
}

var _ repository.TransactionsRepository = (*Transactions)(nil)

func NewTransactions() *Transactions { return &Transactions{} }

func (t *Transactions) Insert(_ context.Context, _ *sqlx.Tx, row model.Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.rows = append(t.rows, row)
	return nil
}

// All returns the rows in insertion order.
func (t *Transactions) All() []model.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Transaction(nil), t.rows...)
}

// History is an append-only in-memory audit log.
type History struct {
	mu   sync.Mutex
	rows []model.MatchHistory
	Err  error
}

var _ repository.HistoryRepository = (*History)(nil)

func NewHistory() *History { return &History{} }

func (h *History) Insert(_ context.Context, row model.MatchHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.rows = append(h.rows, row)
	return nil
}

func (h *History) ListByMatch(_ context.Context, matchID string, limit int) ([]model.MatchHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var out []model.MatchHistory
	for _, row := range h.rows {
		if row.MatchID == matchID {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns the rows in insertion order.
func (h *History) All() []model.MatchHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.MatchHistory(nil), h.rows...)
}
