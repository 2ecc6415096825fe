package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmoiron/sqlx"
)

// HistoryRepository is the ClickHouse history log: appended by the handler,
// read back per match by replay.
type HistoryRepository interface {
	Insert(ctx context.Context, h model.MatchHistory) error
	ListByMatch(ctx context.Context, matchID string, limit int) ([]model.MatchHistory, error)
}

type historyRepository struct {
	ch    *sqlx.DB // ClickHouse connection
	table string
}

func NewHistoryRepository(ch *sqlx.DB, table string) HistoryRepository {
	return &historyRepository{ch: ch, table: table}
}

// Insert goes through the driver's batch path (begin, prepare, exec, commit),
// which is how clickhouse-go accepts inserts over database/sql.
func (r *historyRepository) Insert(ctx context.Context, h model.MatchHistory) error {
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, match_id, user_id, job_id, action, previous_status, new_status, created_at)",
		quoteIdent(r.table),
	))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx,
		h.ID, h.MatchID, h.UserID, h.JobID, h.Action.String(), h.PreviousStatus, h.NewStatus, h.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return tx.Commit()
}

// ListByMatch returns the audit trail of one match, oldest first. Ids are ULIDs,
// so they break ties between entries written in the same instant.
func (r *historyRepository) ListByMatch(ctx context.Context, matchID string, limit int) ([]model.MatchHistory, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	q := fmt.Sprintf(`
		SELECT id, match_id, user_id, job_id, action, previous_status, new_status, created_at
		FROM %s
		WHERE match_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?
	`, quoteIdent(r.table))

	var rows []model.MatchHistory
	if err := r.ch.SelectContext(ctx, &rows, q, matchID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
