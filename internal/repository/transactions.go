package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmoiron/sqlx"
)

// TransactionsRepository is the append-only Transaction ledger.
type TransactionsRepository interface {
	// Insert appends one ledger row. If tx is nil, it opens and commits its own
	// transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, t model.Transaction) error
}

type TransactionsRepositoryImpl struct {
	db    *sqlx.DB
	table string
}

func NewTransactionsRepository(db *sqlx.DB, table string) *TransactionsRepositoryImpl {
	return &TransactionsRepositoryImpl{db: db, table: table}
}

var _ TransactionsRepository = (*TransactionsRepositoryImpl)(nil)

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *TransactionsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

// Insert writes a PENDING ledger row. Rows are never read back or updated here;
// settlement belongs to another service.
func (r *TransactionsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, t model.Transaction) error {
	q := fmt.Sprintf(`
		INSERT INTO %s
		    (id, match_id, user_id, job_id, amount, type, status, created_at)
		VALUES
		    (?,  ?,        ?,       ?,      ?,      ?,    ?,      ?)
	`, quoteIdent(r.table))
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			t.ID, t.MatchID, t.UserID, t.JobID, t.Amount, t.Type.String(), t.Status.String(), t.CreatedAt.UTC(),
		)
		return err
	})
}
