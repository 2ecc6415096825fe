package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmoiron/sqlx"
)

// UsersRepository is the User store: read by identity, increment by identity.
type UsersRepository interface {
	Get(ctx context.Context, id string) (*model.User, error)
	IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error
	Put(ctx context.Context, u model.User) error
}

type UsersRepositoryImpl struct {
	db    *sqlx.DB
	table string
}

// NewUsersRepository binds the repository to a validated table name.
func NewUsersRepository(db *sqlx.DB, table string) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db, table: table}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

// Get returns nil, nil when the user does not exist.
func (r *UsersRepositoryImpl) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, fmt.Sprintf(`
		SELECT acc_type, id, match_count, updated_at
		  FROM %s
		 WHERE acc_type = ? AND id = ? LIMIT 1
	`, quoteIdent(r.table)), model.UserAccType, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementMatchCount is a single-statement increment; it never creates the row.
func (r *UsersRepositoryImpl) IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		   SET match_count = match_count + ?, updated_at = ?
		 WHERE acc_type = ? AND id = ?
	`, quoteIdent(r.table)), delta, at.UTC(), model.UserAccType, id)
	return err
}

// Put upserts a user row. Only the seed command writes users.
func (r *UsersRepositoryImpl) Put(ctx context.Context, u model.User) error {
	if u.AccType == "" {
		u.AccType = model.UserAccType
	}
	_, err := r.db.NamedExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (acc_type, id, match_count, updated_at)
		VALUES (:acc_type, :id, :match_count, :updated_at)
		ON DUPLICATE KEY UPDATE match_count = VALUES(match_count), updated_at = VALUES(updated_at)
	`, quoteIdent(r.table)), u)
	return err
}

// quoteIdent backquotes a table name. Names are checked against the identifier
// pattern in config.Validate before they get here.
func quoteIdent(name string) string {
	return "`" + name + "`"
}
