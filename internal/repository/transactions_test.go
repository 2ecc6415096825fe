package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/match-stream/internal/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTransactionsRepository(t *testing.T) {
	Convey("Given a MySQL-backed ledger", t, func() {
		db, mock := newMockDB(t, "mysql")
		repo := NewTransactionsRepository(db, "SP-dev-Transaction")
		ctx := context.Background()
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		insert := regexp.QuoteMeta("INSERT INTO `SP-dev-Transaction` (id, match_id, user_id, job_id, amount, type, status, created_at)")
		row := model.Transaction{
			ID:        "txn-1",
			MatchID:   "MATCH#m1",
			JobID:     model.StrPtr("j1"),
			Type:      model.TxMatchCreated,
			Status:    model.TxPending,
			CreatedAt: at,
		}

		Convey("When a row with absent user and amount is appended", func() {
			mock.ExpectBegin()
			mock.ExpectExec(insert).
				WithArgs("txn-1", "MATCH#m1", nil, "j1", nil, "MATCH_CREATED", "PENDING", at).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			err := repo.Insert(ctx, nil, row)

			Convey("Then the absent columns are written as NULL in its own transaction", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the insert fails", func() {
			down := errors.New("deadlock")
			mock.ExpectBegin()
			mock.ExpectExec(insert).WillReturnError(down)
			mock.ExpectRollback()

			err := repo.Insert(ctx, nil, row)

			Convey("Then the transaction is rolled back", func() {
				So(errors.Is(err, down), ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the caller owns the transaction", func() {
			mock.ExpectBegin()
			mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(1, 1))

			tx, err := db.BeginTxx(ctx, nil)
			So(err, ShouldBeNil)
			err = repo.Insert(ctx, tx, row)

			Convey("Then it is neither committed nor rolled back here", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}
