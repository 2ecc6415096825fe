package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmoiron/sqlx"
	. "github.com/smartystreets/goconvey/convey"
)

// newMockDB returns a sqlx handle backed by sqlmock.
func newMockDB(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, driver), mock
}

func TestUsersRepository(t *testing.T) {
	Convey("Given a MySQL-backed user store", t, func() {
		db, mock := newMockDB(t, "mysql")
		repo := NewUsersRepository(db, "SP-dev-User")
		ctx := context.Background()
		at := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)

		selectUser := regexp.QuoteMeta("FROM `SP-dev-User` WHERE acc_type = ? AND id = ? LIMIT 1")
		increment := regexp.QuoteMeta("UPDATE `SP-dev-User` SET match_count = match_count + ?, updated_at = ? WHERE acc_type = ? AND id = ?")

		Convey("When the user does not exist", func() {
			mock.ExpectQuery(selectUser).
				WithArgs(model.UserAccType, "ghost").
				WillReturnRows(sqlmock.NewRows([]string{"acc_type", "id", "match_count", "updated_at"}))

			u, err := repo.Get(ctx, "ghost")

			Convey("Then Get reports it as absent", func() {
				So(err, ShouldBeNil)
				So(u, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the user exists", func() {
			mock.ExpectQuery(selectUser).
				WithArgs(model.UserAccType, "u1").
				WillReturnRows(sqlmock.NewRows([]string{"acc_type", "id", "match_count", "updated_at"}).
					AddRow(model.UserAccType, "u1", int64(4), at))

			u, err := repo.Get(ctx, "u1")

			Convey("Then the row is returned", func() {
				So(err, ShouldBeNil)
				So(u, ShouldResemble, &model.User{AccType: model.UserAccType, ID: "u1", MatchCount: 4, UpdatedAt: at})
			})
		})

		Convey("When the counter is incremented", func() {
			mock.ExpectExec(increment).
				WithArgs(int64(1), at, model.UserAccType, "u1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.IncrementMatchCount(ctx, "u1", 1, at)

			Convey("Then a single relative UPDATE is issued", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the row vanished before the increment", func() {
			mock.ExpectExec(increment).
				WithArgs(int64(1), at, model.UserAccType, "ghost").
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := repo.IncrementMatchCount(ctx, "ghost", 1, at)

			Convey("Then nothing is inserted in its place", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the database is down", func() {
			down := errors.New("connection refused")
			mock.ExpectExec(increment).WillReturnError(down)

			err := repo.IncrementMatchCount(ctx, "u1", 1, at)

			Convey("Then the error is returned", func() {
				So(errors.Is(err, down), ShouldBeTrue)
			})
		})
	})
}
