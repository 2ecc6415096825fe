package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository/memory"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCounterUpdater(t *testing.T) {
	ctx := context.Background()

	Convey("Given a counter updater over the user store", t, func() {
		users := memory.NewUsers(model.User{ID: "u1", MatchCount: 7})
		u := NewCounterUpdater(UserCounterStore(users), nil)
		fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		u.now = func() time.Time { return fixed }

		Convey("When the user exists", func() {
			applied, err := u.Apply(ctx, "u1", 1)

			Convey("Then the counter and updatedAt move", func() {
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)
				row, _ := users.Snapshot("u1")
				So(row.MatchCount, ShouldEqual, 8)
				So(row.UpdatedAt, ShouldEqual, fixed)
			})
		})

		Convey("When the user does not exist", func() {
			applied, err := u.Apply(ctx, "ghost", 1)

			Convey("Then nothing happens and nothing is created", func() {
				So(err, ShouldBeNil)
				So(applied, ShouldBeFalse)
				_, ok := users.Snapshot("ghost")
				So(ok, ShouldBeFalse)
				So(users.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the store fails", func() {
			users.Err = errors.New("mysql: too many connections")
			_, err := u.Apply(ctx, "u1", 1)

			Convey("Then the error is returned to the caller", func() {
				So(errors.Is(err, users.Err), ShouldBeTrue)
			})
		})
	})

	Convey("Given a counter updater guarded by a breaker", t, func() {
		store := &fakeCounterStore{err: errors.New("redis: i/o timeout")}
		br := NewMicroBreaker(2, time.Minute)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		br.now = func() time.Time { return now }
		u := NewCounterUpdater(store, br)

		Convey("When the store keeps failing", func() {
			_, err1 := u.Apply(ctx, "j1", 1)
			_, err2 := u.Apply(ctx, "j1", 1)
			_, err3 := u.Apply(ctx, "j1", 1)

			Convey("Then calls stop reaching the store once the breaker opens", func() {
				So(err1, ShouldNotBeNil)
				So(err2, ShouldNotBeNil)
				So(err3, ShouldEqual, ErrCounterStoreUnavailable)
				So(store.reads, ShouldEqual, 2)
				So(br.Open(), ShouldBeTrue)
			})

			Convey("And after the open period a successful probe closes it", func() {
				now = now.Add(2 * time.Minute)
				store.err = nil
				store.exists = true

				applied, err := u.Apply(ctx, "j1", 1)
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)
				So(br.Open(), ShouldBeFalse)
				So(store.increments, ShouldResemble, []int64{1})
			})
		})
	})
}

func TestCounterDelta(t *testing.T) {
	Convey("Counter deltas by event kind", t, func() {
		So(counterDelta(model.KindInsert), ShouldEqual, 1)
		So(counterDelta(model.KindRemove), ShouldEqual, 0)
		So(counterDelta(model.KindModify), ShouldEqual, 0)
	})
}
