package match

import (
	"context"
	"errors"
	"testing"

	"github.com/jmehdipour/match-stream/internal/config"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/stream"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCoordinatorScenarios(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coordinator over in-memory stores", t, func() {
		f := newFixture()

		Convey("When an ACTIVE match is inserted", func() {
			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("INSERT", nil, map[string]string{"pk": "m1", "userId": "u1", "jobId": "j1", "status": "ACTIVE"}),
			})

			Convey("Then one CREATED entry, both counters and one MATCH_CREATED transaction are written", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, Result{Total: 1, Processed: 1})

				hist := f.history.All()
				So(hist, ShouldHaveLength, 1)
				So(hist[0].Action, ShouldEqual, model.ActionCreated)
				So(hist[0].PreviousStatus, ShouldBeNil)
				So(*hist[0].NewStatus, ShouldEqual, "ACTIVE")
				So(*hist[0].UserID, ShouldEqual, "u1")
				So(hist[0].ID, ShouldStartWith, "m1-")

				u, _ := f.users.Snapshot("u1")
				So(u.MatchCount, ShouldEqual, 1)
				j, _ := f.jobs.Snapshot("j1")
				So(j.MatchCount, ShouldEqual, 1)

				txs := f.transactions.All()
				So(txs, ShouldHaveLength, 1)
				So(txs[0].Type, ShouldEqual, model.TxMatchCreated)
				So(txs[0].Status, ShouldEqual, model.TxPending)
				So(txs[0].Amount, ShouldBeNil)
				So(*txs[0].UserID, ShouldEqual, "u1")
				So(txs[0].ID, ShouldStartWith, "txn-")
			})
		})

		Convey("When a match moves from ACTIVE to COMPLETED", func() {
			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("MODIFY",
					map[string]string{"pk": "m2", "userId": "u1", "jobId": "j1", "status": "ACTIVE"},
					map[string]string{"pk": "m2", "userId": "u1", "jobId": "j1", "status": "COMPLETED"}),
			})

			Convey("Then a STATUS_CHANGED entry and one MATCH_COMPLETED transaction are written, counters untouched", func() {
				So(err, ShouldBeNil)
				So(res.Processed, ShouldEqual, 1)

				hist := f.history.All()
				So(hist, ShouldHaveLength, 1)
				So(hist[0].Action, ShouldEqual, model.ActionStatusChanged)
				So(*hist[0].PreviousStatus, ShouldEqual, "ACTIVE")
				So(*hist[0].NewStatus, ShouldEqual, "COMPLETED")

				So(f.users.Increments(), ShouldBeEmpty)
				So(f.jobs.Increments(), ShouldBeEmpty)

				txs := f.transactions.All()
				So(txs, ShouldHaveLength, 1)
				So(txs[0].Type, ShouldEqual, model.TxMatchCompleted)
			})
		})

		Convey("When a match is removed", func() {
			_, err := f.coordinator.Process(ctx, []stream.Record{
				record("REMOVE", map[string]string{"pk": "m3", "userId": "u3", "jobId": "j3", "status": "ACTIVE"}, nil),
			})

			Convey("Then a DELETED entry is written and the counters get a zero delta", func() {
				So(err, ShouldBeNil)

				hist := f.history.All()
				So(hist, ShouldHaveLength, 1)
				So(hist[0].Action, ShouldEqual, model.ActionDeleted)
				So(*hist[0].PreviousStatus, ShouldEqual, "ACTIVE")
				So(hist[0].NewStatus, ShouldBeNil)
				So(*hist[0].UserID, ShouldEqual, "u3")

				So(f.users.Increments(), ShouldHaveLength, 1)
				So(f.users.Increments()[0].Delta, ShouldEqual, 0)
				So(f.jobs.Increments(), ShouldHaveLength, 1)
				So(f.jobs.Increments()[0].Delta, ShouldEqual, 0)

				u, _ := f.users.Snapshot("u3")
				So(u.MatchCount, ShouldEqual, 4)
				So(f.transactions.All(), ShouldBeEmpty)
			})
		})

		Convey("When the same batch is delivered twice", func() {
			batch := []stream.Record{
				record("INSERT", nil, map[string]string{"pk": "m1", "userId": "u1", "jobId": "j1", "status": "ACTIVE"}),
			}
			_, err1 := f.coordinator.Process(ctx, batch)
			_, err2 := f.coordinator.Process(ctx, batch)

			Convey("Then every side effect is applied again", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)

				hist := f.history.All()
				So(hist, ShouldHaveLength, 2)
				So(hist[0].ID, ShouldNotEqual, hist[1].ID)

				txs := f.transactions.All()
				So(txs, ShouldHaveLength, 2)
				So(txs[0].ID, ShouldNotEqual, txs[1].ID)

				u, _ := f.users.Snapshot("u1")
				So(u.MatchCount, ShouldEqual, 2)
			})
		})

		Convey("When one record of a batch can't be decoded", func() {
			bad := record("INSERT", nil, map[string]string{"pk": "m5"})
			bogus := "not-a-number"
			bad.Change.NewImage["score"] = stream.AttributeValue{N: &bogus}

			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("INSERT", nil, map[string]string{"pk": "m4", "status": "PENDING"}),
				bad,
				record("MODIFY", map[string]string{"pk": "m6", "status": "ACTIVE"}, map[string]string{"pk": "m6", "status": "ACTIVE"}),
			})

			Convey("Then the other records are still processed and exactly one error is reported", func() {
				So(res, ShouldResemble, Result{Total: 3, Processed: 2, Failed: 1})

				var be *BatchError
				So(errors.As(err, &be), ShouldBeTrue)
				So(be.Errors(), ShouldHaveLength, 1)
				So(be.Total, ShouldEqual, 3)
				So(err.Error(), ShouldStartWith, "failed to process 1 record(s) out of 3")

				hist := f.history.All()
				So(hist, ShouldHaveLength, 2)
				So(hist[0].MatchID, ShouldEqual, "m4")
				So(hist[1].MatchID, ShouldEqual, "m6")
				So(hist[1].Action, ShouldEqual, model.ActionUpdated)
			})
		})

		Convey("When a record has no event kind", func() {
			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("", nil, map[string]string{"pk": "m7", "status": "ACTIVE"}),
				record("INSERT", nil, map[string]string{"pk": "m8", "status": "PENDING"}),
			})

			Convey("Then it is skipped without an error or a history entry", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, Result{Total: 2, Processed: 1, Skipped: 1})
				So(f.history.All(), ShouldHaveLength, 1)
				So(f.logs.FilterMessage("record missing event kind, skipping").Len(), ShouldEqual, 1)
			})
		})

		Convey("When the event kind is not recognized", func() {
			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("TTL_EXPIRE", nil, map[string]string{"pk": "m9", "userId": "u1", "status": "ACTIVE"}),
			})

			Convey("Then nothing is written and the record counts as skipped", func() {
				So(err, ShouldBeNil)
				So(res.Skipped, ShouldEqual, 1)
				So(f.history.All(), ShouldBeEmpty)
				So(f.users.Increments(), ShouldBeEmpty)
				So(f.logs.FilterMessage("unknown event kind, skipping").Len(), ShouldEqual, 1)
			})
		})

		Convey("When the event name differs from a known kind only in case", func() {
			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("insert", nil, map[string]string{"pk": "m9", "userId": "u1", "status": "ACTIVE"}),
			})

			Convey("Then it is skipped like any unknown kind", func() {
				So(err, ShouldBeNil)
				So(res.Skipped, ShouldEqual, 1)
				So(res.Processed, ShouldEqual, 0)
				So(f.history.All(), ShouldBeEmpty)
				So(f.transactions.All(), ShouldBeEmpty)
			})
		})

		Convey("When the history store is down", func() {
			f.history.Err = errors.New("clickhouse: connection refused")

			res, err := f.coordinator.Process(ctx, []stream.Record{
				record("INSERT", nil, map[string]string{"pk": "m1", "userId": "u1", "jobId": "j1", "status": "ACTIVE"}),
				record("INSERT", nil, map[string]string{"pk": "m2", "userId": "u1", "status": "ACTIVE"}),
			})

			Convey("Then each record fails and no later effect of that record runs", func() {
				So(res.Failed, ShouldEqual, 2)
				var be *BatchError
				So(errors.As(err, &be), ShouldBeTrue)
				So(be.Errors(), ShouldHaveLength, 2)
				So(errors.Is(err, f.history.Err), ShouldBeTrue)

				So(f.users.Increments(), ShouldBeEmpty)
				So(f.transactions.All(), ShouldBeEmpty)
			})
		})
	})
}

func TestNewCoordinator(t *testing.T) {
	Convey("Given a configuration without the job and history stores", t, func() {
		cfg := testConfig()
		cfg.Stores.Job = ""
		cfg.Stores.MatchHistory = " "

		_, err := NewCoordinator(cfg, NewHandler(nil, nil, nil, nil, nil), nil)

		Convey("Then the coordinator refuses to start", func() {
			So(errors.Is(err, config.ErrMissingStore), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "job, match_history")
		})
	})

	Convey("Given a nil configuration", t, func() {
		_, err := New(nil, Stores{}, nil)

		Convey("Then construction fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
