package match

import (
	"context"
	"time"

	"github.com/jmehdipour/match-stream/internal/config"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository/memory"
	"github.com/jmehdipour/match-stream/internal/stream"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	users        *memory.Users
	jobs         *memory.Jobs
	transactions *memory.Transactions
	history      *memory.History
	logs         *observer.ObservedLogs
	coordinator  *Coordinator
}

func testConfig() *config.Config {
	return &config.Config{
		Env: "test",
		Stores: config.StoresConfig{
			User:         "users",
			Job:          "jobs",
			Transaction:  "transactions",
			MatchHistory: "match_history",
		},
		Counters: config.CountersConfig{
			Breaker: config.BreakerConfig{FailThreshold: 3, OpenFor: time.Minute},
		},
	}
}

func newFixture() *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		users:        memory.NewUsers(model.User{ID: "u1"}, model.User{ID: "u3", MatchCount: 4}),
		jobs:         memory.NewJobs(model.Job{ID: "j1"}, model.Job{ID: "j3", MatchCount: 2}),
		transactions: memory.NewTransactions(),
		history:      memory.NewHistory(),
		logs:         logs,
	}
	c, err := New(testConfig(), Stores{
		Users:        f.users,
		Jobs:         f.jobs,
		Transactions: f.transactions,
		History:      f.history,
	}, zap.New(core))
	if err != nil {
		panic(err)
	}
	f.coordinator = c
	return f
}

// record builds a raw change record with string-only images; nil images are omitted.
func record(kind string, before, after map[string]string) stream.Record {
	return stream.Record{
		EventID:   kind + "-" + after["pk"] + before["pk"],
		EventName: kind,
		Change: stream.StreamRecord{
			OldImage: attrs(before),
			NewImage: attrs(after),
		},
	}
}

func attrs(m map[string]string) map[string]stream.AttributeValue {
	if m == nil {
		return nil
	}
	out := make(map[string]stream.AttributeValue, len(m))
	for k, v := range m {
		v := v
		out[k] = stream.AttributeValue{S: &v}
	}
	return out
}

// fakeCounterStore counts calls and fails on demand.
type fakeCounterStore struct {
	exists     bool
	err        error
	reads      int
	increments []int64
}

func (f *fakeCounterStore) Exists(_ context.Context, _ string) (bool, error) {
	f.reads++
	if f.err != nil {
		return false, f.err
	}
	return f.exists, nil
}

func (f *fakeCounterStore) IncrementMatchCount(_ context.Context, _ string, delta int64, _ time.Time) error {
	f.increments = append(f.increments, delta)
	return nil
}
