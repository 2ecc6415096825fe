package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given only the embedded defaults", t, func() {
		cfg, err := Load("")

		Convey("Then the delivery settings match the production deployment", func() {
			So(err, ShouldBeNil)
			So(cfg.Env, ShouldEqual, "dev")
			So(cfg.Stream.BatchSize, ShouldEqual, 10)
			So(cfg.Stream.RetryAttempts, ShouldEqual, 3)
			So(cfg.Stream.BatchWait, ShouldEqual, 500*time.Millisecond)
			So(cfg.JetStream.AckWait, ShouldEqual, 2*time.Minute)
			So(cfg.Counters.Breaker.FailThreshold, ShouldEqual, 5)
		})

		Convey("Then validation fails on the missing stores", func() {
			err := cfg.Validate()
			So(errors.Is(err, ErrMissingStore), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "user, job, transaction, match_history")
		})
	})

	Convey("Given the legacy environment names", t, func() {
		t.Setenv("USER_TABLE_NAME", "SP-dev-User")
		t.Setenv("JOB_TABLE_NAME", "SP-dev-Job")
		t.Setenv("TRANSACTION_TABLE_NAME", "SP-dev-Transaction")
		t.Setenv("MATCH_HISTORY_TABLE_NAME", "SP-dev-MatchHistory")
		t.Setenv("ENV", "prod")

		cfg, err := Load("")

		Convey("Then they fill the store identifiers and env tag", func() {
			So(err, ShouldBeNil)
			So(cfg.Stores.User, ShouldEqual, "SP-dev-User")
			So(cfg.Stores.MatchHistory, ShouldEqual, "SP-dev-MatchHistory")
			So(cfg.Env, ShouldEqual, "prod")
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("And the prefixed names win over them", func() {
			t.Setenv("MATCHSTREAM_STORES_USER", "users_v2")
			cfg, err := Load("")
			So(err, ShouldBeNil)
			So(cfg.Stores.User, ShouldEqual, "users_v2")
		})
	})

	Convey("Given a YAML file", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte("stream:\n  batch_size: 25\nstores:\n  user: users\n"), 0o600), ShouldBeNil)

		cfg, err := Load(path)

		Convey("Then it is merged over the defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Stream.BatchSize, ShouldEqual, 25)
			So(cfg.Stream.RetryAttempts, ShouldEqual, 3)
			So(cfg.Stores.User, ShouldEqual, "users")
		})
	})

	Convey("Given a config file that does not exist", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a store identifier that can't be used as a table name", t, func() {
		cfg := &Config{Stores: StoresConfig{
			User:         "users; DROP TABLE users",
			Job:          "jobs",
			Transaction:  "transactions",
			MatchHistory: "match_history",
		}}

		Convey("Then validation rejects it", func() {
			err := cfg.Validate()
			So(errors.Is(err, ErrInvalidStore), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "user")
		})
	})
}
