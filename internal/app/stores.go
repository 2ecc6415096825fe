// Package app wires configuration into live store connections for the commands.
package app

import (
	"context"
	"fmt"

	"github.com/jmehdipour/match-stream/internal/config"
	"github.com/jmehdipour/match-stream/internal/db"
	httpx "github.com/jmehdipour/match-stream/internal/http"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmehdipour/match-stream/internal/service/match"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// Stores owns the connections behind the four side-effect stores.
type Stores struct {
	MySQL      *sqlx.DB
	ClickHouse *sqlx.DB
	Redis      *redis.Client

	Users        *repository.UsersRepositoryImpl
	Jobs         *repository.JobsRepositoryImpl
	Transactions *repository.TransactionsRepositoryImpl
	History      repository.HistoryRepository
}

// OpenStores connects MySQL (users, transactions), Redis (jobs) and ClickHouse
// (history). Store identifiers must already be validated.
func OpenStores(cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	// 1) MySQL
	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	s.MySQL = mysqlDB

	// 2) Redis
	rdb, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	s.Redis = rdb

	// 3) ClickHouse
	ch, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	s.ClickHouse = ch

	s.Users = repository.NewUsersRepository(mysqlDB, cfg.Stores.User)
	s.Transactions = repository.NewTransactionsRepository(mysqlDB, cfg.Stores.Transaction)
	s.Jobs = repository.NewJobsRepository(rdb, cfg.Stores.Job)
	s.History = repository.NewHistoryRepository(ch, cfg.Stores.MatchHistory)
	return s, nil
}

// Match returns the stores in the shape the coordinator takes.
func (s *Stores) Match() match.Stores {
	return match.Stores{
		Users:        s.Users,
		Jobs:         s.Jobs,
		Transactions: s.Transactions,
		History:      s.History,
	}
}

// Checks are the readiness probes for the ops server.
func (s *Stores) Checks() map[string]httpx.Check {
	return map[string]httpx.Check{
		"mysql":      func(ctx context.Context) error { return s.MySQL.PingContext(ctx) },
		"clickhouse": func(ctx context.Context) error { return s.ClickHouse.PingContext(ctx) },
		"redis":      func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() },
	}
}

func (s *Stores) Close() error {
	var err error
	if s.MySQL != nil {
		err = multierr.Append(err, s.MySQL.Close())
	}
	if s.ClickHouse != nil {
		err = multierr.Append(err, s.ClickHouse.Close())
	}
	if s.Redis != nil {
		err = multierr.Append(err, s.Redis.Close())
	}
	return err
}
