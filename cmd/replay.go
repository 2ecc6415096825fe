package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jmehdipour/match-stream/internal/app"
	"github.com/jmehdipour/match-stream/internal/logger"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmehdipour/match-stream/internal/repository/memory"
	"github.com/jmehdipour/match-stream/internal/service/match"
	"github.com/jmehdipour/match-stream/internal/stream"
	"github.com/spf13/cobra"
)

var (
	replayFile   string
	replayDryRun bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run a recorded stream event file through the handler once",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) read the event
		data, err := os.ReadFile(replayFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", replayFile, err)
		}
		records, err := stream.DecodePayload(data)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		// 3) stores: in-memory and seeded, or the configured ones
		report := replayReport{File: replayFile, DryRun: replayDryRun}
		var (
			stores match.Stores
			mem    *dryRunStores
		)
		if replayDryRun {
			mem = newDryRunStores()
			if err := seedDemo(ctx, mem.users, mem.jobs); err != nil {
				return err
			}
			stores = mem.match()
		} else {
			live, err := app.OpenStores(cfg)
			if err != nil {
				return err
			}
			defer live.Close()
			stores = live.Match()
		}

		coord, err := match.New(cfg, stores, logger.Named("coordinator"))
		if err != nil {
			return err
		}

		// 4) process once, no retries
		res, procErr := coord.Process(ctx, records)
		report.Result = res
		var be *match.BatchError
		if errors.As(procErr, &be) {
			for _, e := range be.Errors() {
				report.Errors = append(report.Errors, e.Error())
			}
		}

		// 5) read each touched match's trail back from the history log
		if report.Trails, err = readTrails(ctx, stores.History, records); err != nil {
			return err
		}
		if mem != nil {
			mem.fill(&report)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		return procErr
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "stream event JSON (a single record or a {\"Records\":[...]} envelope)")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "use seeded in-memory stores instead of the configured ones")
	_ = replayCmd.MarkFlagRequired("file")
}

type replayReport struct {
	File         string               `json:"file"`
	DryRun       bool                 `json:"dryRun"`
	Result       match.Result         `json:"result"`
	Errors       []string             `json:"errors,omitempty"`
	Trails       []matchTrail         `json:"trails,omitempty"`
	Transactions []model.Transaction  `json:"transactions,omitempty"`
	Users        []model.User         `json:"users,omitempty"`
	Jobs         []model.Job          `json:"jobs,omitempty"`
}

type matchTrail struct {
	MatchID string               `json:"matchId"`
	History []model.MatchHistory `json:"history"`
}

// readTrails lists the history of every match the records touched, in the
// order the matches first appear.
func readTrails(ctx context.Context, history repository.HistoryRepository, records []stream.Record) ([]matchTrail, error) {
	var trails []matchTrail
	seen := make(map[string]bool)
	for _, rec := range records {
		ev, err := stream.Normalize(rec)
		if err != nil || seen[ev.MatchID] {
			continue
		}
		seen[ev.MatchID] = true

		rows, err := history.ListByMatch(ctx, ev.MatchID, 0)
		if err != nil {
			return nil, fmt.Errorf("read history of %s: %w", ev.MatchID, err)
		}
		trails = append(trails, matchTrail{MatchID: ev.MatchID, History: rows})
	}
	return trails, nil
}

type dryRunStores struct {
	users        *memory.Users
	jobs         *memory.Jobs
	transactions *memory.Transactions
	history      *memory.History
}

func newDryRunStores() *dryRunStores {
	return &dryRunStores{
		users:        memory.NewUsers(),
		jobs:         memory.NewJobs(),
		transactions: memory.NewTransactions(),
		history:      memory.NewHistory(),
	}
}

func (s *dryRunStores) match() match.Stores {
	return match.Stores{
		Users:        s.users,
		Jobs:         s.jobs,
		Transactions: s.transactions,
		History:      s.history,
	}
}

// fill copies what the run wrote into the report.
func (s *dryRunStores) fill(r *replayReport) {
	r.Transactions = s.transactions.All()
	for _, id := range demoUsers {
		if u, ok := s.users.Snapshot(id); ok {
			r.Users = append(r.Users, u)
		}
	}
	for _, id := range demoJobs {
		if j, ok := s.jobs.Snapshot(id); ok {
			r.Jobs = append(r.Jobs, j)
		}
	}
}
