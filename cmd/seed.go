package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/match-stream/internal/app"
	"github.com/jmehdipour/match-stream/internal/logger"
	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the user and job stores with the entities the sample event references",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) connect stores
		stores, err := app.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		log := logger.Named("seed")
		log.Info("seeding demo users and jobs")

		if err := seedDemo(cmd.Context(), stores.Users, stores.Jobs); err != nil {
			return err
		}

		log.Info("seed completed", zap.Int("users", len(demoUsers)), zap.Int("jobs", len(demoJobs)))
		return nil
	},
}

// Deterministic demo entities, matching testdata/stream_event.json.
var (
	demoUsers = []string{"test-user-456", "test-user-789"}
	demoJobs  = []string{"test-job-789", "test-job-123"}
)

// seedDemo upserts the demo entities with zeroed counters (idempotent).
func seedDemo(ctx context.Context, users repository.UsersRepository, jobs repository.JobsRepository) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()
	for _, id := range demoUsers {
		if err := users.Put(ctx, model.User{AccType: model.UserAccType, ID: id, UpdatedAt: now}); err != nil {
			return fmt.Errorf("seed user %q: %w", id, err)
		}
	}
	for _, id := range demoJobs {
		if err := jobs.Put(ctx, model.Job{ID: id, UpdatedAt: now}); err != nil {
			return fmt.Errorf("seed job %q: %w", id, err)
		}
	}
	return nil
}
