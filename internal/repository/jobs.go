package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	jobFieldID         = "id"
	jobFieldMatchCount = "matchCount"
	jobFieldUpdatedAt  = "updatedAt"
)

// JobsRepository is the Job store: read by identity, increment by identity.
type JobsRepository interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error
	Put(ctx context.Context, j model.Job) error
}

// JobsRepositoryImpl keeps each job as a hash under <namespace>:JOB#<id>:METADATA#<id>.
type JobsRepositoryImpl struct {
	rdb       *redis.Client
	namespace string
}

func NewJobsRepository(rdb *redis.Client, namespace string) *JobsRepositoryImpl {
	return &JobsRepositoryImpl{rdb: rdb, namespace: namespace}
}

var _ JobsRepository = (*JobsRepositoryImpl)(nil)

func (r *JobsRepositoryImpl) key(id string) string {
	return r.namespace + ":" + model.JobPK(id) + ":" + model.JobSK(id)
}

// Get returns nil, nil when the job hash does not exist.
func (r *JobsRepositoryImpl) Get(ctx context.Context, id string) (*model.Job, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	j := &model.Job{ID: id}
	if v := fields[jobFieldMatchCount]; v != "" {
		if j.MatchCount, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("job %s %s: %w", id, jobFieldMatchCount, err)
		}
	}
	if v := fields[jobFieldUpdatedAt]; v != "" {
		if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("job %s %s: %w", id, jobFieldUpdatedAt, err)
		}
	}
	return j, nil
}

// incrementJob bumps matchCount and refreshes updatedAt in one step. A missing
// key is left alone so a deleted job is never recreated.
var incrementJob = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
return 1
`)

// IncrementMatchCount runs as a server-side script, so concurrent writers to the
// same job never abort each other.
func (r *JobsRepositoryImpl) IncrementMatchCount(ctx context.Context, id string, delta int64, at time.Time) error {
	err := incrementJob.Run(ctx, r.rdb, []string{r.key(id)},
		jobFieldMatchCount, delta,
		jobFieldUpdatedAt, at.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("job %s increment: %w", id, err)
	}
	return nil
}

// Put writes the whole hash. Only the seed command writes jobs.
func (r *JobsRepositoryImpl) Put(ctx context.Context, j model.Job) error {
	return r.rdb.HSet(ctx, r.key(j.ID),
		jobFieldID, j.ID,
		jobFieldMatchCount, j.MatchCount,
		jobFieldUpdatedAt, j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
}
