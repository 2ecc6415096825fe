package match

import (
	"context"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmehdipour/match-stream/internal/util"
)

// HistoryRecorder appends one audit entry per processed change event.
type HistoryRecorder struct {
	repo repository.HistoryRepository
	now  func() time.Time
}

func NewHistoryRecorder(repo repository.HistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, now: time.Now}
}

// Record builds the entry and appends it. There is no read-before-write, so a
// redelivered event gets a second entry with a different id.
// User and job ids come from image, the snapshot the action describes.
func (r *HistoryRecorder) Record(ctx context.Context, matchID string, action model.HistoryAction, previousStatus, newStatus string, image *model.MatchRecord) (model.MatchHistory, error) {
	at := r.now().UTC()
	h := model.MatchHistory{
		ID:             matchID + "-" + util.NewID(at),
		MatchID:        matchID,
		Action:         action,
		PreviousStatus: model.StrPtr(previousStatus),
		NewStatus:      model.StrPtr(newStatus),
		CreatedAt:      at,
	}
	if image != nil {
		h.UserID = model.StrPtr(image.UserID)
		h.JobID = model.StrPtr(image.JobID)
	}
	if err := r.repo.Insert(ctx, h); err != nil {
		return model.MatchHistory{}, err
	}
	return h, nil
}
