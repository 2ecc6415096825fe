package model

import "time"

type HistoryAction string

const (
	ActionCreated       HistoryAction = "CREATED"
	ActionUpdated       HistoryAction = "UPDATED"
	ActionStatusChanged HistoryAction = "STATUS_CHANGED"
	ActionDeleted       HistoryAction = "DELETED"
)

func (a HistoryAction) String() string { return string(a) }

// MatchHistory is one audit entry; exactly one is written per processed change event.
type MatchHistory struct {
	ID             string        `db:"id"`
	MatchID        string        `db:"match_id"`
	UserID         *string       `db:"user_id"`
	JobID          *string       `db:"job_id"`
	Action         HistoryAction `db:"action"`
	PreviousStatus *string       `db:"previous_status"`
	NewStatus      *string       `db:"new_status"`
	CreatedAt      time.Time     `db:"created_at"`
}

// StrPtr returns nil for "", so absent values stay NULL in the stores.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
