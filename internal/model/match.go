package model

// Match statuses the side-effect rules react to. Status is free-form upstream;
// anything else passes through untouched.
const (
	MatchStatusActive    = "ACTIVE"
	MatchStatusCompleted = "COMPLETED"
)

// MatchRecord is one image (before or after) of a row in the Match store.
type MatchRecord struct {
	PK         string         `json:"pk"`
	SK         string         `json:"sk"`
	UserID     string         `json:"userId,omitempty"`
	JobID      string         `json:"jobId,omitempty"`
	Status     string         `json:"status,omitempty"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
	Attributes map[string]any `json:"-"` // every decoded attribute, including the ones above
}

// MatchID is the partition key of the match row.
func (m *MatchRecord) MatchID() string {
	if m == nil {
		return ""
	}
	return m.PK
}

type EventKind string

const (
	KindInsert EventKind = "INSERT"
	KindModify EventKind = "MODIFY"
	KindRemove EventKind = "REMOVE"
)

func (k EventKind) String() string { return string(k) }

func (k EventKind) Valid() bool {
	return k == KindInsert || k == KindModify || k == KindRemove
}

// ParseEventKind matches the upstream event name exactly; "insert" is not INSERT.
// Returns (value, true) if recognized; otherwise (raw, false).
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(s)
	return k, k.Valid()
}

// ChangeEvent is the normalized form of one change record. It lives for a single
// processing pass and is never persisted.
type ChangeEvent struct {
	Kind      EventKind
	MatchID   string
	UserID    string
	JobID     string
	OldStatus string
	NewStatus string
	After     *MatchRecord
	Before    *MatchRecord

	// upstream identity, for logs only
	EventID        string
	SequenceNumber string
}
