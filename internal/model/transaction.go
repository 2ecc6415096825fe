package model

import "time"

type TxType string

const (
	TxMatchCreated   TxType = "MATCH_CREATED"
	TxMatchCompleted TxType = "MATCH_COMPLETED"
)

func (t TxType) String() string { return string(t) }

type TxStatus string

// TxPending is the only status this service ever writes; settlement happens elsewhere.
const TxPending TxStatus = "PENDING"

func (s TxStatus) String() string { return string(s) }

// Transaction is an append-only ledger row.
type Transaction struct {
	ID        string    `db:"id"`
	MatchID   string    `db:"match_id"`
	UserID    *string   `db:"user_id"` // nullable
	JobID     *string   `db:"job_id"`  // nullable
	Amount    *int64    `db:"amount"`  // nullable, minor units
	Type      TxType    `db:"type"`
	Status    TxStatus  `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}
