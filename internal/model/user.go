package model

import "time"

// UserAccType is the fixed partition value users are stored under.
const UserAccType = "USER"

type User struct {
	AccType    string    `db:"acc_type"`
	ID         string    `db:"id"`
	MatchCount int64     `db:"match_count"`
	UpdatedAt  time.Time `db:"updated_at"`
}
