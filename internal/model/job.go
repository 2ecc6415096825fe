package model

import "time"

// Job is the aggregate kept in the Job store under pk=JOB#<id>, sk=METADATA#<id>.
type Job struct {
	ID         string
	MatchCount int64
	UpdatedAt  time.Time
}

func JobPK(id string) string { return "JOB#" + id }
func JobSK(id string) string { return "METADATA#" + id }
