package events

import (
	"context"
	"time"

	"github.com/streamlens/streamlens/internal/domain/job"
)

// RecordsCollected announces one successful polling cycle so real-time
// consumers can fan updates out without polling the database.
type RecordsCollected struct {
	JobID    int64        `json:"job_id"`
	UserID   int64        `json:"user_id"`
	Platform job.Platform `json:"platform"`
	Entity   string       `json:"entity"`
	Count    int          `json:"count"`
	At       time.Time    `json:"at"`
}

// JobPaused announces an automatic pause so the owner can be notified
// that the job needs attention.
type JobPaused struct {
	JobID    int64           `json:"job_id"`
	UserID   int64           `json:"user_id"`
	Platform job.Platform    `json:"platform"`
	Entity   string          `json:"entity"`
	Reason   job.PauseReason `json:"reason"`
	Detail   string          `json:"detail"`
	At       time.Time       `json:"at"`
}

type Publisher interface {
	PublishRecordsCollected(ctx context.Context, ev RecordsCollected) error
	PublishJobPaused(ctx context.Context, ev JobPaused) error
}

// Noop is used when no brokers are configured; publishing is
// best-effort by contract.
type Noop struct{}

func (Noop) PublishRecordsCollected(context.Context, RecordsCollected) error { return nil }
func (Noop) PublishJobPaused(context.Context, JobPaused) error               { return nil }
