package job

import (
	"errors"
	"time"
)

type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformTwitter Platform = "twitter"
	PlatformYouTube Platform = "youtube"
	PlatformReddit  Platform = "reddit"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitch, PlatformTwitter, PlatformYouTube, PlatformReddit:
		return true
	}
	return false
}

// DefaultInterval returns the polling interval used when a registration
// does not choose one. Streams change fast, subreddits slowly.
func DefaultInterval(p Platform) time.Duration {
	switch p {
	case PlatformTwitch:
		return 30 * time.Second
	case PlatformTwitter:
		return 5 * time.Minute
	case PlatformReddit:
		return 30 * time.Minute
	case PlatformYouTube:
		return time.Hour
	}
	return 5 * time.Minute
}

// PauseReason records why a job is not executing.
type PauseReason string

const (
	PauseNone      PauseReason = ""
	PauseUser      PauseReason = "user"
	PauseFailures  PauseReason = "failures"
	PauseAuth      PauseReason = "auth"
	PauseEntity    PauseReason = "entity_gone"
)

// Job is one recurring poll of an external entity on behalf of one user.
// The (UserID, Platform, Entity) triple is unique.
type Job struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"user_id"`
	Platform     Platform      `json:"platform"`
	Entity       string        `json:"entity"`
	Profile      string        `json:"profile"`
	Interval     time.Duration `json:"interval"`
	MaxInstances int           `json:"max_instances"`
	Enabled      bool          `json:"enabled"`
	PausedBy     PauseReason   `json:"paused_by"`
	NeedsAttn    bool          `json:"needs_attention"`
	LastRun      *time.Time    `json:"last_run"`
	LastError    string        `json:"last_error"`
	FailCount    int           `json:"fail_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Health is the mutable per-tick outcome persisted after each run.
type Health struct {
	LastRun   time.Time
	LastError string
	FailCount int
	Enabled   bool
	PausedBy  PauseReason
	NeedsAttn bool
}

var (
	ErrDuplicateJob    = errors.New("monitoring job already exists for this target")
	ErrInvalidInterval = errors.New("interval below configured minimum")
	ErrNotFound        = errors.New("monitoring job not found")
	ErrNotOwner        = errors.New("job belongs to another user")
	ErrUnknownPlatform = errors.New("unsupported platform")
)
