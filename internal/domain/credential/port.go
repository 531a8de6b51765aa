package credential

import (
	"context"

	"github.com/streamlens/streamlens/internal/domain/job"
)

type Repo interface {
	Upsert(ctx context.Context, c *Credential) error
	GetActive(ctx context.Context, userID int64, platform job.Platform, profile string) (*Credential, error)
	DeleteByUser(ctx context.Context, userID int64) error
}
