package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamlens/streamlens/internal/domain/credential"
	"github.com/streamlens/streamlens/internal/domain/job"
)

var _ credential.Repo = (*CredentialRepoImpl)(nil)

type CredentialRepoImpl struct {
	db *DB
}

func NewCredentialRepo(db *DB) *CredentialRepoImpl { return &CredentialRepoImpl{db: db} }

const (
	qCredUpsert = `
INSERT INTO credentials (user_id, platform, profile, blob, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, platform, profile)
DO UPDATE SET blob = EXCLUDED.blob, active = EXCLUDED.active, updated_at = NOW()
RETURNING id, created_at, updated_at;
`

	qCredGetActive = `
SELECT id, user_id, platform, profile, blob, active, created_at, updated_at
FROM credentials
WHERE user_id = $1 AND platform = $2 AND profile = $3 AND active = TRUE;
`

	qCredDeleteByUser = `DELETE FROM credentials WHERE user_id = $1;`
)

func (r *CredentialRepoImpl) Upsert(ctx context.Context, c *credential.Credential) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.querier(ctx).QueryRow(ctx, qCredUpsert,
		c.UserID, c.Platform, c.Profile, c.Blob, c.Active)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepoImpl) GetActive(ctx context.Context, userID int64, platform job.Platform, profile string) (*credential.Credential, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c credential.Credential
	err := r.db.querier(ctx).QueryRow(ctx, qCredGetActive, userID, platform, profile).Scan(
		&c.ID, &c.UserID, &c.Platform, &c.Profile, &c.Blob, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepoImpl) DeleteByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.querier(ctx).Exec(ctx, qCredDeleteByUser, userID)
	return err
}
