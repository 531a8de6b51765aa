package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/streamlens/streamlens/internal/domain/job"
)

var _ job.Repo = (*JobRepoImpl)(nil)

type JobRepoImpl struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepoImpl { return &JobRepoImpl{db: db} }

const jobCols = `id, user_id, platform, entity, profile, interval_sec, max_instances,
enabled, paused_by, needs_attention, last_run, last_error, fail_count, created_at, updated_at`

const (
	qJobInsert = `
INSERT INTO monitoring_jobs (user_id, platform, entity, profile, interval_sec, max_instances, enabled)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
RETURNING ` + jobCols + `;
`

	qJobGetByID = `SELECT ` + jobCols + ` FROM monitoring_jobs WHERE id = $1;`

	qJobListByUser = `SELECT ` + jobCols + ` FROM monitoring_jobs WHERE user_id = $1 ORDER BY id;`

	qJobLoadAll = `SELECT ` + jobCols + ` FROM monitoring_jobs ORDER BY id;`

	qJobUpdateHealth = `
UPDATE monitoring_jobs
SET last_run = $2, last_error = $3, fail_count = $4,
    enabled = $5, paused_by = $6, needs_attention = $7, updated_at = NOW()
WHERE id = $1;
`

	qJobUpdate = `
UPDATE monitoring_jobs
SET interval_sec = $2, max_instances = $3, enabled = $4,
    paused_by = $5, needs_attention = $6, fail_count = $7, last_error = $8, updated_at = NOW()
WHERE id = $1;
`

	qJobDelete       = `DELETE FROM monitoring_jobs WHERE id = $1;`
	qJobDeleteByUser = `DELETE FROM monitoring_jobs WHERE user_id = $1;`
)

func scanJob(row pgx.Row, j *job.Job) error {
	var intervalSec int
	if err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Platform,
		&j.Entity,
		&j.Profile,
		&intervalSec,
		&j.MaxInstances,
		&j.Enabled,
		&j.PausedBy,
		&j.NeedsAttn,
		&j.LastRun,
		&j.LastError,
		&j.FailCount,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.ErrNotFound
		}
		return fmt.Errorf("scan job: %w", err)
	}
	j.Interval = time.Duration(intervalSec) * time.Second
	return nil
}

func (r *JobRepoImpl) Create(ctx context.Context, j *job.Job) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	intervalSec := int(j.Interval / time.Second)
	row := r.db.querier(ctx).QueryRow(ctx, qJobInsert,
		j.UserID, j.Platform, j.Entity, j.Profile, intervalSec, j.MaxInstances)
	if err := scanJob(row, j); err != nil {
		if isUniqueViolation(err) {
			return job.ErrDuplicateJob
		}
		return err
	}
	return nil
}

func (r *JobRepoImpl) GetByID(ctx context.Context, id int64) (*job.Job, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var j job.Job
	if err := scanJob(r.db.querier(ctx).QueryRow(ctx, qJobGetByID, id), &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepoImpl) list(ctx context.Context, q string, args ...any) ([]*job.Job, error) {
	rows, err := r.db.querier(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		var j job.Job
		if err := scanJob(rows, &j); err != nil {
			return nil, err
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *JobRepoImpl) ListByUser(ctx context.Context, userID int64) ([]*job.Job, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return r.list(ctx, qJobListByUser, userID)
}

func (r *JobRepoImpl) LoadAll(ctx context.Context) ([]*job.Job, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return r.list(ctx, qJobLoadAll)
}

func (r *JobRepoImpl) UpdateHealth(ctx context.Context, id int64, h job.Health) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var lastRun *time.Time
	if !h.LastRun.IsZero() {
		lastRun = &h.LastRun
	}
	_, err := r.db.querier(ctx).Exec(ctx, qJobUpdateHealth,
		id, lastRun, h.LastError, h.FailCount, h.Enabled, h.PausedBy, h.NeedsAttn)
	return err
}

func (r *JobRepoImpl) Update(ctx context.Context, j *job.Job) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	intervalSec := int(j.Interval / time.Second)
	cmd, err := r.db.querier(ctx).Exec(ctx, qJobUpdate,
		j.ID, intervalSec, j.MaxInstances, j.Enabled, j.PausedBy, j.NeedsAttn, j.FailCount, j.LastError)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.querier(ctx).Exec(ctx, qJobDelete, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepoImpl) DeleteByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.querier(ctx).Exec(ctx, qJobDeleteByUser, userID)
	return err
}
