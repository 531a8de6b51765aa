package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamlens/streamlens/internal/domain/record"
)

var _ record.Repo = (*RecordRepoImpl)(nil)

type RecordRepoImpl struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepoImpl { return &RecordRepoImpl{db: db} }

const (
	qRecordInsert = `
INSERT INTO collected_records (job_id, platform, entity, ts, metric, value, labels)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`

	qRecordSeries = `
SELECT ts, value
FROM collected_records
WHERE job_id = $1 AND metric = $2
ORDER BY ts DESC
LIMIT $3;
`

	qRecordDeleteByUser = `
DELETE FROM collected_records
WHERE job_id IN (SELECT id FROM monitoring_jobs WHERE user_id = $1);
`
)

func (r *RecordRepoImpl) SaveRecords(ctx context.Context, jobID int64, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := r.db.querier(ctx)
	for _, rec := range recs {
		labels := []byte("{}")
		if len(rec.Labels) > 0 {
			b, err := json.Marshal(rec.Labels)
			if err != nil {
				return fmt.Errorf("marshal labels: %w", err)
			}
			labels = b
		}
		if _, err := q.Exec(ctx, qRecordInsert,
			jobID, rec.Platform, rec.Entity, rec.Timestamp, rec.Metric, rec.Value, labels); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return nil
}

func (r *RecordRepoImpl) ListSeries(ctx context.Context, jobID int64, metric string, limit int) ([]record.Point, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.querier(ctx).Query(ctx, qRecordSeries, jobID, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var out []record.Point
	for rows.Next() {
		var p record.Point
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// Oldest first for trend analysis.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *RecordRepoImpl) DeleteByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.querier(ctx).Exec(ctx, qRecordDeleteByUser, userID)
	return err
}
