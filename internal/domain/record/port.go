package record

import "context"

type Repo interface {
	SaveRecords(ctx context.Context, jobID int64, recs []Record) error
	ListSeries(ctx context.Context, jobID int64, metric string, limit int) ([]Point, error)
	DeleteByUser(ctx context.Context, userID int64) error
}
