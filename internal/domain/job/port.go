package job

import "context"

type Repo interface {
	Create(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id int64) (*Job, error)
	ListByUser(ctx context.Context, userID int64) ([]*Job, error)
	LoadAll(ctx context.Context) ([]*Job, error)
	UpdateHealth(ctx context.Context, id int64, h Health) error
	Update(ctx context.Context, j *Job) error
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}
