package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/events"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
	"github.com/streamlens/streamlens/internal/obs"
	"github.com/streamlens/streamlens/internal/obs/retry"
	"github.com/streamlens/streamlens/internal/ratelimit"
	"github.com/streamlens/streamlens/internal/secrets"
)

// Executor runs a single monitoring tick end to end: resolve the
// credential, pass the rate limiter, collect, persist, announce.
type Executor struct {
	Log        *zap.Logger
	Secrets    *secrets.Store
	Limiter    *ratelimit.Keyed
	Collectors map[job.Platform]collect.Collector
	Records    record.Repo
	Events     events.Publisher
	Publish    retry.Policy
}

// Execute returns the number of records stored and the tick error, if
// any. The returned error carries a failure kind the scheduler's
// policy dispatches on. The decrypted credential lives only for the
// duration of this call.
func (e *Executor) Execute(ctx context.Context, j job.Job) (int, error) {
	ctx, span := otel.Tracer("monitor").Start(ctx, "monitor.tick")
	span.SetAttributes(
		attribute.Int64("job.id", j.ID),
		attribute.String("job.platform", string(j.Platform)),
		attribute.String("job.entity", j.Entity),
	)
	defer span.End()

	n, err := e.execute(ctx, j)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(collect.KindOf(err)))
	}
	return n, err
}

func (e *Executor) execute(ctx context.Context, j job.Job) (int, error) {
	col, ok := e.Collectors[j.Platform]
	if !ok {
		return 0, collect.Fail(collect.KindTransient, "no collector for platform",
			fmt.Errorf("platform %q", j.Platform))
	}

	cred, err := e.Secrets.Resolve(ctx, j.UserID, j.Platform, j.Profile)
	if err != nil {
		return 0, collect.Fail(collect.KindCredential, "resolve credential", err)
	}
	defer cred.Close()

	if err := e.Limiter.Acquire(ctx, string(j.Platform), cred.Fingerprint()); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return 0, collect.Fail(collect.KindRateLimited, "outbound budget exhausted", err)
		}
		return 0, err
	}

	recs, err := col.Collect(ctx, cred, j.Entity)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	if err := e.Records.SaveRecords(ctx, j.ID, recs); err != nil {
		return 0, collect.Fail(collect.KindTransient, "persist records", err)
	}

	ev := events.RecordsCollected{
		JobID:    j.ID,
		UserID:   j.UserID,
		Platform: j.Platform,
		Entity:   j.Entity,
		Count:    len(recs),
		At:       time.Now().UTC(),
	}
	if err := retry.Do(ctx, func() error {
		return e.Events.PublishRecordsCollected(ctx, ev)
	}, e.Publish); err != nil {
		// Best effort: the records are already durable.
		obs.WithTrace(ctx, e.Log).Warn("publish collected event", zap.Int64("job_id", j.ID), zap.Error(err))
	}
	return len(recs), nil
}
