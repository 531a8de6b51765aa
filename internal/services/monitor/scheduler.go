package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/credential"
	"github.com/streamlens/streamlens/internal/domain/events"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
	"github.com/streamlens/streamlens/internal/repository/postgres"
)

// Config is the scheduler's slice of process configuration, immutable
// for the process lifetime.
type Config struct {
	Tick             time.Duration `mapstructure:"tick"`
	MinInterval      time.Duration `mapstructure:"min_interval"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	MaxInstances     int           `mapstructure:"max_instances"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
	TrendTTL         time.Duration `mapstructure:"trend_ttl"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

// entry is one job's scheduling state. The table is the authoritative
// in-memory view; only the scheduler mutates it, under its mutex.
type entry struct {
	job      job.Job
	nextRun  time.Time
	inflight int
}

type task struct {
	job job.Job
}

// Scheduler owns the active job table and drives periodic execution
// through a bounded worker pool.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	jobs   job.Repo
	recs   record.Repo
	creds  credential.Repo
	events events.Publisher
	exec   *Executor
	tx     postgres.Transactor
	cache  *cache.Cache
	clk    func() time.Time

	work chan task

	mu    sync.Mutex
	table map[int64]*entry
	byKey map[string]int64
}

func NewScheduler(
	log *zap.Logger,
	cfg Config,
	jobs job.Repo,
	recs record.Repo,
	creds credential.Repo,
	pub events.Publisher,
	exec *Executor,
	tx postgres.Transactor,
	c *cache.Cache,
	clk func() time.Time,
) *Scheduler {
	if clk == nil {
		clk = func() time.Time { return time.Now().UTC() }
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	return &Scheduler{
		log:    log,
		cfg:    cfg,
		jobs:   jobs,
		recs:   recs,
		creds:  creds,
		events: pub,
		exec:   exec,
		tx:     tx,
		cache:  c,
		clk:    clk,
		work:   make(chan task, cfg.QueueSize),
		table:  make(map[int64]*entry),
		byKey:  make(map[string]int64),
	}
}

func key(userID int64, p job.Platform, entity string) string {
	return fmt.Sprintf("%d|%s|%s", userID, p, entity)
}

// Load rehydrates the table from the persisted registry after a
// restart. Every job, paused ones included, keeps a schedule slot.
func (s *Scheduler) Load(ctx context.Context) (int, error) {
	list, err := s.jobs.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load job specs: %w", err)
	}
	now := s.clk()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range list {
		s.table[j.ID] = &entry{job: *j, nextRun: now}
		s.byKey[key(j.UserID, j.Platform, j.Entity)] = j.ID
	}
	return len(list), nil
}

// RegisterSpec is what the routing layer supplies to create a job.
// Zero Interval picks the platform default; zero MaxInstances picks
// the configured default.
type RegisterSpec struct {
	UserID       int64
	Platform     job.Platform
	Entity       string
	Profile      string
	Interval     time.Duration
	MaxInstances int
}

// Register validates uniqueness of (user, platform, entity), persists
// the job, and schedules it starting immediately.
func (s *Scheduler) Register(ctx context.Context, spec RegisterSpec) (*job.Job, error) {
	if !spec.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", job.ErrUnknownPlatform, spec.Platform)
	}
	interval := spec.Interval
	if interval == 0 {
		interval = job.DefaultInterval(spec.Platform)
	}
	if interval < s.cfg.MinInterval {
		return nil, job.ErrInvalidInterval
	}
	maxInst := spec.MaxInstances
	if maxInst <= 0 {
		maxInst = s.cfg.MaxInstances
	}
	if maxInst <= 0 {
		maxInst = 1
	}

	s.mu.Lock()
	if _, ok := s.byKey[key(spec.UserID, spec.Platform, spec.Entity)]; ok {
		s.mu.Unlock()
		return nil, job.ErrDuplicateJob
	}
	s.mu.Unlock()

	j := &job.Job{
		UserID:       spec.UserID,
		Platform:     spec.Platform,
		Entity:       spec.Entity,
		Profile:      spec.Profile,
		Interval:     interval,
		MaxInstances: maxInst,
		Enabled:      true,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.table[j.ID] = &entry{job: *j, nextRun: s.clk()}
	s.byKey[key(j.UserID, j.Platform, j.Entity)] = j.ID
	s.mu.Unlock()

	s.log.Info("job registered",
		zap.Int64("job_id", j.ID),
		zap.String("platform", string(j.Platform)),
		zap.String("entity", j.Entity),
		zap.Duration("interval", interval),
	)
	return j, nil
}

// Deregister cancels future executions and removes persisted state.
// An in-flight tick is not interrupted; it only loses its next slot.
func (s *Scheduler) Deregister(ctx context.Context, jobID, requestingUser int64) error {
	s.mu.Lock()
	e, ok := s.table[jobID]
	if !ok {
		s.mu.Unlock()
		return job.ErrNotFound
	}
	if e.job.UserID != requestingUser {
		s.mu.Unlock()
		return job.ErrNotOwner
	}
	delete(s.table, jobID)
	delete(s.byKey, key(e.job.UserID, e.job.Platform, e.job.Entity))
	s.mu.Unlock()

	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	s.log.Info("job deregistered", zap.Int64("job_id", jobID))
	return nil
}

// Pause disables execution while keeping the schedule slot, so resume
// preserves the original phase.
func (s *Scheduler) Pause(ctx context.Context, jobID int64) error {
	return s.setEnabled(ctx, jobID, false, job.PauseUser)
}

// Resume re-enables a paused job without resetting its interval clock.
// The consecutive-failure count starts fresh.
func (s *Scheduler) Resume(ctx context.Context, jobID int64) error {
	return s.setEnabled(ctx, jobID, true, job.PauseNone)
}

func (s *Scheduler) setEnabled(ctx context.Context, jobID int64, enabled bool, reason job.PauseReason) error {
	s.mu.Lock()
	e, ok := s.table[jobID]
	if !ok {
		s.mu.Unlock()
		return job.ErrNotFound
	}
	e.job.Enabled = enabled
	e.job.PausedBy = reason
	if enabled {
		e.job.NeedsAttn = false
		e.job.FailCount = 0
		e.job.LastError = ""
	}
	j := e.job
	s.mu.Unlock()

	if err := s.jobs.Update(ctx, &j); err != nil {
		return fmt.Errorf("persist job state: %w", err)
	}
	return nil
}

// SetInterval changes a job's polling interval, owner-checked. The
// next run is re-anchored to now so the new cadence applies at once.
func (s *Scheduler) SetInterval(ctx context.Context, jobID, requestingUser int64, interval time.Duration) error {
	if interval < s.cfg.MinInterval {
		return job.ErrInvalidInterval
	}

	s.mu.Lock()
	e, ok := s.table[jobID]
	if !ok {
		s.mu.Unlock()
		return job.ErrNotFound
	}
	if e.job.UserID != requestingUser {
		s.mu.Unlock()
		return job.ErrNotOwner
	}
	e.job.Interval = interval
	e.nextRun = s.clk().Add(interval)
	j := e.job
	s.mu.Unlock()

	if err := s.jobs.Update(ctx, &j); err != nil {
		return fmt.Errorf("persist job state: %w", err)
	}
	return nil
}

// Get returns the persisted job, owner-checked. Routing layers serve
// job detail pages from it.
func (s *Scheduler) Get(ctx context.Context, jobID, requestingUser int64) (*job.Job, error) {
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != requestingUser {
		return nil, job.ErrNotOwner
	}
	return j, nil
}

// ListByUser returns all of one user's jobs from the registry.
func (s *Scheduler) ListByUser(ctx context.Context, userID int64) ([]*job.Job, error) {
	return s.jobs.ListByUser(ctx, userID)
}

// Status is the user-visible health of one job.
type Status struct {
	JobID          int64           `json:"job_id"`
	Enabled        bool            `json:"enabled"`
	PausedBy       job.PauseReason `json:"paused_by,omitempty"`
	NeedsAttention bool            `json:"needs_attention"`
	LastRun        *time.Time      `json:"last_run,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	FailCount      int             `json:"fail_count"`
	NextRun        time.Time       `json:"next_run"`
}

func (s *Scheduler) Status(jobID int64) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.table[jobID]
	if !ok {
		return Status{}, job.ErrNotFound
	}
	st := Status{
		JobID:          e.job.ID,
		Enabled:        e.job.Enabled,
		PausedBy:       e.job.PausedBy,
		NeedsAttention: e.job.NeedsAttn,
		LastError:      e.job.LastError,
		FailCount:      e.job.FailCount,
		NextRun:        e.nextRun,
	}
	if e.job.LastRun != nil {
		t := *e.job.LastRun
		st.LastRun = &t
	}
	return st, nil
}

// dispatchStats summarizes one pass over the table.
type dispatchStats struct {
	dispatched int
	deferred   int
	overruns   int
	paused     int
}

// dispatchDue hands every due, runnable job to the worker pool. A full
// pool leaves the job due so the next pass retries it: deferred, never
// dropped. Paused and overrun jobs consume their slot as no-op ticks,
// which is what preserves phase alignment.
func (s *Scheduler) dispatchDue(now time.Time) dispatchStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st dispatchStats
	for _, e := range s.table {
		if e.nextRun.After(now) {
			continue
		}

		switch {
		case !e.job.Enabled:
			st.paused++
		case e.inflight >= e.job.MaxInstances:
			st.overruns++
		default:
			select {
			case s.work <- task{job: e.job}:
				e.inflight++
				st.dispatched++
			default:
				st.deferred++
				continue // keep due; retried on the next pass
			}
		}

		for !e.nextRun.After(now) {
			e.nextRun = e.nextRun.Add(e.job.Interval)
		}
	}
	return st
}

// applyOutcome folds one tick result into the job table and the
// persisted registry, applying the failure policy. It never touches
// other jobs: one job's fault cannot halt the rest.
func (s *Scheduler) applyOutcome(ctx context.Context, t task, collected int, execErr error) {
	now := s.clk()

	s.mu.Lock()
	e, ok := s.table[t.job.ID]
	if !ok {
		// Deregistered while in flight; nothing left to update.
		s.mu.Unlock()
		return
	}
	e.inflight--

	e.job.LastRun = &now
	var pausedEvent *events.JobPaused
	if execErr == nil {
		e.job.FailCount = 0
		e.job.LastError = ""
	} else {
		e.job.LastError = execErr.Error()
		switch collect.KindOf(execErr) {
		case collect.KindAuthInvalid:
			// Retrying cannot succeed without the user re-authenticating.
			e.job.Enabled = false
			e.job.PausedBy = job.PauseAuth
			e.job.NeedsAttn = true
		case collect.KindEntityNotFound:
			e.job.Enabled = false
			e.job.PausedBy = job.PauseEntity
			e.job.NeedsAttn = true
		default:
			e.job.FailCount++
			if e.job.FailCount >= s.cfg.FailureThreshold && e.job.Enabled {
				e.job.Enabled = false
				e.job.PausedBy = job.PauseFailures
				e.job.NeedsAttn = true
			}
		}
		if !e.job.Enabled && e.job.NeedsAttn {
			pausedEvent = &events.JobPaused{
				JobID:    e.job.ID,
				UserID:   e.job.UserID,
				Platform: e.job.Platform,
				Entity:   e.job.Entity,
				Reason:   e.job.PausedBy,
				Detail:   e.job.LastError,
				At:       now,
			}
		}
	}
	h := job.Health{
		LastRun:   now,
		LastError: e.job.LastError,
		FailCount: e.job.FailCount,
		Enabled:   e.job.Enabled,
		PausedBy:  e.job.PausedBy,
		NeedsAttn: e.job.NeedsAttn,
	}
	s.mu.Unlock()

	if err := s.jobs.UpdateHealth(ctx, t.job.ID, h); err != nil {
		s.log.Warn("update job health", zap.Int64("job_id", t.job.ID), zap.Error(err))
	}
	if pausedEvent != nil {
		s.log.Warn("job auto-paused",
			zap.Int64("job_id", t.job.ID),
			zap.String("reason", string(pausedEvent.Reason)),
			zap.String("detail", pausedEvent.Detail),
		)
		if err := s.events.PublishJobPaused(ctx, *pausedEvent); err != nil {
			s.log.Warn("publish pause event", zap.Int64("job_id", t.job.ID), zap.Error(err))
		}
	} else if execErr == nil {
		s.log.Debug("tick done", zap.Int64("job_id", t.job.ID), zap.Int("records", collected))
	}
}

// PurgeUser is the cascading cleanup for account deletion: in-memory
// schedules go first so no tick starts mid-purge, then jobs,
// credentials and records disappear in one transaction.
func (s *Scheduler) PurgeUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	for id, e := range s.table {
		if e.job.UserID == userID {
			delete(s.table, id)
			delete(s.byKey, key(e.job.UserID, e.job.Platform, e.job.Entity))
		}
	}
	s.mu.Unlock()

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.recs.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if err := s.jobs.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		if err := s.creds.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete credentials: %w", err)
		}
		return nil
	})
}

// Trend summarizes a job's stored series for one metric. Identical
// requests within the TTL share one computation through the cache.
func (s *Scheduler) Trend(ctx context.Context, jobID int64, metric string, limit int) (analyticsTrend, error) {
	s.mu.Lock()
	_, ok := s.table[jobID]
	s.mu.Unlock()
	if !ok {
		return analyticsTrend{}, job.ErrNotFound
	}

	fp := cache.Fingerprint("trend", fmt.Sprint(jobID), metric, fmt.Sprint(limit))
	raw, err := s.cache.GetOrCompute(ctx, fp, s.cfg.TrendTTL, func(ctx context.Context) (any, error) {
		points, err := s.recs.ListSeries(ctx, jobID, metric, limit)
		if err != nil {
			return nil, fmt.Errorf("load series: %w", err)
		}
		return trendOf(points), nil
	})
	if err != nil {
		return analyticsTrend{}, err
	}
	return raw.(analyticsTrend), nil
}
