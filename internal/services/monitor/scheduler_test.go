package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/credential"
	"github.com/streamlens/streamlens/internal/domain/events"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
	"github.com/streamlens/streamlens/internal/obs/retry"
	"github.com/streamlens/streamlens/internal/ratelimit"
	"github.com/streamlens/streamlens/internal/secrets"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memJobs struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]job.Job
}

func newMemJobs() *memJobs { return &memJobs{rows: map[int64]job.Job{}} }

func (m *memJobs) Create(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == j.UserID && r.Platform == j.Platform && r.Entity == j.Entity {
			return job.ErrDuplicateJob
		}
	}
	m.seq++
	j.ID = m.seq
	m.rows[j.ID] = *j
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id int64) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return &r, nil
}

func (m *memJobs) ListByUser(_ context.Context, userID int64) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*job.Job
	for _, r := range m.rows {
		if r.UserID == userID {
			rr := r
			out = append(out, &rr)
		}
	}
	return out, nil
}

func (m *memJobs) LoadAll(_ context.Context) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*job.Job, 0, len(m.rows))
	for _, r := range m.rows {
		rr := r
		out = append(out, &rr)
	}
	return out, nil
}

func (m *memJobs) UpdateHealth(_ context.Context, id int64, h job.Health) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil
	}
	lr := h.LastRun
	r.LastRun = &lr
	r.LastError = h.LastError
	r.FailCount = h.FailCount
	r.Enabled = h.Enabled
	r.PausedBy = h.PausedBy
	r.NeedsAttn = h.NeedsAttn
	m.rows[id] = r
	return nil
}

// Update mirrors the column set the SQL repository writes; anything
// else on the struct stays as stored.
func (m *memJobs) Update(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[j.ID]
	if !ok {
		return job.ErrNotFound
	}
	r.Interval = j.Interval
	r.MaxInstances = j.MaxInstances
	r.Enabled = j.Enabled
	r.PausedBy = j.PausedBy
	r.NeedsAttn = j.NeedsAttn
	r.FailCount = j.FailCount
	r.LastError = j.LastError
	m.rows[j.ID] = r
	return nil
}

func (m *memJobs) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memJobs) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.UserID == userID {
			delete(m.rows, id)
		}
	}
	return nil
}

type memRecords struct {
	mu        sync.Mutex
	saved     map[int64][]record.Record
	series    []record.Point
	listCalls int
}

func newMemRecords() *memRecords { return &memRecords{saved: map[int64][]record.Record{}} }

func (m *memRecords) SaveRecords(_ context.Context, jobID int64, recs []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[jobID] = append(m.saved[jobID], recs...)
	return nil
}

func (m *memRecords) ListSeries(_ context.Context, _ int64, _ string, _ int) ([]record.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.series, nil
}

func (m *memRecords) DeleteByUser(context.Context, int64) error { return nil }

type memCreds struct {
	mu   sync.Mutex
	rows map[string]credential.Credential
}

func newMemCreds() *memCreds { return &memCreds{rows: map[string]credential.Credential{}} }

func credKey(userID int64, p job.Platform, profile string) string {
	return key(userID, p, profile)
}

func (m *memCreds) Upsert(_ context.Context, c *credential.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[credKey(c.UserID, c.Platform, c.Profile)] = *c
	return nil
}

func (m *memCreds) GetActive(_ context.Context, userID int64, p job.Platform, profile string) (*credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[credKey(userID, p, profile)]
	if !ok || !c.Active {
		return nil, credential.ErrCredentialNotFound
	}
	return &c, nil
}

func (m *memCreds) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.rows {
		if c.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

type capturePub struct {
	mu        sync.Mutex
	collected []events.RecordsCollected
	paused    []events.JobPaused
}

func (p *capturePub) PublishRecordsCollected(_ context.Context, ev events.RecordsCollected) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collected = append(p.collected, ev)
	return nil
}

func (p *capturePub) PublishJobPaused(_ context.Context, ev events.JobPaused) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = append(p.paused, ev)
	return nil
}

func (p *capturePub) pausedEvents() []events.JobPaused {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.JobPaused(nil), p.paused...)
}

type scriptedCollector struct {
	mu    sync.Mutex
	calls int
	err   error
	recs  []record.Record
}

func (c *scriptedCollector) Collect(context.Context, collect.Credential, string) ([]record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.recs, nil
}

func (c *scriptedCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type env struct {
	clk   *fakeClock
	sched *Scheduler
	jobs  *memJobs
	recs  *memRecords
	creds *memCreds
	pub   *capturePub
	col   *scriptedCollector
	store *secrets.Store
}

func testConfig() Config {
	return Config{
		Tick:             time.Second,
		MinInterval:      10 * time.Second,
		Workers:          4,
		QueueSize:        16,
		FailureThreshold: 3,
		MaxInstances:     1,
		ShutdownGrace:    time.Second,
		TrendTTL:         10 * time.Minute,
	}
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()

	clk := newFakeClock()
	jobs := newMemJobs()
	recs := newMemRecords()
	creds := newMemCreds()
	pub := &capturePub{}
	col := &scriptedCollector{recs: []record.Record{{Metric: record.MetricViewerCount, Value: 42}}}

	cipher, err := secrets.NewCipher([]byte("unit-test-master-key"))
	require.NoError(t, err)
	store := secrets.NewStore(cipher, creds)

	cols := map[job.Platform]collect.Collector{
		job.PlatformTwitch:  col,
		job.PlatformTwitter: col,
		job.PlatformYouTube: col,
		job.PlatformReddit:  col,
	}
	exec := &Executor{
		Log:        zap.NewNop(),
		Secrets:    store,
		Limiter:    ratelimit.NewKeyed(ratelimit.Quota{Limit: 1000, Window: time.Minute}, nil),
		Collectors: cols,
		Records:    recs,
		Events:     pub,
		Publish:    retry.DefaultPublishPolicy(nil),
	}
	sched := NewScheduler(zap.NewNop(), cfg, jobs, recs, creds, pub, exec, passTx{}, cache.New(), clk.Now)
	return &env{clk: clk, sched: sched, jobs: jobs, recs: recs, creds: creds, pub: pub, col: col, store: store}
}

func (e *env) seedCredential(t *testing.T, userID int64, p job.Platform, fields map[string]string) {
	t.Helper()
	blob, err := e.store.Encrypt(p, fields)
	require.NoError(t, err)
	require.NoError(t, e.creds.Upsert(context.Background(), &credential.Credential{
		UserID:   userID,
		Platform: p,
		Profile:  "default",
		Blob:     blob,
		Active:   true,
	}))
}

func (e *env) register(t *testing.T, userID int64, p job.Platform, entity string, interval time.Duration) *job.Job {
	t.Helper()
	j, err := e.sched.Register(context.Background(), RegisterSpec{
		UserID:   userID,
		Platform: p,
		Entity:   entity,
		Profile:  "default",
		Interval: interval,
	})
	require.NoError(t, err)
	return j
}

// runDue executes one dispatch pass synchronously, standing in for
// the worker pool.
func (e *env) runDue(t *testing.T) dispatchStats {
	t.Helper()
	st := e.sched.dispatchDue(e.clk.Now())
	for i := 0; i < st.dispatched; i++ {
		tk := <-e.sched.work
		n, err := e.sched.exec.Execute(context.Background(), tk.job)
		e.sched.applyOutcome(context.Background(), tk, n, err)
	}
	return st
}

func TestRegister_DuplicateTriple(t *testing.T) {
	e := newEnv(t, testConfig())
	e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	_, err := e.sched.Register(context.Background(), RegisterSpec{
		UserID: 1, Platform: job.PlatformTwitch, Entity: "shroud", Interval: time.Minute,
	})
	require.ErrorIs(t, err, job.ErrDuplicateJob)

	// Same entity for another user is fine.
	_, err = e.sched.Register(context.Background(), RegisterSpec{
		UserID: 2, Platform: job.PlatformTwitch, Entity: "shroud", Interval: time.Minute,
	})
	require.NoError(t, err)
}

func TestRegister_IntervalValidation(t *testing.T) {
	e := newEnv(t, testConfig())

	_, err := e.sched.Register(context.Background(), RegisterSpec{
		UserID: 1, Platform: job.PlatformTwitch, Entity: "a", Interval: time.Second,
	})
	require.ErrorIs(t, err, job.ErrInvalidInterval)

	// Zero interval falls back to the platform default.
	j := e.register(t, 1, job.PlatformReddit, "golang", 0)
	require.Equal(t, 30*time.Minute, j.Interval)
}

func TestRegister_UnknownPlatform(t *testing.T) {
	e := newEnv(t, testConfig())

	_, err := e.sched.Register(context.Background(), RegisterSpec{
		UserID: 1, Platform: job.Platform("myspace"), Entity: "tom", Interval: time.Minute,
	})
	require.ErrorIs(t, err, job.ErrUnknownPlatform)
	require.NotErrorIs(t, err, job.ErrNotFound)
}

func TestTick_CollectsAndPersists(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	st := e.runDue(t)
	require.Equal(t, 1, st.dispatched)
	require.Len(t, e.recs.saved[j.ID], 1)
	require.Len(t, e.pub.collected, 1)
	require.Equal(t, j.ID, e.pub.collected[0].JobID)

	status, err := e.sched.Status(j.ID)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.Zero(t, status.FailCount)
	require.NotNil(t, status.LastRun)
	require.Equal(t, e.clk.Now().Add(time.Minute), status.NextRun)
}

func TestTick_MissingCredentialCountsTowardThreshold(t *testing.T) {
	e := newEnv(t, testConfig())
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	for i := 0; i < 3; i++ {
		e.runDue(t)
		e.clk.Advance(time.Minute)
	}

	status, err := e.sched.Status(j.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.Equal(t, job.PauseFailures, status.PausedBy)
	require.True(t, status.NeedsAttention)
	require.Equal(t, 3, status.FailCount)
	require.Zero(t, e.col.callCount())
}

func TestTick_TransientFailuresAutoPauseAtThreshold(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)
	e.col.err = collect.Fail(collect.KindTransient, "upstream 500", errors.New("boom"))

	for i := 0; i < 2; i++ {
		e.runDue(t)
		e.clk.Advance(time.Minute)
	}
	status, _ := e.sched.Status(j.ID)
	require.True(t, status.Enabled, "below threshold must keep running")
	require.Equal(t, 2, status.FailCount)

	e.runDue(t)
	status, _ = e.sched.Status(j.ID)
	require.False(t, status.Enabled)
	require.Equal(t, job.PauseFailures, status.PausedBy)
	require.True(t, status.NeedsAttention)

	paused := e.pub.pausedEvents()
	require.Len(t, paused, 1)
	require.Equal(t, job.PauseFailures, paused[0].Reason)

	// A paused job stops counting ticks.
	e.clk.Advance(time.Minute)
	st := e.runDue(t)
	require.Zero(t, st.dispatched)
	require.Equal(t, 1, st.paused)
}

func TestTick_AuthFailurePausesImmediately(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitter, map[string]string{"bearer_token": "tok"})
	j := e.register(t, 1, job.PlatformTwitter, "jack", time.Minute)
	e.col.err = collect.Fail(collect.KindAuthInvalid, "token revoked", errors.New("401"))

	e.runDue(t)

	status, _ := e.sched.Status(j.ID)
	require.False(t, status.Enabled)
	require.Equal(t, job.PauseAuth, status.PausedBy)
	require.True(t, status.NeedsAttention)
	require.Equal(t, 1, e.col.callCount())
}

func TestTick_SuccessResetsFailureCount(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	e.col.err = collect.Fail(collect.KindTransient, "flappy upstream", errors.New("503"))
	e.runDue(t)
	e.clk.Advance(time.Minute)
	e.runDue(t)

	e.col.err = nil
	e.clk.Advance(time.Minute)
	e.runDue(t)

	status, _ := e.sched.Status(j.ID)
	require.True(t, status.Enabled)
	require.Zero(t, status.FailCount)
	require.Empty(t, status.LastError)
}

func TestResume_FailureResetSurvivesRestart(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	e.col.err = collect.Fail(collect.KindTransient, "upstream 500", errors.New("boom"))
	for i := 0; i < 3; i++ {
		e.runDue(t)
		e.clk.Advance(time.Minute)
	}
	status, _ := e.sched.Status(j.ID)
	require.False(t, status.Enabled)

	require.NoError(t, e.sched.Resume(context.Background(), j.ID))

	// A new scheduler over the same registry must see the reset, not
	// the pre-pause failure count.
	fresh := newEnv(t, testConfig())
	fresh.jobs = e.jobs
	fresh.sched.jobs = e.jobs
	fresh.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	_, err := fresh.sched.Load(context.Background())
	require.NoError(t, err)

	status, err = fresh.sched.Status(j.ID)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.Zero(t, status.FailCount)
	require.Empty(t, status.LastError)

	// A single hiccup after the restart stays below the threshold.
	fresh.col.err = collect.Fail(collect.KindTransient, "upstream 500", errors.New("boom"))
	fresh.runDue(t)
	status, _ = fresh.sched.Status(j.ID)
	require.True(t, status.Enabled)
	require.Equal(t, 1, status.FailCount)
}

func TestPause_PreservesPhase(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)
	t0 := e.clk.Now()
	e.runDue(t)

	require.NoError(t, e.sched.Pause(context.Background(), j.ID))

	// Two intervals and change pass while paused; slots tick as no-ops.
	e.clk.Advance(2*time.Minute + 5*time.Second)
	st := e.runDue(t)
	require.Zero(t, st.dispatched)
	require.Equal(t, 1, st.paused)
	require.Equal(t, 1, e.col.callCount())

	require.NoError(t, e.sched.Resume(context.Background(), j.ID))
	status, _ := e.sched.Status(j.ID)
	require.True(t, status.Enabled)
	require.Equal(t, job.PauseNone, status.PausedBy)
	// Still on the original minute grid anchored at t0.
	require.Equal(t, t0.Add(3*time.Minute), status.NextRun)
}

func TestDeregister_OwnershipAndInflight(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j := e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	require.ErrorIs(t, e.sched.Deregister(context.Background(), j.ID, 99), job.ErrNotOwner)

	// Dispatch puts a tick in flight, then the job is removed before
	// the worker picks it up.
	st := e.sched.dispatchDue(e.clk.Now())
	require.Equal(t, 1, st.dispatched)
	require.NoError(t, e.sched.Deregister(context.Background(), j.ID, 1))

	tk := <-e.sched.work
	n, err := e.sched.exec.Execute(context.Background(), tk.job)
	e.sched.applyOutcome(context.Background(), tk, n, err)

	_, err = e.sched.Status(j.ID)
	require.ErrorIs(t, err, job.ErrNotFound)
	_, err = e.jobs.GetByID(context.Background(), j.ID)
	require.ErrorIs(t, err, job.ErrNotFound)
}

func TestDispatch_OverrunSkipsAndCounts(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	e.register(t, 1, job.PlatformTwitch, "shroud", time.Minute)

	// First dispatch leaves the tick queued (in flight, not drained).
	st := e.sched.dispatchDue(e.clk.Now())
	require.Equal(t, 1, st.dispatched)

	e.clk.Advance(time.Minute)
	st = e.sched.dispatchDue(e.clk.Now())
	require.Zero(t, st.dispatched)
	require.Equal(t, 1, st.overruns)

	// Drain; the next slot runs normally again.
	tk := <-e.sched.work
	n, err := e.sched.exec.Execute(context.Background(), tk.job)
	e.sched.applyOutcome(context.Background(), tk, n, err)

	e.clk.Advance(time.Minute)
	st = e.runDue(t)
	require.Equal(t, 1, st.dispatched)
}

func TestDispatch_FullPoolDefersNotDrops(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	e := newEnv(t, cfg)
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	e.register(t, 1, job.PlatformTwitch, "a", time.Minute)
	e.register(t, 1, job.PlatformTwitch, "b", time.Minute)

	st := e.sched.dispatchDue(e.clk.Now())
	require.Equal(t, 1, st.dispatched)
	require.Equal(t, 1, st.deferred)

	// Drain the queued tick; the deferred job is still due and goes
	// out on the next pass without waiting a full interval.
	tk := <-e.sched.work
	n, err := e.sched.exec.Execute(context.Background(), tk.job)
	e.sched.applyOutcome(context.Background(), tk, n, err)

	st = e.runDue(t)
	require.Equal(t, 1, st.dispatched)
	require.Zero(t, st.deferred)
}

func TestLoad_RehydratesTable(t *testing.T) {
	e := newEnv(t, testConfig())
	e.register(t, 1, job.PlatformTwitch, "a", time.Minute)
	e.register(t, 2, job.PlatformReddit, "golang", time.Hour)

	fresh := newEnv(t, testConfig())
	fresh.jobs = e.jobs
	fresh.sched.jobs = e.jobs
	n, err := fresh.sched.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = fresh.sched.Status(1)
	require.NoError(t, err)
	_, err = fresh.sched.Status(2)
	require.NoError(t, err)
}

func TestPurgeUser_RemovesEverything(t *testing.T) {
	e := newEnv(t, testConfig())
	e.seedCredential(t, 1, job.PlatformTwitch, map[string]string{
		"client_id": "id", "client_secret": "sec",
	})
	j1 := e.register(t, 1, job.PlatformTwitch, "a", time.Minute)
	j2 := e.register(t, 2, job.PlatformTwitch, "b", time.Minute)

	require.NoError(t, e.sched.PurgeUser(context.Background(), 1))

	_, err := e.sched.Status(j1.ID)
	require.ErrorIs(t, err, job.ErrNotFound)
	_, err = e.sched.Status(j2.ID)
	require.NoError(t, err)

	_, err = e.creds.GetActive(context.Background(), 1, job.PlatformTwitch, "default")
	require.ErrorIs(t, err, credential.ErrCredentialNotFound)
}

func TestSetInterval_OwnerOnly(t *testing.T) {
	e := newEnv(t, testConfig())
	j := e.register(t, 1, job.PlatformTwitch, "a", time.Minute)

	require.ErrorIs(t, e.sched.SetInterval(context.Background(), j.ID, 2, 5*time.Minute), job.ErrNotOwner)
	require.ErrorIs(t, e.sched.SetInterval(context.Background(), j.ID, 1, time.Second), job.ErrInvalidInterval)
	require.NoError(t, e.sched.SetInterval(context.Background(), j.ID, 1, 5*time.Minute))

	status, _ := e.sched.Status(j.ID)
	require.Equal(t, e.clk.Now().Add(5*time.Minute), status.NextRun)
}

func TestTrend_CachesComputation(t *testing.T) {
	e := newEnv(t, testConfig())
	j := e.register(t, 1, job.PlatformTwitch, "a", time.Minute)

	base := e.clk.Now()
	for i := 0; i < 10; i++ {
		e.recs.series = append(e.recs.series, record.Point{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Value:     float64(100 + i*10),
		})
	}

	tr, err := e.sched.Trend(context.Background(), j.ID, record.MetricViewerCount, 100)
	require.NoError(t, err)
	require.Equal(t, "up", string(tr.Direction))

	_, err = e.sched.Trend(context.Background(), j.ID, record.MetricViewerCount, 100)
	require.NoError(t, err)
	require.Equal(t, 1, e.recs.listCalls)

	_, err = e.sched.Trend(context.Background(), 999, record.MetricViewerCount, 100)
	require.ErrorIs(t, err, job.ErrNotFound)
}
