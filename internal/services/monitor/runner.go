package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/domain/collect"
)

// Runner drives the scheduler: a shared dispatch ticker feeding a
// bounded worker pool. One loop, many jobs.
type Runner struct {
	Log *zap.Logger
	S   *Scheduler

	mDispatched prometheus.Counter
	mDeferred   prometheus.Counter
	mOverruns   prometheus.Counter
	mTicks      prometheus.Counter
	mRecords    prometheus.Counter
	mFailed     *prometheus.CounterVec
	mTickDur    prometheus.Histogram
	mJobs       prometheus.GaugeFunc
}

func NewRunner(log *zap.Logger, s *Scheduler) *Runner {
	return &Runner{
		Log: log,
		S:   s,
		mDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_dispatched_total", Help: "Due jobs handed to the worker pool",
		}),
		mDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_deferred_total", Help: "Due jobs deferred because the pool was full",
		}),
		mOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_overrun_total", Help: "Due jobs skipped because a previous tick was still running",
		}),
		mTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_completed_total", Help: "Successfully completed ticks",
		}),
		mRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_records_collected_total", Help: "Records persisted by completed ticks",
		}),
		mFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_ticks_failed_total", Help: "Failed ticks by failure kind",
		}, []string{"kind"}),
		mTickDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "monitor_tick_duration_seconds", Help: "Single tick duration",
			Buckets: prometheus.DefBuckets,
		}),
		mJobs: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "monitor_jobs_registered", Help: "Jobs currently in the schedule table",
		}, func() float64 {
			s.mu.Lock()
			defer s.mu.Unlock()
			return float64(len(s.table))
		}),
	}
}

func (r *Runner) dispatch(now time.Time) {
	st := r.S.dispatchDue(now)
	if st.dispatched > 0 {
		r.mDispatched.Add(float64(st.dispatched))
	}
	if st.deferred > 0 {
		r.mDeferred.Add(float64(st.deferred))
		r.Log.Warn("worker pool saturated", zap.Int("deferred", st.deferred))
	}
	if st.overruns > 0 {
		r.mOverruns.Add(float64(st.overruns))
	}
	if st.dispatched > 0 || st.overruns > 0 {
		r.Log.Debug("dispatch pass",
			zap.Int("dispatched", st.dispatched),
			zap.Int("overruns", st.overruns),
			zap.Int("paused", st.paused),
		)
	}
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for t := range r.S.work {
		start := time.Now()
		n, err := r.S.exec.Execute(ctx, t.job)
		r.S.applyOutcome(ctx, t, n, err)
		if err != nil {
			r.mFailed.WithLabelValues(string(collect.KindOf(err))).Inc()
		} else {
			r.mTicks.Inc()
			r.mRecords.Add(float64(n))
		}
		r.mTickDur.Observe(time.Since(start).Seconds())
	}
}

// Run blocks until ctx is cancelled. Shutdown lets queued and
// in-flight ticks finish within the configured grace, then cuts the
// workers' context so slow API calls cannot hold the process.
func (r *Runner) Run(ctx context.Context) error {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	for i := 0; i < r.S.cfg.Workers; i++ {
		wg.Add(1)
		go r.worker(workCtx, &wg)
	}

	ticker := time.NewTicker(r.S.cfg.Tick)
	defer ticker.Stop()

	r.dispatch(r.S.clk())
	for {
		select {
		case <-ctx.Done():
			close(r.S.work)
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(r.S.cfg.ShutdownGrace):
				r.Log.Warn("shutdown grace elapsed, cancelling in-flight ticks")
				cancelWork()
				<-done
			}
			return ctx.Err()
		case <-ticker.C:
			r.dispatch(r.S.clk())
		}
	}
}
