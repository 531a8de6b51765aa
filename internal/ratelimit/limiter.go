package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the bounded wait for a slot elapses.
// Callers treat it as a transient failure, never fatal.
var ErrRateLimited = errors.New("rate limit exceeded")

// Quota is Q acquisitions per window W for one key class.
type Quota struct {
	Limit   int
	Window  time.Duration
	MaxWait time.Duration
}

func (q Quota) limiter() *rate.Limiter {
	if q.Limit <= 0 || q.Window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(q.Window/time.Duration(q.Limit)), q.Limit)
}

// Keyed throttles outbound platform calls per (platform, credential
// identity) key. Buckets materialize on first use; a full burst is
// available immediately, so exactly Limit acquisitions succeed without
// waiting inside any window.
type Keyed struct {
	mu      sync.Mutex
	quotas  map[string]Quota
	def     Quota
	buckets map[string]*rate.Limiter
}

func NewKeyed(def Quota, perClass map[string]Quota) *Keyed {
	return &Keyed{
		quotas:  perClass,
		def:     def,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (k *Keyed) bucket(class, key string) (*rate.Limiter, Quota) {
	k.mu.Lock()
	defer k.mu.Unlock()
	q, ok := k.quotas[class]
	if !ok {
		q = k.def
	}
	full := class + "|" + key
	l, ok := k.buckets[full]
	if !ok {
		l = q.limiter()
		k.buckets[full] = l
	}
	return l, q
}

// Acquire takes one slot for the key, blocking up to the quota's
// MaxWait. It returns ErrRateLimited once the bounded wait is
// exceeded and the context error if ctx ends first.
func (k *Keyed) Acquire(ctx context.Context, class, key string) error {
	l, q := k.bucket(class, key)
	if q.MaxWait <= 0 {
		if !l.Allow() {
			return ErrRateLimited
		}
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, q.MaxWait)
	defer cancel()
	if err := l.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimited
	}
	return nil
}
