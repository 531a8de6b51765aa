package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Inbound protects the service itself: a per-client sliding limiter
// independent of the outbound throttle. Idle clients are evicted so the
// bucket map does not grow without bound.
type Inbound struct {
	quota Quota

	mu      sync.Mutex
	clients map[string]*inboundEntry
}

type inboundEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewInbound(quota Quota) *Inbound {
	return &Inbound{quota: quota, clients: make(map[string]*inboundEntry)}
}

// Allow reports whether the client may proceed right now. Excess
// requests are rejected, never queued.
func (in *Inbound) Allow(clientID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	now := time.Now()
	e, ok := in.clients[clientID]
	if !ok {
		e = &inboundEntry{lim: in.quota.limiter()}
		in.clients[clientID] = e
	}
	e.seen = now

	if len(in.clients) > 1024 {
		for id, c := range in.clients {
			if now.Sub(c.seen) > 10*in.quota.Window {
				delete(in.clients, id)
			}
		}
	}
	return e.lim.Allow()
}

// Middleware rejects excess requests with 429, keying by remote host.
// The routing layer can wrap its own mux with a different key source.
func (in *Inbound) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !in.Allow(host) {
			w.Header().Set("Retry-After", in.quota.Window.String())
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
