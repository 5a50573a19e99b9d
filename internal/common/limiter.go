package common

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool hands out one token bucket per key, created on first use.
// Entries idle for longer than ttl are evicted by a background sweep.
type LimiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	rps           rate.Limit
	burst         int
	ttl           time.Duration
	cleanupPeriod time.Duration
	startCleanup  sync.Once
	stop          chan struct{}
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimiterPool{
		m:             make(map[string]*limiterEntry),
		rps:           rate.Limit(rps),
		burst:         burst,
		ttl:           10 * time.Minute,
		cleanupPeriod: time.Minute,
		stop:          make(chan struct{}),
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = time.Now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: time.Now()}
	return l
}

func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *LimiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.ttl)
			p.mu.Lock()
			for k, e := range p.m {
				if e.lastSeen.Before(cutoff) {
					delete(p.m, k)
				}
			}
			p.mu.Unlock()
		}
	}
}

// Close stops the eviction goroutine.
func (p *LimiterPool) Close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// RateLimitMiddleware throttles per caller identity. It must run after
// AuthMiddleware; anonymous requests share the remote address as key.
func RateLimitMiddleware(p *LimiterPool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if id, ok := IdentityFrom(r.Context()); ok {
				key = id.UserID
			}
			if !p.Allow(key) {
				WriteError(w, &AppError{Code: CodeRateLimited, Message: "slow down a little"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
