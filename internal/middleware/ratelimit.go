package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/intentgraph/intentgraph/internal/models"
	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client. Clients are keyed by API key
// when one is presented, by remote IP otherwise.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	perMin   int
	burst    int
	idleTTL  time.Duration
	keyHeader string
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a cleanup goroutine that stops when ctx is done.
// burst <= 0 allows a full minute's quota at once.
func NewRateLimiter(ctx context.Context, limitPerMinute, burst int, keyHeader string) *RateLimiter {
	if burst <= 0 {
		burst = limitPerMinute
	}
	rl := &RateLimiter{
		clients:  make(map[string]*client),
		perMin:   limitPerMinute,
		burst:    burst,
		idleTTL:  3 * time.Minute,
		keyHeader: keyHeader,
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return rl
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if time.Since(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(rl.perMin)/60.0, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

func (rl *RateLimiter) key(r *http.Request) string {
	if k := r.Header.Get(rl.keyHeader); k != "" {
		return "key:" + k
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware rejects requests over the limit with 429 and Retry-After
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.limiter(rl.key(r))
		ok := lim.Allow()
		remaining := int(math.Max(0, math.Floor(lim.Tokens())))

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.perMin))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !ok {
			retry := int(math.Ceil(60.0 / float64(max(rl.perMin, 1))))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RateLimit(ctx context.Context, limitPerMinute int, keyHeader string) func(http.Handler) http.Handler {
	return NewRateLimiter(ctx, limitPerMinute, 0, keyHeader).Middleware
}
