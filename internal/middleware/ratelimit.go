package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/student-library/internal/browser"
)

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	PerMinute       int           // sustained requests per minute
	Burst           int           // defaults to PerMinute
	CleanupInterval time.Duration // defaults to 5m
}

// OpenTabs reports whether a tab id names a tab the server holds.
// *browser.Registry implements it.
type OpenTabs interface {
	Has(id string) bool
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyFunc returns the bucket of a request. ok is false for requests the
// limiter lets through untouched.
type keyFunc func(r *http.Request) (key string, ok bool)

// RateLimiter is a token bucket per key in front of a group of routes.
type RateLimiter struct {
	cfg     RateLimitConfig
	limit   rate.Limit
	keyOf   keyFunc
	message string
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*keyLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFormRateLimiter limits form submissions per open tab. A cookie that
// names no open tab does not get a bucket of its own: such requests share
// the bucket of their client IP, so rotating the cookie gains nothing.
func NewFormRateLimiter(cfg RateLimitConfig, tabs OpenTabs, logger *slog.Logger) *RateLimiter {
	keyOf := func(r *http.Request) (string, bool) {
		if id := browser.TabIDFromRequest(r); id != "" && tabs != nil && tabs.Has(id) {
			return "tab:" + id, true
		}
		return "ip:" + clientIP(r), true
	}
	return newRateLimiter(cfg, keyOf, "Too many submissions. Please wait a moment.", logger)
}

// NewTabOpenLimiter limits, per client IP, the requests that would open a
// new tab. Requests carrying the cookie of an open tab pass untouched.
func NewTabOpenLimiter(cfg RateLimitConfig, tabs OpenTabs, logger *slog.Logger) *RateLimiter {
	keyOf := func(r *http.Request) (string, bool) {
		if id := browser.TabIDFromRequest(r); id != "" && tabs != nil && tabs.Has(id) {
			return "", false
		}
		return "ip:" + clientIP(r), true
	}
	return newRateLimiter(cfg, keyOf, "Too many new sessions. Please wait a moment.", logger)
}

func newRateLimiter(cfg RateLimitConfig, keyOf keyFunc, message string, logger *slog.Logger) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		cfg:      cfg,
		limit:    rate.Limit(float64(cfg.PerMinute) / 60.0),
		keyOf:    keyOf,
		message:  message,
		logger:   logger,
		limiters: make(map[string]*keyLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := rl.keyOf(r)
		if ok && !rl.limiter(key).Allow() {
			retryAfter := int(math.Ceil(1 / float64(rl.limit)))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, rl.message, http.StatusTooManyRequests)
			rl.logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if kl, ok := rl.limiters[key]; ok {
		kl.lastAccess = time.Now()
		return kl.limiter
	}
	l := rate.NewLimiter(rl.limit, rl.cfg.Burst)
	rl.limiters[key] = &keyLimiter{limiter: l, lastAccess: time.Now()}
	return l
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops limiters unused for two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cfg.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, kl := range rl.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
