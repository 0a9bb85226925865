package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/student-library/internal/browser"
)

// openTabs is a fixed set of open tab ids.
type openTabs map[string]bool

func (o openTabs) Has(id string) bool { return o[id] }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestLimiter(t *testing.T, perMinute, burst int, tabs OpenTabs) *RateLimiter {
	t.Helper()
	rl := NewFormRateLimiter(RateLimitConfig{PerMinute: perMinute, Burst: burst}, tabs, discard)
	t.Cleanup(rl.Stop)
	return rl
}

func submit(h http.Handler, tab, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/forms/login", nil)
	if tab != "" {
		req.AddCookie(&http.Cookie{Name: browser.CookieName, Value: tab})
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})
}

func TestFormRateLimiter_PerTab(t *testing.T) {
	rl := newTestLimiter(t, 1, 2, openTabs{"tab-a": true, "tab-b": true})
	h := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusSeeOther, submit(h, "tab-a", "").Code)
	assert.Equal(t, http.StatusSeeOther, submit(h, "tab-a", "").Code)

	w := submit(h, "tab-a", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// Another tab has its own budget.
	assert.Equal(t, http.StatusSeeOther, submit(h, "tab-b", "").Code)
}

func TestFormRateLimiter_FallsBackToIP(t *testing.T) {
	rl := newTestLimiter(t, 1, 1, nil)
	h := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusSeeOther, submit(h, "", "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, submit(h, "", "10.0.0.1:5678").Code)
	assert.Equal(t, http.StatusSeeOther, submit(h, "", "10.0.0.2:1234").Code)
}

func TestFormRateLimiter_RotatingUnknownCookiesShareIPBudget(t *testing.T) {
	rl := newTestLimiter(t, 1, 1, openTabs{})
	h := rl.Middleware(okHandler())

	allowed := 0
	for i := 0; i < 50; i++ {
		if submit(h, xid.New().String(), "10.0.0.9:4000").Code == http.StatusSeeOther {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
	assert.Equal(t, 1, rl.size())
}

func TestTabOpenLimiter(t *testing.T) {
	rl := NewTabOpenLimiter(RateLimitConfig{PerMinute: 1, Burst: 2}, openTabs{"open": true}, discard)
	t.Cleanup(rl.Stop)
	h := rl.Middleware(okHandler())

	// New visitors from one address get the burst, then wait.
	assert.Equal(t, http.StatusSeeOther, submit(h, "", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusSeeOther, submit(h, xid.New().String(), "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusTooManyRequests, submit(h, "", "10.0.0.1:3").Code)

	// An open tab is never held back.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusSeeOther, submit(h, "open", "10.0.0.1:4").Code)
	}
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := newTestLimiter(t, 0, 0, nil)
	assert.Equal(t, 30, rl.cfg.PerMinute)
	assert.Equal(t, 30, rl.cfg.Burst)
	assert.Equal(t, 5*time.Minute, rl.cfg.CleanupInterval)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newTestLimiter(t, 10, 10, nil)
	rl.limiter("tab:old")
	rl.limiter("tab:new")

	rl.mu.Lock()
	rl.limiters["tab:old"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.limiters, "tab:old")
	assert.Contains(t, rl.limiters, "tab:new")
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := newTestLimiter(t, 1, 1, nil)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
