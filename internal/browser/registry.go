// Package browser keeps the server-side half of every open browser tab:
// its document, local storage, provider client and portal controller.
//
// Tabs are identified by an xid carried in a cookie. A tab that has not
// been seen for the idle TTL is closed by the cleanup loop, which cancels
// its scheduled tasks.
package browser

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/student-library/internal/portal"
	"github.com/sakif/student-library/internal/provider"
	"github.com/sakif/student-library/internal/view"
)

// DefaultIdleTTL is how long an unused tab is kept.
const DefaultIdleTTL = 30 * time.Minute

// Recorder extends the portal metrics with the open tab count.
type Recorder interface {
	portal.Recorder
	TabsOpen(n int)
}

// Tab is one browser tab.
type Tab struct {
	ID       string
	Document *view.Document
	Storage  *LocalStorage
	Client   provider.Client
	App      *portal.App

	mu       sync.Mutex
	lastSeen time.Time
}

func (t *Tab) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

func (t *Tab) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// Options configures a Registry. Zero values select defaults.
type Options struct {
	IdleTTL   time.Duration
	Metrics   Recorder
	Sanitizer func(string) string
	Logger    *slog.Logger
}

// Registry owns every open tab.
type Registry struct {
	backend provider.Backend
	cfg     portal.Config
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.RWMutex
	tabs map[string]*Tab
}

func NewRegistry(backend provider.Backend, cfg portal.Config, opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		backend: backend,
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		tabs:    make(map[string]*Tab),
	}
}

// Open creates a tab with a fresh id. The caller starts its App.
func (r *Registry) Open() *Tab {
	doc := view.New()
	storage := NewLocalStorage()
	client := r.backend.NewClient()

	deps := portal.Deps{
		View:    doc,
		Storage: storage,
		Client:  client,
		Logger:  r.logger,
	}
	if r.opts.Metrics != nil {
		deps.Metrics = r.opts.Metrics
	}

	tab := &Tab{
		ID:       xid.New().String(),
		Document: doc,
		Storage:  storage,
		Client:   client,
		App:      portal.New(r.cfg, deps).WithSanitizer(r.opts.Sanitizer),
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.tabs[tab.ID] = tab
	n := len(r.tabs)
	r.mu.Unlock()

	r.logger.Debug("tab opened", slog.String("tab_id", tab.ID), slog.String("backend", r.backend.Name()))
	r.reportCount(n)
	return tab
}

// Get returns an open tab and marks it as used. Malformed ids are rejected
// without a lookup.
func (r *Registry) Get(id string) (*Tab, bool) {
	if _, err := xid.FromString(id); err != nil {
		return nil, false
	}

	r.mu.RLock()
	tab, ok := r.tabs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	tab.touch(r.now())
	return tab, true
}

// Has reports whether id names an open tab. Unlike Get it does not mark
// the tab as used.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	_, ok := r.tabs[id]
	r.mu.RUnlock()
	return ok
}

// GetOrOpen returns the tab for id, opening a new one when it is unknown.
func (r *Registry) GetOrOpen(id string) (tab *Tab, created bool) {
	if tab, ok := r.Get(id); ok {
		return tab, false
	}
	return r.Open(), true
}

// Close removes a tab and cancels its scheduled tasks.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	tab, ok := r.tabs[id]
	delete(r.tabs, id)
	n := len(r.tabs)
	r.mu.Unlock()

	if ok {
		tab.App.Close()
		r.reportCount(n)
	}
}

// Len returns the number of open tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// Sweep closes every tab idle for longer than the TTL and returns how many
// it closed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var idle []*Tab
	for id, tab := range r.tabs {
		if tab.idleSince().Before(cutoff) {
			idle = append(idle, tab)
			delete(r.tabs, id)
		}
	}
	n := len(r.tabs)
	r.mu.Unlock()

	for _, tab := range idle {
		tab.App.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("closed idle tabs", slog.Int("count", len(idle)))
		r.reportCount(n)
	}
	return len(idle)
}

// Run sweeps idle tabs every interval until ctx is done, then closes every
// remaining tab.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.opts.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			r.CloseAll()
			return
		}
	}
}

// CloseAll closes every tab.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*Tab)
	r.mu.Unlock()

	for _, tab := range tabs {
		tab.App.Close()
	}
	r.reportCount(0)
}

func (r *Registry) reportCount(n int) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.TabsOpen(n)
	}
}

// CookieName is the cookie carrying a tab's id.
const CookieName = "tab_id"

// TabIDFromRequest returns the tab id cookie of r, or "".
func TabIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
