// Package portal is the page-state machine of one browser tab: the page
// router, session bootstrap, the registration, login, profile and logout
// flows, plus the message display and loading indicator helpers they use.
//
// HOW A TAB IS WIRED:
//
//	App ──► View       (the document: sections, slots, controls, forms)
//	    ──► Storage    (local storage holding the Cached Session)
//	    ──► Client     (the tab's provider session: auth + students rows)
//	    ──► Scheduler  (message auto-hide and delayed navigation)
//
// Every flow runs on the caller's goroutine. Scheduled tasks run on timer
// goroutines with the App's own context, which Close cancels.
package portal

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
	"github.com/sakif/student-library/internal/view"
)

// User-visible texts.
const (
	MsgPasswordMismatch  = "Passwords do not match!"
	MsgPasswordTooShort  = "Password must be at least 6 characters."
	MsgRegistered        = "Registration successful! Please login."
	MsgLoggedIn          = "Login successful!"
	MsgProfileNotFound   = "Login successful but profile not found."
	MsgGeneric           = "Something went wrong. Try again."
	MsgConfirmLogout     = "Are you sure you want to logout?"
	MsgLoggedOut         = "You have been logged out."
	LabelRegisteringBusy = "Registering..."
	LabelLoggingInBusy   = "Logging in..."
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

// CacheKey is the local storage key of the Cached Session.
const CacheKey = "currentStudent"

// View is the document the App drives. *view.Document implements it.
type View interface {
	ShowSection(page string) bool
	SetActiveNav(page string)
	ScrollToTop()
	ShowMessage(slot, text string, kind view.MessageKind) bool
	HideMessage(slot string) bool
	ControlLabel(id string) (string, bool)
	SetControl(id, label string, disabled bool) bool
	On(id string, fn func(context.Context)) bool
	FieldValue(form, field string) string
	FormFields(form string) []string
	SetField(form, field, value string) error
	ResetForm(form string) bool
	SetProfile(content view.ProfileContent)
	Confirm(prompt string, answer func(ctx context.Context, yes bool))
}

// Storage is a tab's local storage.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
}

// Recorder receives flow and navigation metrics.
type Recorder interface {
	PageShown(page string)
	FlowFinished(flow, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) PageShown(string)                          {}
func (nopRecorder) FlowFinished(string, string, time.Duration) {}

// Config holds the timing and landing knobs of a tab.
type Config struct {
	MessageTimeout        time.Duration
	RegisterRedirectDelay time.Duration
	LoginRedirectDelay    time.Duration
	// Landing is where bootstrap sends a returning user whose profile was
	// found. Everyone else lands on home.
	Landing model.Page
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		MessageTimeout:        5 * time.Second,
		RegisterRedirectDelay: time.Second,
		LoginRedirectDelay:    800 * time.Millisecond,
		Landing:               model.PageHome,
	}
}

// Deps are the collaborators of an App. Scheduler, Metrics and Logger are
// optional.
type Deps struct {
	View      View
	Storage   Storage
	Client    provider.Client
	Scheduler Scheduler
	Metrics   Recorder
	Logger    *slog.Logger
}

// App is the portal controller of one tab.
type App struct {
	cfg       Config
	view      View
	client    provider.Client
	scheduler Scheduler
	metrics   Recorder
	logger    *slog.Logger
	state     *sessionState
	sanitize  func(string) string

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
}

// New creates a tab controller. Call Start once the tab is ready.
func New(cfg Config, deps Deps) *App {
	def := DefaultConfig()
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = def.MessageTimeout
	}
	if cfg.RegisterRedirectDelay <= 0 {
		cfg.RegisterRedirectDelay = def.RegisterRedirectDelay
	}
	if cfg.LoginRedirectDelay <= 0 {
		cfg.LoginRedirectDelay = def.LoginRedirectDelay
	}
	if !cfg.Landing.Known() {
		cfg.Landing = def.Landing
	}

	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:       cfg,
		view:      deps.View,
		client:    deps.Client,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		state:     newSessionState(deps.Storage, deps.Logger),
		sanitize:  strings.TrimSpace,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithSanitizer sets the function applied to free-text registration input
// (full name, phone) before it is stored.
func (a *App) WithSanitizer(fn func(string) string) *App {
	if fn != nil {
		a.sanitize = fn
	}
	return a
}

// Close cancels every scheduled task and the App's context.
func (a *App) Close() {
	a.scheduler.Stop()
	a.cancel()
}

// Pending reports how many scheduled tasks are waiting to run.
func (a *App) Pending() int {
	return a.scheduler.Pending()
}

// ActivePage returns the page the router last activated.
func (a *App) ActivePage() model.Page {
	return a.state.page()
}

// CachedStudent returns the Cached Session, or nil when it is empty.
func (a *App) CachedStudent() *model.Student {
	return a.state.cached()
}
