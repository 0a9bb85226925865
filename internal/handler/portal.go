// Package handler contains the HTTP handlers of the student library portal.
//
// Every browser tab owns a server-side document (see internal/view) and a
// portal.App driving it. Handlers are the glue between HTTP and that tab:
// they resolve the tab from its cookie, translate the request into a
// document event (a navigation click, a form submission, a button click, a
// dialog answer) and then either render the document or redirect back to
// it. They hold no portal logic of their own.
package handler

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/browser"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// pageTitle is the document title of the portal.
const pageTitle = "Student Library Portal"

// Tabs resolves and opens browser tabs. *browser.Registry implements it.
type Tabs interface {
	GetOrOpen(id string) (*browser.Tab, bool)
	Len() int
}

// PortalOptions configures a PortalHandler.
type PortalOptions struct {
	// SecureCookie marks the tab cookie Secure (HTTPS only).
	SecureCookie bool
	// RefreshAfter is the meta refresh interval used while scheduled tasks
	// are pending. Defaults to one second.
	RefreshAfter time.Duration
}

// PortalHandler serves the portal pages and document events.
// Templates are parsed once at startup and reused for every request.
type PortalHandler struct {
	templates *template.Template
	tabs      Tabs
	opts      PortalOptions
	logger    *slog.Logger
}

// NewPortalHandler parses base.html and portal.html from templates.
// base.html holds the page skeleton with a {{template "content" .}}
// placeholder that portal.html fills.
func NewPortalHandler(templates fs.FS, tabs Tabs, opts PortalOptions, logger *slog.Logger) (*PortalHandler, error) {
	tmpl, err := template.ParseFS(templates, "base.html", "portal.html")
	if err != nil {
		return nil, err
	}
	if opts.RefreshAfter <= 0 {
		opts.RefreshAfter = time.Second
	}
	return &PortalHandler{
		templates: tmpl,
		tabs:      tabs,
		opts:      opts,
		logger:    logger,
	}, nil
}

// tab returns the tab of the request, opening and bootstrapping a new one
// when the cookie is missing or stale.
func (h *PortalHandler) tab(w http.ResponseWriter, r *http.Request) *browser.Tab {
	tab, created := h.tabs.GetOrOpen(browser.TabIDFromRequest(r))
	if !created {
		return tab
	}

	http.SetCookie(w, &http.Cookie{
		Name:     browser.CookieName,
		Value:    tab.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	tab.App.Start(r.Context())
	return tab
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pageData is what the templates render.
type pageData struct {
	Title         string
	Refresh       int
	Doc           view.Snapshot
	LoggedOutText string
	NoBooksText   string
}

// button is a control as the "button" template sees it.
type button struct {
	ID        string
	Secondary bool
	Present   bool
	Control   view.Control
}

// Button looks up a control; controls not on the page render nothing.
func (p pageData) Button(id string, secondary bool) button {
	c, ok := p.Doc.Control(id)
	return button{ID: id, Secondary: secondary, Present: ok, Control: c}
}

// HandlePage renders the tab's document.
//
//	GET /
func (h *PortalHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	tab := h.tab(w, r)

	data := pageData{
		Title:         pageTitle,
		Doc:           tab.Document.Snapshot(),
		LoggedOutText: view.LoggedOutText,
		NoBooksText:   view.NoBooksText,
	}
	if tab.App.Pending() > 0 {
		data.Refresh = int(h.opts.RefreshAfter.Round(time.Second) / time.Second)
		if data.Refresh < 1 {
			data.Refresh = 1
		}
	}

	// No caching: the document changes underneath the page.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("tab_id", tab.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleNav handles a navigation link click.
//
//	GET /nav/{page}
func (h *PortalHandler) HandleNav(w http.ResponseWriter, r *http.Request) {
	tab := h.tab(w, r)
	tab.App.ShowPage(r.Context(), model.Page(chi.URLParam(r, "page")))
	redirectHome(w, r)
}

// HandleRegister submits the registration form.
//
//	POST /forms/register
func (h *PortalHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, view.FormRegistration, func(ctx context.Context, tab *browser.Tab) error {
		return tab.App.SubmitRegistration(ctx)
	})
}

// HandleLogin submits the login form.
//
//	POST /forms/login
func (h *PortalHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, view.FormLogin, func(ctx context.Context, tab *browser.Tab) error {
		return tab.App.SubmitLogin(ctx)
	})
}

// submit copies the posted fields into the form and runs the flow. Flow
// failures are already on the page as messages, so they only get logged.
func (h *PortalHandler) submit(w http.ResponseWriter, r *http.Request, formID string, flow func(context.Context, *browser.Tab) error) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperror.ValidationFailed("", "Invalid form submission"))
		return
	}
	tab := h.tab(w, r)

	values := make(map[string]string, len(r.PostForm))
	for name := range r.PostForm {
		values[name] = r.PostForm.Get(name)
	}
	if err := tab.Document.Fill(formID, values); err != nil {
		writeError(w, err)
		return
	}

	if err := flow(r.Context(), tab); err != nil {
		h.logger.Debug("form flow failed",
			slog.String("tab_id", tab.ID),
			slog.String("form", formID),
			slog.String("error", err.Error()),
		)
	}
	redirectHome(w, r)
}

// HandleClick dispatches a click on a control.
//
//	POST /click/{control}
func (h *PortalHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	tab := h.tab(w, r)
	if err := tab.Document.Click(r.Context(), chi.URLParam(r, "control")); err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r)
}

// HandleConfirm answers the pending confirmation dialog.
//
//	POST /confirm  answer=yes|no
func (h *PortalHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperror.ValidationFailed("answer", "Invalid form submission"))
		return
	}

	var yes bool
	switch r.PostForm.Get("answer") {
	case "yes":
		yes = true
	case "no":
	default:
		writeError(w, apperror.ValidationFailed("answer", "answer must be yes or no"))
		return
	}

	tab := h.tab(w, r)
	if err := tab.Document.Answer(r.Context(), yes); err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r)
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	TabID    string        `json:"tab_id"`
	Pending  int           `json:"pending"`
	Document view.Snapshot `json:"document"`
}

// HandleState returns the tab's document as JSON. Password fields are
// never part of it.
//
//	GET /api/state
func (h *PortalHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	tab := h.tab(w, r)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, StateResponse{
		TabID:    tab.ID,
		Pending:  tab.App.Pending(),
		Document: tab.Document.Snapshot(),
	})
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping() error
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Tabs   int    `json:"tabs"`
	Error  string `json:"error,omitempty"`
}

// HandleHealth returns a liveness handler. db may be nil when the portal
// runs against the hosted backend.
func (h *PortalHandler) HandleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Tabs: h.tabs.Len()}
		if db != nil {
			if err := db.Ping(); err != nil {
				resp.Status = "unavailable"
				resp.Error = err.Error()
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
