package portal

import (
	"context"

	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// Start runs session bootstrap once per tab: it binds the static
// navigation controls, asks the provider for an existing session, refreshes
// or clears the Cached Session and shows the landing page. Provider
// failures are treated as "no session". Later calls do nothing.
func (a *App) Start(ctx context.Context) {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	a.bindNavigation()

	landing := model.PageHome
	student := a.resolveSession(ctx)
	if student != nil {
		a.state.store(student)
		landing = a.cfg.Landing
	} else {
		a.state.clear()
	}

	a.logger.Debug("tab bootstrapped",
		"signed_in", student != nil,
		"landing", landing,
	)
	a.ShowPage(ctx, landing)
}

// Started reports whether Start has run.
func (a *App) Started() bool {
	return a.started.Load()
}

func (a *App) resolveSession(ctx context.Context) *model.Student {
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		a.logger.Debug("session lookup failed", "error", err)
		return nil
	}
	if user == nil {
		return nil
	}

	student, err := a.client.FetchStudent(ctx, user.ID)
	if err != nil {
		a.logger.Debug("profile lookup failed", "identity_id", user.ID, "error", err)
		return nil
	}
	return student
}

func (a *App) bindNavigation() {
	bind := func(id string, page model.Page) {
		a.view.On(id, func(ctx context.Context) { a.ShowPage(ctx, page) })
	}
	bind(view.ControlGoToRegister, model.PageRegister)
	bind(view.ControlGoToLogin, model.PageLogin)
	bind(view.ControlBackFromRegister, model.PageHome)
	bind(view.ControlBackFromLogin, model.PageHome)
	bind(view.ControlGoToLoginFromProfile, model.PageLogin)
}
