package portal

import (
	"context"
	"time"

	"github.com/sakif/student-library/internal/model"
)

// ShowPage activates page: the navigation indicator follows, every other
// section is deactivated and the view scrolls to the top. An unknown page
// leaves no section and no indicator active; it is not an error.
//
// Showing the profile page always resolves and renders the profile again.
func (a *App) ShowPage(ctx context.Context, page model.Page) {
	a.view.SetActiveNav(page.String())
	if a.view.ShowSection(page.String()) {
		a.state.setPage(page)
	} else {
		a.state.setPage("")
		a.logger.Debug("no section for page", "page", page)
	}
	a.view.ScrollToTop()

	label := page.String()
	if !page.Known() {
		label = "unknown"
	}
	a.metrics.PageShown(label)

	if page == model.PageProfile {
		if err := a.LoadProfile(ctx); err != nil {
			a.logger.Debug("profile render skipped", "error", err)
		}
	}
}

// navigateLater shows page after delay. Only the latest pending navigation
// runs.
func (a *App) navigateLater(page model.Page, delay time.Duration) {
	a.scheduler.Schedule(keyNavigate, delay, func() {
		a.ShowPage(a.ctx, page)
	})
}
