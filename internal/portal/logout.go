package portal

import (
	"context"
	"log/slog"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// RequestLogout asks the user to confirm. Only a "yes" logs out.
func (a *App) RequestLogout(ctx context.Context) {
	a.view.Confirm(MsgConfirmLogout, func(ctx context.Context, yes bool) {
		if !yes {
			return
		}
		if err := a.Logout(ctx); err != nil {
			a.logger.Debug("logout skipped", "error", err)
		}
	})
}

// Logout clears the Cached Session, ends the provider session and returns
// to home with the logged-out placeholder in the profile region. A provider
// sign-out failure is logged and otherwise ignored. Any pending delayed
// navigation is dropped so a login redirect cannot reopen the profile.
func (a *App) Logout(ctx context.Context) (err error) {
	finish, ok := a.guard(flowLogout)
	if !ok {
		return apperror.Busy(flowLogout)
	}
	defer finish(&err)

	a.state.clear()
	a.scheduler.Cancel(keyNavigate)

	if err := a.client.SignOut(ctx); err != nil {
		a.logger.Warn("provider sign-out failed", slog.String("error", err.Error()))
	}

	a.ShowPage(ctx, model.PageHome)
	a.renderLoggedOut()
	a.showMessage(view.SlotHome, MsgLoggedOut, view.KindSuccess)
	a.logger.Info("student logged out")
	return nil
}
