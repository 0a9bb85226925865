package portal

import (
	"context"
	"log/slog"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// SubmitLogin signs in with the login form's credentials and fetches the
// matching profile row. A missing row leaves the user on the login page
// with the session established but nothing cached. On success the profile
// is cached and the profile page follows after the redirect delay.
func (a *App) SubmitLogin(ctx context.Context) (err error) {
	finish, ok := a.guard(flowLogin)
	if !ok {
		return apperror.Busy(flowLogin)
	}
	defer finish(&err)

	done := a.startLoading(view.ControlLoginSubmit, LabelLoggingInBusy)
	defer done()

	defer a.clearSecrets(view.FormLogin)

	epoch := a.state.currentEpoch()
	email := a.view.FieldValue(view.FormLogin, view.FieldLoginEmail)
	password := a.view.FieldValue(view.FormLogin, view.FieldLoginPassword)

	session, err := a.client.SignIn(ctx, email, password)
	if err != nil {
		return a.fail(flowLogin, view.SlotLogin, err)
	}

	student, err := a.client.FetchStudent(ctx, session.User.ID)
	if err != nil || student == nil {
		a.logger.Warn("signed in without profile row",
			slog.String("identity_id", session.User.ID),
			slog.Any("error", err),
		)
		a.showMessage(view.SlotLogin, MsgProfileNotFound, view.KindError)
		if err == nil {
			err = apperror.NotFound("student", session.User.ID)
		}
		return err
	}

	if !a.state.commit(epoch, student, nil) {
		a.logger.Debug("login superseded by logout", slog.String("id", student.ID))
		return nil
	}
	a.logger.Info("student logged in", slog.String("id", student.ID))
	a.showMessage(view.SlotLogin, MsgLoggedIn, view.KindSuccess)
	a.view.ResetForm(view.FormLogin)
	a.navigateLater(model.PageProfile, a.cfg.LoginRedirectDelay)
	return nil
}
