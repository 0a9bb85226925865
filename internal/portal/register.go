package portal

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// SubmitRegistration runs the registration form: local password checks,
// then account creation, then the students row insert. On success the form
// is cleared and the login page follows after the redirect delay.
//
// The returned error has already been shown to the user. A call made while
// a previous one is still running returns apperror.ErrBusy and does nothing.
//
// An insert failure after a successful sign-up leaves the account without a
// profile row; nothing is rolled back.
func (a *App) SubmitRegistration(ctx context.Context) (err error) {
	finish, ok := a.guard(flowRegister)
	if !ok {
		return apperror.Busy(flowRegister)
	}
	defer finish(&err)

	done := a.startLoading(view.ControlRegisterSubmit, LabelRegisteringBusy)
	defer done()

	form := view.FormRegistration
	defer a.clearSecrets(form)

	fullName := a.view.FieldValue(form, view.FieldFullName)
	email := a.view.FieldValue(form, view.FieldEmail)
	phone := a.view.FieldValue(form, view.FieldPhone)
	password := a.view.FieldValue(form, view.FieldPassword)
	confirm := a.view.FieldValue(form, view.FieldConfirmPassword)

	if password != confirm {
		a.showMessage(view.SlotRegister, MsgPasswordMismatch, view.KindError)
		return apperror.ValidationFailed(view.FieldConfirmPassword, MsgPasswordMismatch)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		a.showMessage(view.SlotRegister, MsgPasswordTooShort, view.KindError)
		return apperror.ValidationFailed(view.FieldPassword, MsgPasswordTooShort)
	}

	fullName = a.sanitize(fullName)
	phone = a.sanitize(phone)

	identity, err := a.client.SignUp(ctx, email, password, map[string]string{
		"full_name": fullName,
		"phone":     phone,
	})
	if err != nil {
		return a.fail(flowRegister, view.SlotRegister, err)
	}

	student := &model.Student{
		ID:       identity.ID,
		FullName: fullName,
		Email:    email,
		Phone:    phone,
	}
	if err := a.client.InsertStudent(ctx, student); err != nil {
		a.logger.Warn("account created without profile row",
			slog.String("identity_id", identity.ID),
		)
		return a.fail(flowRegister, view.SlotRegister, err)
	}

	a.logger.Info("student registered", slog.String("id", identity.ID))
	a.showMessage(view.SlotRegister, MsgRegistered, view.KindSuccess)
	a.view.ResetForm(form)
	a.navigateLater(model.PageLogin, a.cfg.RegisterRedirectDelay)
	return nil
}
