package portal

import (
	"context"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/view"
)

// Profile card labels.
const (
	LabelStudentID        = "Student ID"
	LabelFullName         = "Full Name"
	LabelEmail            = "Email"
	LabelPhone            = "Phone"
	LabelRegistrationDate = "Registration Date"

	missingValue = "-"
	dateLayout   = "2006-01-02"
)

// LoadProfile resolves the current student and renders the profile region.
// The Cached Session wins; without it the provider's current user and their
// students row are used, and the row is cached. When nothing resolves the
// logged-out placeholder is shown instead, as it is when a logout lands
// while the provider is being asked.
func (a *App) LoadProfile(ctx context.Context) (err error) {
	finish, ok := a.guard(flowProfile)
	if !ok {
		return apperror.Busy(flowProfile)
	}
	defer finish(&err)

	epoch := a.state.currentEpoch()
	student := a.state.cached()
	fetched := false
	if student == nil {
		student = a.fetchCurrentStudent(ctx)
		fetched = student != nil
	}

	if student == nil {
		a.renderLoggedOut()
		return nil
	}

	toCache := student
	if !fetched {
		toCache = nil
	}
	if !a.state.commit(epoch, toCache, func() { a.renderProfile(student) }) {
		a.logger.Debug("profile superseded by logout", "id", student.ID)
		a.renderLoggedOut()
	}
	return nil
}

func (a *App) fetchCurrentStudent(ctx context.Context) *model.Student {
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		a.logger.Debug("current user lookup failed", "error", err)
		return nil
	}
	if user == nil {
		return nil
	}

	student, err := a.client.FetchStudent(ctx, user.ID)
	if err != nil {
		a.logger.Debug("profile row lookup failed", "identity_id", user.ID, "error", err)
		return nil
	}
	return student
}

func (a *App) renderLoggedOut() {
	a.view.SetProfile(view.LoggedOut())
	a.view.On(view.ControlGoToLoginFromProfile, func(ctx context.Context) {
		a.ShowPage(ctx, model.PageLogin)
	})
}

func (a *App) renderProfile(student *model.Student) {
	a.view.SetProfile(view.ProfileContent{Card: profileCard(student, model.SampleBooks())})
	a.view.On(view.ControlLogout, func(ctx context.Context) {
		a.RequestLogout(ctx)
	})
}

func profileCard(s *model.Student, books []model.BorrowedBook) *view.ProfileCard {
	registered := missingValue
	if s.CreatedAt != nil && !s.CreatedAt.IsZero() {
		registered = s.CreatedAt.Format(dateLayout)
	}

	card := &view.ProfileCard{
		Details: []view.Detail{
			{Label: LabelStudentID, Value: orMissing(s.ID)},
			{Label: LabelFullName, Value: orMissing(s.FullName)},
			{Label: LabelEmail, Value: orMissing(s.Email)},
			{Label: LabelPhone, Value: orMissing(s.Phone)},
			{Label: LabelRegistrationDate, Value: registered},
		},
	}
	for _, b := range books {
		card.Books = append(card.Books, view.BookRow{
			Title:   b.Title,
			Author:  b.Author,
			Due:     b.DueDate,
			Fine:    b.Fine,
			Overdue: b.Overdue(),
		})
	}
	return card
}

func orMissing(s string) string {
	if s == "" {
		return missingValue
	}
	return s
}
