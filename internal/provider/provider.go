// Package provider declares the backend-as-a-service contract the portal
// consumes: an authentication service plus the "students" row store.
//
// A Backend is shared by the whole server; each browser tab gets its own
// Client, which carries that tab's signed-in session the way a browser SDK
// instance would.
//
// Results follow the usual Go shape. Failures reported by the backend are
// *apperror.AppError values wrapping apperror.ErrProvider whose Message is
// the backend's own text; a row lookup that matches nothing returns
// apperror.ErrNotFound.
package provider

import (
	"context"

	"github.com/sakif/student-library/internal/model"
)

// StudentsTable is the row-store table holding profiles.
const StudentsTable = "students"

// Auth is the authentication half of the contract.
type Auth interface {
	// SignUp creates an account and returns its identity. metadata is
	// optional profile data stored alongside the account.
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Identity, error)
	// SignIn authenticates and makes the returned session current.
	SignIn(ctx context.Context, email, password string) (*model.ProviderSession, error)
	// CurrentUser returns the identity of the current session, or nil when
	// there is none.
	CurrentUser(ctx context.Context) (*model.Identity, error)
	// Session returns the current session, or nil when there is none or it
	// has expired.
	Session(ctx context.Context) (*model.ProviderSession, error)
	// SignOut ends the current session. Local state is cleared even when
	// the backend call fails.
	SignOut(ctx context.Context) error
}

// Rows is the row-store half of the contract, narrowed to the one table
// the portal uses.
type Rows interface {
	// FetchStudent returns the single students row whose id equals id.
	FetchStudent(ctx context.Context, id string) (*model.Student, error)
	// InsertStudent inserts one students row.
	InsertStudent(ctx context.Context, student *model.Student) error
}

// Client is one tab's view of the backend.
type Client interface {
	Auth
	Rows
}

// Backend hands out per-tab clients.
type Backend interface {
	Name() string
	NewClient() Client
}
