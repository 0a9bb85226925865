package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/auth"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/repository/sqlite"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, db, auth.NewPasswordService(4), tokens, logger)
}

func TestSignUp_LogsIdentityID(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	c := New(db, db, auth.NewPasswordService(4), tokens, logger).NewClient()

	id, err := c.SignUp(context.Background(), "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "account created", line["msg"])
	assert.Equal(t, id.ID, line["identity_id"])
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t).NewClient()

	id, err := c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "asha@example.com", id.Email)

	// Sign-up alone does not open a session.
	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = c.SignIn(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id.ID, session.User.ID)
	assert.NotEmpty(t, session.AccessToken)

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id.ID, user.ID)
	assert.Equal(t, "Asha", user.Metadata["full_name"])
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t).NewClient()

	_, err := c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)

	_, err = c.SignUp(ctx, "asha@example.com", "another", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrProvider))
	assert.Equal(t, "User already registered", err.Error())
}

func TestSignUp_InvalidEmail(t *testing.T) {
	c := newTestBackend(t).NewClient()

	_, err := c.SignUp(context.Background(), "not-an-email", "secret1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrProvider))
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t).NewClient()

	_, err := c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)

	for _, tc := range []struct{ email, password string }{
		{"asha@example.com", "wrong-password"},
		{"nobody@example.com", "secret1"},
	} {
		_, err := c.SignIn(ctx, tc.email, tc.password)
		require.Error(t, err)
		assert.Equal(t, "Invalid login credentials", err.Error())
	}

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session, "a failed sign-in must not open a session")
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t).NewClient()

	_, err := c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)
	_, err = c.SignIn(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestClientsAreIndependent(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	first, second := b.NewClient(), b.NewClient()

	_, err := first.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)
	_, err = first.SignIn(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)

	user, err := second.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user, "sessions must not leak between tabs")
}

func TestExpiredTokenIsNoSession(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	c := b.NewClient().(*Client)

	short, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Nanosecond)
	require.NoError(t, err)
	b.tokens = short

	_, err = c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)
	_, err = c.SignIn(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // NumericDate has second resolution

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestStudentRows(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t).NewClient()

	id, err := c.SignUp(ctx, "asha@example.com", "secret1", map[string]string{"full_name": "Asha"})
	require.NoError(t, err)

	_, err = c.FetchStudent(ctx, id.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	require.NoError(t, c.InsertStudent(ctx, &model.Student{ID: id.ID, FullName: "Asha", Email: "asha@example.com"}))

	s, err := c.FetchStudent(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", s.FullName)

	err = c.InsertStudent(ctx, &model.Student{ID: id.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrProvider))
	assert.Contains(t, err.Error(), "students_pkey")
}
