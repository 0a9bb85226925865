package supabase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
)

const testAnonKey = "anon-key"

// fakeProject is a minimal in-memory stand-in for a Supabase project.
type fakeProject struct {
	t *testing.T

	mu       sync.Mutex
	users    map[string]map[string]any // email → user
	secrets  map[string]string         // email → password
	tokens   map[string]string         // access token → email
	students map[string]map[string]any // id → row
	nextID   int
	requests []*http.Request
}

func newFakeProject(t *testing.T) (*fakeProject, *httptest.Server) {
	t.Helper()
	p := &fakeProject{
		t:        t,
		users:    map[string]map[string]any{},
		secrets:  map[string]string{},
		tokens:   map[string]string{},
		students: map[string]map[string]any{},
	}
	srv := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(srv.Close)
	return p, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (p *fakeProject) bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (p *fakeProject) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, r.Clone(context.Background()))

	if r.Header.Get("apikey") != testAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/signup":
		var body struct {
			Email    string            `json:"email"`
			Password string            `json:"password"`
			Data     map[string]string `json:"data"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := p.users[body.Email]; ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "msg": "User already registered"})
			return
		}
		p.nextID++
		user := map[string]any{
			"id":            "user-" + string(rune('0'+p.nextID)),
			"email":         body.Email,
			"user_metadata": body.Data,
			"created_at":    time.Now().UTC().Format(time.RFC3339),
		}
		p.users[body.Email] = user
		p.secrets[body.Email] = body.Password
		writeJSON(w, http.StatusOK, user)

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
		if r.URL.Query().Get("grant_type") != "password" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
			return
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		user, ok := p.users[body.Email]
		if !ok || p.secrets[body.Email] != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		token := "token-" + body.Email
		p.tokens[token] = body.Email
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  token,
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "refresh",
			"user":          user,
		})

	case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
		email, ok := p.tokens[p.bearer(r)]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, p.users[email])

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
		delete(p.tokens, p.bearer(r))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/students":
		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		row, ok := p.students[id]
		if !ok {
			writeJSON(w, http.StatusNotAcceptable, map[string]string{
				"code":    "PGRST116",
				"message": "JSON object requested, multiple (or no) rows returned",
			})
			return
		}
		writeJSON(w, http.StatusOK, row)

	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/students":
		var rows []map[string]any
		json.NewDecoder(r.Body).Decode(&rows)
		for _, row := range rows {
			id, _ := row["id"].(string)
			if _, ok := p.students[id]; ok {
				writeJSON(w, http.StatusConflict, map[string]string{
					"code":    "23505",
					"message": `duplicate key value violates unique constraint "students_pkey"`,
				})
				return
			}
			row["created_at"] = "2024-03-01T09:30:00.123456+00:00"
			p.students[id] = row
		}
		w.WriteHeader(http.StatusCreated)

	default:
		http.NotFound(w, r)
	}
}

func (p *fakeProject) lastRequest() *http.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func newTestBackend(t *testing.T, url string) *Backend {
	t.Helper()
	b, err := New(Config{URL: url, AnonKey: testAnonKey, Timeout: 5 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(Config{URL: "", AnonKey: "k"}, logger)
	assert.Error(t, err)

	_, err = New(Config{URL: "https://x.supabase.co", AnonKey: ""}, logger)
	assert.Error(t, err)

	_, err = New(Config{URL: "not a url", AnonKey: "k"}, logger)
	assert.Error(t, err)

	b, err := New(Config{URL: "https://x.supabase.co/", AnonKey: "k"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "supabase", b.Name())
}

func TestSignUpThenSignIn(t *testing.T) {
	project, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()
	ctx := context.Background()

	identity, err := c.SignUp(ctx, "ada@example.com", "secret1", map[string]string{"full_name": "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada", identity.Metadata["full_name"])

	req := project.lastRequest()
	assert.Equal(t, testAnonKey, req.Header.Get("apikey"))
	assert.Equal(t, "Bearer "+testAnonKey, req.Header.Get("Authorization"))

	// Confirmation-required projects return no session on sign-up.
	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = c.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "token-ada@example.com", session.AccessToken)
	assert.Equal(t, identity.ID, session.User.ID)
	assert.False(t, session.Expired(time.Now()))

	current, err := c.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, identity.ID, current.User.ID)

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, identity.ID, user.ID)
	assert.Equal(t, "Bearer token-ada@example.com", project.lastRequest().Header.Get("Authorization"))
}

func TestSignUp_DuplicateSurfacesBackendMessage(t *testing.T) {
	_, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()
	ctx := context.Background()

	_, err := c.SignUp(ctx, "ada@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = c.SignUp(ctx, "ada@example.com", "secret1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.Equal(t, "User already registered", err.Error())
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	_, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()
	ctx := context.Background()

	_, err := c.SignIn(ctx, "nobody@example.com", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.Equal(t, "Invalid login credentials", err.Error())

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSignOut_ClearsSessionAndRevokes(t *testing.T) {
	_, srv := newFakeProject(t)
	b := newTestBackend(t, srv.URL)
	c := b.NewClient()
	ctx := context.Background()

	_, err := c.SignUp(ctx, "ada@example.com", "secret1", nil)
	require.NoError(t, err)
	_, err = c.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	// Signing out twice is harmless.
	assert.NoError(t, c.SignOut(ctx))
}

func TestCurrentUser_RevokedTokenClearsSession(t *testing.T) {
	project, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()
	ctx := context.Background()

	_, err := c.SignUp(ctx, "ada@example.com", "secret1", nil)
	require.NoError(t, err)
	_, err = c.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	project.mu.Lock()
	project.tokens = map[string]string{}
	project.mu.Unlock()

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestStudentRows(t *testing.T) {
	project, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()
	ctx := context.Background()

	student := &model.Student{ID: "user-1", FullName: "Ada Lovelace", Email: "ada@example.com", Phone: "555"}
	require.NoError(t, c.InsertStudent(ctx, student))

	req := project.lastRequest()
	assert.Equal(t, "return=minimal", req.Header.Get("Prefer"))

	got, err := c.FetchStudent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Equal(t, "555", got.Phone)
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, "2024-03-01", got.CreatedAt.Format("2006-01-02"))

	req = project.lastRequest()
	assert.Equal(t, "eq.user-1", req.URL.Query().Get("id"))
	assert.Equal(t, "application/vnd.pgrst.object+json", req.Header.Get("Accept"))

	err = c.InsertStudent(ctx, student)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.Contains(t, err.Error(), "students_pkey")
}

func TestFetchStudent_NoRowIsNotFound(t *testing.T) {
	_, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()

	_, err := c.FetchStudent(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestInsertStudent_RequiresID(t *testing.T) {
	_, srv := newFakeProject(t)
	c := newTestBackend(t, srv.URL).NewClient()

	assert.Error(t, c.InsertStudent(context.Background(), &model.Student{FullName: "x"}))
	assert.Error(t, c.InsertStudent(context.Background(), nil))
}

func TestParseTimestamp(t *testing.T) {
	cases := []string{
		"2024-03-01T09:30:00Z",
		"2024-03-01T09:30:00.123456+00:00",
		"2024-03-01T09:30:00.123456",
		"2024-03-01 09:30:00.123456+00",
	}
	for _, s := range cases {
		got, ok := parseTimestamp(s)
		assert.True(t, ok, s)
		assert.Equal(t, "2024-03-01", got.Format("2006-01-02"), s)
	}

	_, ok := parseTimestamp("yesterday")
	assert.False(t, ok)
}
