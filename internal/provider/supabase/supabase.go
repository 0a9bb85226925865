// Package supabase is the hosted provider: the auth + row-store contract
// implemented against a Supabase project's REST endpoints (GoTrue under
// /auth/v1, PostgREST under /rest/v1).
//
// Every request carries the project's anon key in the apikey header. The
// Authorization header is added by an oauth2 transport: the tab's access
// token when it has a session, the anon key otherwise.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/provider"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Config holds the project coordinates.
type Config struct {
	URL     string        // e.g. https://abcd.supabase.co
	AnonKey string        // public anon key
	Timeout time.Duration // per request; 10s when zero
	// HTTPClient overrides the base client (tests). Its Transport is wrapped.
	HTTPClient *http.Client
}

// Backend holds the shared HTTP client for one project.
type Backend struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	logger  *slog.Logger
}

var _ provider.Backend = (*Backend)(nil)

// New validates cfg and returns a Backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase: URL and anon key are required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: invalid project URL %q", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	return &Backend{
		baseURL: u,
		anonKey: cfg.AnonKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &apiKeyTransport{key: cfg.AnonKey, base: base},
		},
		logger: logger,
	}, nil
}

func (b *Backend) Name() string { return "supabase" }

// NewClient returns a signed-out client.
func (b *Backend) NewClient() provider.Client {
	return &Client{backend: b}
}

// apiKeyTransport stamps the project key on every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.Header.Set("apikey", t.key)
	return t.base.RoundTrip(r2)
}

// clientFor returns an HTTP client that authorizes with token, or with the
// anon key when token is nil.
func (b *Backend) clientFor(ctx context.Context, token *oauth2.Token) *http.Client {
	if token == nil {
		token = &oauth2.Token{AccessToken: b.anonKey, TokenType: "Bearer"}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.http)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	c.Timeout = b.http.Timeout
	return c
}

// request describes one REST call.
type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	token   *oauth2.Token
}

// do performs req and returns the response. Non-2xx responses are turned
// into errors by the callers through decodeError.
func (b *Backend) do(ctx context.Context, req request) (*http.Response, error) {
	u := *b.baseURL
	u.Path = u.Path + req.path
	if req.query != nil {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("supabase: encoding request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("supabase: building request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := b.clientFor(ctx, req.token).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("supabase: %s %s: %w", req.method, req.path, err)
	}

	b.logger.Debug("provider request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// errorBody covers the error shapes of GoTrue and PostgREST.
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	Code             any    `json:"code"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is the cause recorded under a provider error.
type statusError struct {
	Status int
	Code   string
}

func (e *statusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: status %d", e.Status)
}

// decodeError reads a non-2xx response into a provider error carrying the
// backend's own message.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := &statusError{Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Code != nil {
			cause.Code = fmt.Sprint(body.Code)
		}
		if msg := body.text(); msg != "" {
			return apperror.Provider(msg, cause)
		}
	}
	return apperror.Provider(http.StatusText(resp.StatusCode), cause)
}

// errorCode returns the backend error code recorded by decodeError.
func errorCode(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return ""
	}
	var se *statusError
	if errors.As(appErr.Cause, &se) {
		return se.Code
	}
	return ""
}

func decodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("supabase: decoding response: %w", err)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
