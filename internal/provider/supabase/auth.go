package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
)

// Client holds one tab's session.
type Client struct {
	backend *Backend

	mu    sync.Mutex
	token *oauth2.Token
	user  *model.Identity
}

var _ provider.Client = (*Client)(nil)

type userBody struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (u *userBody) identity() *model.Identity {
	id := &model.Identity{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if len(u.UserMetadata) > 0 {
		id.Metadata = make(map[string]string, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			if s, ok := v.(string); ok {
				id.Metadata[k] = s
			} else {
				id.Metadata[k] = fmt.Sprint(v)
			}
		}
	}
	return id
}

type sessionBody struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *userBody `json:"user"`
}

func (s *sessionBody) oauthToken(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		tok.Expiry = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok
}

// signUpBody is either a session (auto-confirmed projects) or a bare user
// (projects that require email confirmation).
type signUpBody struct {
	userBody
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *userBody `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Identity, error) {
	payload := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	resp, err := c.backend.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   payload,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, decodeError(resp)
	}

	var body signUpBody
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}

	user := &body.userBody
	if body.User != nil {
		user = body.User
	}
	if user.ID == "" {
		return nil, fmt.Errorf("supabase: sign-up response carried no user id")
	}

	identity := user.identity()
	if body.AccessToken != "" {
		session := sessionBody{
			AccessToken:  body.AccessToken,
			TokenType:    body.TokenType,
			RefreshToken: body.RefreshToken,
			ExpiresIn:    body.ExpiresIn,
			ExpiresAt:    body.ExpiresAt,
		}
		c.setSession(session.oauthToken(time.Now()), identity)
	}
	return identity, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*model.ProviderSession, error) {
	resp, err := c.backend.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, decodeError(resp)
	}

	var body sessionBody
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	if body.AccessToken == "" || body.User == nil || body.User.ID == "" {
		return nil, fmt.Errorf("supabase: incomplete session in sign-in response")
	}

	tok := body.oauthToken(time.Now())
	identity := body.User.identity()
	c.setSession(tok, identity)

	return toSession(tok, identity), nil
}

func (c *Client) Session(ctx context.Context) (*model.ProviderSession, error) {
	tok, user := c.current()
	if tok == nil || user == nil {
		return nil, nil
	}
	if !tok.Valid() {
		c.clearSession(tok)
		return nil, nil
	}
	return toSession(tok, user), nil
}

// CurrentUser asks the auth service who the token belongs to, so a revoked
// token is noticed.
func (c *Client) CurrentUser(ctx context.Context) (*model.Identity, error) {
	tok, _ := c.current()
	if tok == nil {
		return nil, nil
	}
	if !tok.Valid() {
		c.clearSession(tok)
		return nil, nil
	}

	resp, err := c.backend.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  tok,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.clearSession(tok)
		return nil, nil
	}
	if !isSuccess(resp.StatusCode) {
		return nil, decodeError(resp)
	}

	var body userBody
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	identity := body.identity()

	c.mu.Lock()
	if c.token == tok {
		c.user = identity
	}
	c.mu.Unlock()

	return identity, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	tok, _ := c.current()
	c.clearSession(tok)
	if tok == nil {
		return nil
	}

	resp, err := c.backend.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  tok,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// An already-invalid token is as good as signed out.
	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return decodeError(resp)
}

func (c *Client) current() (*oauth2.Token, *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.user
}

func (c *Client) setSession(tok *oauth2.Token, user *model.Identity) {
	c.mu.Lock()
	c.token = tok
	c.user = user
	c.mu.Unlock()
}

// clearSession drops tok unless a newer sign-in replaced it.
func (c *Client) clearSession(tok *oauth2.Token) {
	c.mu.Lock()
	if c.token == tok {
		c.token = nil
		c.user = nil
	}
	c.mu.Unlock()
}

func toSession(tok *oauth2.Token, user *model.Identity) *model.ProviderSession {
	return &model.ProviderSession{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		User:         *user,
	}
}
