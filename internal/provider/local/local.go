// Package local is the embedded provider: the auth + row-store contract
// implemented on the SQLite repositories, bcrypt password hashes and signed
// access tokens. It lets the portal run without a hosted backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/auth"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
	"github.com/sakif/student-library/internal/repository"
)

// Messages mirror the hosted auth service so users see the same text
// whichever backend is configured.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgInvalidEmail       = "Unable to validate email address: invalid format"
	msgMissingPassword    = "Signup requires a valid password"
)

// Backend owns the shared stores and credential services.
type Backend struct {
	accounts  repository.AccountRepository
	students  repository.StudentRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

var _ provider.Backend = (*Backend)(nil)

// New creates the embedded backend.
func New(
	accounts repository.AccountRepository,
	students repository.StudentRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *Backend {
	return &Backend{
		accounts:  accounts,
		students:  students,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

func (b *Backend) Name() string { return "local" }

// NewClient returns a signed-out client.
func (b *Backend) NewClient() provider.Client {
	return &Client{backend: b}
}

// Client holds one tab's access token.
type Client struct {
	backend *Backend

	mu    sync.Mutex
	token string
}

var _ provider.Client = (*Client)(nil)

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Identity, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Provider(msgInvalidEmail, err)
	}
	if password == "" {
		return nil, apperror.Provider(msgMissingPassword, nil)
	}

	hash, err := c.backend.passwords.Hash(password)
	if err != nil {
		return nil, apperror.Provider(err.Error(), err)
	}

	account := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.backend.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Provider(apperror.UserMessage(err, ""), err)
		}
		return nil, fmt.Errorf("local: creating account: %w", err)
	}

	c.backend.logger.Info("account created", slog.String("identity_id", account.ID))

	id := account.Identity()
	return &id, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*model.ProviderSession, error) {
	account, err := c.backend.accounts.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Provider(msgInvalidCredentials, err)
		}
		return nil, fmt.Errorf("local: looking up account: %w", err)
	}

	if err := c.backend.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Provider(msgInvalidCredentials, err)
		}
		return nil, fmt.Errorf("local: verifying password: %w", err)
	}

	token, expiresAt, err := c.backend.tokens.Generate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("local: issuing token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return &model.ProviderSession{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        account.Identity(),
	}, nil
}

func (c *Client) Session(ctx context.Context) (*model.ProviderSession, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	id, expiresAt, err := c.backend.tokens.Validate(token)
	if err != nil {
		// An expired or unreadable token is simply no session.
		c.clearToken(token)
		return nil, nil
	}

	account, err := c.backend.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			c.clearToken(token)
			return nil, nil
		}
		return nil, fmt.Errorf("local: loading session account: %w", err)
	}

	return &model.ProviderSession{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        account.Identity(),
	}, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*model.Identity, error) {
	session, err := c.Session(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return &session.User, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return nil
}

func (c *Client) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	s, err := c.backend.students.GetStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("local: fetching student: %w", err)
	}
	return s, nil
}

func (c *Client) InsertStudent(ctx context.Context, student *model.Student) error {
	if err := c.backend.students.InsertStudent(ctx, student); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Provider(apperror.UserMessage(err, ""), err)
		}
		return fmt.Errorf("local: inserting student: %w", err)
	}
	return nil
}

// clearToken forgets token unless another sign-in replaced it meanwhile.
func (c *Client) clearToken(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}
