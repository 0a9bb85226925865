package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/repository"
)

// compile-time check that *DB implements repository.AccountRepository
var _ repository.AccountRepository = (*DB)(nil)

// CreateAccount inserts a new account. The caller assigns the ID.
// A taken email yields apperror.ErrConflict.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		return errors.New("sqlite: account ID must be set")
	}

	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: encoding metadata for account %s: %w", account.ID, err)
	}
	if account.Metadata == nil {
		metadata = []byte("{}")
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		strings.ToLower(account.Email),
		account.PasswordHash,
		string(metadata),
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("User already registered")
		}
		return fmt.Errorf("sqlite: inserting account %s: %w", account.ID, err)
	}

	return nil
}

// GetAccountByEmail looks an account up by email, case-insensitively.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata, created_at
		 FROM accounts WHERE email = ?`,
		strings.ToLower(email),
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return a, nil
}

// GetAccountByID retrieves an account by its identity ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata, created_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return a, nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a        model.Account
		metadata string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &metadata, &a.CreatedAt); err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return &a, nil
}
