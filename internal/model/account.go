package model

import "time"

// Account is an authentication identity as stored by the embedded provider.
// The hosted provider keeps its own accounts; the portal never sees hashes.
type Account struct {
	ID           string            `db:"id"`
	Email        string            `db:"email"`
	PasswordHash string            `db:"password_hash"`
	Metadata     map[string]string `db:"metadata"`
	CreatedAt    time.Time         `db:"created_at"`
}

// Identity returns the public view of the account.
func (a *Account) Identity() Identity {
	return Identity{
		ID:        a.ID,
		Email:     a.Email,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	}
}
