// Package model defines the data structures shared by the portal, the
// providers and the HTTP layer.
package model

import "time"

// Student is the library-patron profile stored in the "students" table.
//
// The ID is the identifier of the authentication identity that owns the row.
// The portal never generates it: the provider hands it out on sign-up and the
// registration flow copies it into the row.
//
// The `json:"..."` tags match the row-store column names, so the same struct
// is used for the hosted row store, the embedded one and the serialized
// Cached Session kept in local storage.
type Student struct {
	ID        string     `json:"id"         db:"id"`
	FullName  string     `json:"full_name"  db:"full_name"`
	Email     string     `json:"email"      db:"email"`
	Phone     string     `json:"phone"      db:"phone"`
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"` // set by the row store
}

// Identity is an authentication identity as reported by the provider.
type Identity struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"user_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ProviderSession is an authenticated session issued by the provider.
// AccessToken is opaque to the portal.
type ProviderSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
// A zero ExpiresAt never expires.
func (s *ProviderSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
