// Package domain contains entity without logic, just meta-data
package domain

import "errors"

var (
	ErrEmptyIdentity    = errors.New("identity empty")
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordMismatch = errors.New("password mismatch")
)

type PeerID string

// User is a row of the user directory. PasswordHash never leaves the server.
type User struct {
	ID           PeerID `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// Identity is what the auth gate hands back after a successful verification.
type Identity struct {
	ID   PeerID
	Name string
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(u *User) (Identity, error) {
	if u == nil || u.ID == "" {
		return Identity{}, ErrEmptyIdentity
	}
	return Identity{ID: u.ID, Name: u.Name}, nil
}
