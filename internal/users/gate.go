package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/Tocata/internal/domain"
	"github.com/rs/zerolog/log"
)

// Gate checks Login credentials against the directory. The username on the
// wire is the account email.
type Gate struct {
	Store *Store
}

func NewGate(s *Store) *Gate {
	return &Gate{Store: s}
}

func (g *Gate) Verify(ctx context.Context, username, password string) (domain.Identity, error) {
	u, err := g.Store.FindByEmail(ctx, username)
	if err != nil {
		return domain.Identity{}, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domain.Identity{}, domain.ErrPasswordMismatch
	case err != nil:
		// Malformed hash in the table; not the caller's fault.
		log.Error().Err(err).Str("module", "users").Str("user", string(u.ID)).Msg("stored hash unusable")
		return domain.Identity{}, fmt.Errorf("compare hash: %w", err)
	}
	return domain.NewIdentity(u)
}

func (g *Gate) RecordConnect(ctx context.Context, id domain.PeerID) error {
	return g.Store.RecordConnect(ctx, id)
}

func (g *Gate) RecordDisconnect(ctx context.Context, id domain.PeerID) error {
	return g.Store.RecordDisconnect(ctx, id)
}
