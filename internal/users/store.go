package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkeye/Tocata/internal/domain"
)

// DB is the subset of pgxpool.Pool the directory needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store reads the users table of the tocata-stream database.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

const userColumns = "select id::text, name, email, password from users"

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, userColumns+" where email = $1", email)
}

func (s *Store) FindByID(ctx context.Context, id domain.PeerID) (*domain.User, error) {
	key, err := rowID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, userColumns+" where id = $1", key)
}

// rowID maps a peer id back to the users primary key. Peer ids are the
// decimal form of that key, so anything else names no user.
func rowID(id domain.PeerID) (int64, error) {
	key, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, domain.ErrUserNotFound
	}
	return key, nil
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		u  domain.User
		id string
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(&id, &u.Name, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.ID = domain.PeerID(id)
	return &u, nil
}

func (s *Store) RecordConnect(ctx context.Context, id domain.PeerID) error {
	return s.touch(ctx, "update users set connected_at = now() where id = $1", id)
}

func (s *Store) RecordDisconnect(ctx context.Context, id domain.PeerID) error {
	return s.touch(ctx, "update users set disconnected_at = now() where id = $1", id)
}

func (s *Store) touch(ctx context.Context, query string, id domain.PeerID) error {
	key, err := rowID(id)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("audit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
