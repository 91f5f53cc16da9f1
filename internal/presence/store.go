// Package presence mirrors connected peers and live sessions to Redis so
// other processes (dashboards, the web client's lobby) can read them.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/Tocata/internal/domain"
)

// RedisPresence keeps two hashes: <prefix>:peers (peer id -> peer) and
// <prefix>:sessions (session id -> session).
type RedisPresence struct {
	rdb         *redis.Client
	keyPeers    string
	keySessions string
}

type peerEntry struct {
	Name      string           `json:"name"`
	SessionID domain.SessionID `json:"sessionId"`
}

type sessionEntry struct {
	Name      string        `json:"name"`
	StartedBy domain.PeerID `json:"startedBy"`
	StartMs   int64         `json:"startMs"`
}

// NewRedisPresence builds the mirror. Prefix is optional (e.g., "tocata:staging").
func NewRedisPresence(rdb *redis.Client, prefix string) *RedisPresence {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "tocata"
	}
	return &RedisPresence{
		rdb:         rdb,
		keyPeers:    fmt.Sprintf("%s:peers", p),
		keySessions: fmt.Sprintf("%s:sessions", p),
	}
}

// Reset clears state left behind by a previous process.
func (s *RedisPresence) Reset(ctx context.Context) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keyPeers)
		pipe.Del(ctx, s.keySessions)
		return nil
	})
	return err
}

func (s *RedisPresence) PeerJoined(ctx context.Context, id domain.Identity, sid domain.SessionID) error {
	b, err := json.Marshal(peerEntry{Name: id.Name, SessionID: sid})
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.keyPeers, string(id.ID), b).Err()
}

func (s *RedisPresence) PeerLeft(ctx context.Context, id domain.PeerID) error {
	return s.rdb.HDel(ctx, s.keyPeers, string(id)).Err()
}

func (s *RedisPresence) SessionOpened(ctx context.Context, sess domain.Session) error {
	b, err := json.Marshal(sessionEntry{Name: sess.Name, StartedBy: sess.StartedBy, StartMs: sess.StartedAt.UnixMilli()})
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.keySessions, string(sess.ID), b).Err()
}

func (s *RedisPresence) SessionClosed(ctx context.Context, sid domain.SessionID) error {
	return s.rdb.HDel(ctx, s.keySessions, string(sid)).Err()
}
