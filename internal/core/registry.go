package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// DefaultUsername is shown for connections that never declared a name.
const DefaultUsername = "Anonymous"

// Registry maps connection keys to the username declared at connect time.
type Registry struct {
	sessions store.SessionStore
	now      func() time.Time
	log      zerolog.Logger
}

// NewRegistry constructs a Registry on top of sessions.
func NewRegistry(sessions store.SessionStore, logger zerolog.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: sessions,
		now:      now,
		log:      logger.With().Str("component", "registry").Logger(),
	}
}

// Register records the username of a connection. The first registration wins.
func (r *Registry) Register(ctx context.Context, connKey, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}
	sess := &store.Session{Key: connKey, Username: username, JoinedAt: r.now()}
	if err := r.sessions.PutSession(ctx, sess); err != nil {
		return fmt.Errorf("register %s: %w", connKey, err)
	}
	r.log.Debug().Str("conn", connKey).Str("user", username).Msg("session registered")
	return nil
}

// Username returns the registered username. ok is false when the connection is unknown.
func (r *Registry) Username(ctx context.Context, connKey string) (name string, ok bool, err error) {
	sess, err := r.sessions.GetSession(ctx, connKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup %s: %w", connKey, err)
	}
	return sess.Username, true, nil
}

// DisplayName resolves the name shown for a connection, falling back to DefaultUsername.
func (r *Registry) DisplayName(ctx context.Context, connKey string) (string, error) {
	name, ok, err := r.Username(ctx, connKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return DefaultUsername, nil
	}
	return name, nil
}

// Forget drops the session of a connection.
func (r *Registry) Forget(ctx context.Context, connKey string) error {
	if err := r.sessions.DeleteSession(ctx, connKey); err != nil {
		return fmt.Errorf("forget %s: %w", connKey, err)
	}
	return nil
}
