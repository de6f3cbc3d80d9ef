package encounter

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given id,
	// including sessions reclaimed after their TTL elapsed.
	ErrSessionNotFound = errors.New("combat session not found")

	// ErrSessionExists is returned by Create when the id is already taken.
	ErrSessionExists = errors.New("combat session already exists")

	// ErrStaleSession is returned by Update when the stored turn counter does
	// not match the caller's expected value, meaning another turn committed
	// first. The caller must re-fetch and resubmit.
	ErrStaleSession = errors.New("combat session modified by a concurrent turn")
)

// Store persists combat sessions so any stateless request handler can process
// a turn. Implementations must make both Update and Delete conditional on the
// expected turn counter so two concurrent turns for the same session can never
// both commit, whether the encounter continues or ends.
type Store interface {
	// Create stores a new session. Fails with ErrSessionExists on id collision.
	Create(ctx context.Context, sess *Session) error

	// FindByID returns a copy of the session the caller may freely mutate.
	// Expired sessions are treated as absent.
	FindByID(ctx context.Context, id string) (*Session, error)

	// Update replaces the whole stored record iff the stored turn counter
	// equals expectedTurn, and refreshes the session's expiry. Fails with
	// ErrStaleSession on a counter mismatch and ErrSessionNotFound when the
	// session is gone.
	Update(ctx context.Context, sess *Session, expectedTurn int) error

	// Delete removes the session iff the stored turn counter equals
	// expectedTurn. It is the terminal-turn twin of Update: a losing
	// concurrent turn fails with ErrStaleSession on a counter mismatch and
	// ErrSessionNotFound when the session is already gone.
	Delete(ctx context.Context, id string, expectedTurn int) error
}
