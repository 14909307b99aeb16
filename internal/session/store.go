// Package session provides per-user conversational state with a sliding
// idle timeout.
//
// Sessions are not durable: losing them on restart is accepted. The store
// owns all session data; only the conversation orchestrator mutates it.
package session

import (
	"context"

	"github.com/mindmirror/mindmirror/internal/models"
)

// Store defines keyed access to per-user sessions.
type Store interface {
	// Create starts a fresh session for a user. It fails with
	// models.ErrSessionExists when one is already present; callers check
	// with Get first.
	Create(ctx context.Context, userID string) error

	// Get returns the user's session, or nil when none exists.
	Get(ctx context.Context, userID string) (*models.Session, error)

	// Update appends an answer and advances the question index, returning
	// the updated snapshot. An update for an absent session is a logged
	// no-op returning nil, never an error that could crash a turn.
	Update(ctx context.Context, userID, answer string) (*models.Session, error)

	// Touch refreshes the session's last-activity time. Absent session is
	// a no-op.
	Touch(ctx context.Context, userID string) error

	// Clear removes the user's session. Clearing an absent session is a
	// no-op.
	Clear(ctx context.Context, userID string) error
}
