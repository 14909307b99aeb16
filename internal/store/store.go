// Package store provides storage backends for completed reflections.
//
// It includes SQLite and PostgreSQL backends selected by DSN, plus an
// in-memory store for tests. Persistence is fire-and-forget from the
// conversation's perspective: failures are logged by callers, never shown
// to the user.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/mindmirror/mindmirror/internal/models"
)

// Store defines persistence of reflection records and the queries backing
// the daily usage limit.
type Store interface {
	// SaveReflection persists one completed session's analysis.
	SaveReflection(ctx context.Context, r models.Reflection) error

	// CountReflectionsSince returns how many reflections a user has
	// completed at or after the given time.
	CountReflectionsSince(ctx context.Context, userHash string, since time.Time) (int, error)

	// Close releases the backing resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore keeps reflections in a slice. Test use only.
type InMemoryStore struct {
	mu          sync.Mutex
	reflections []models.Reflection
}

// NewInMemoryStore creates an empty in-memory reflection store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// SaveReflection appends the record.
func (s *InMemoryStore) SaveReflection(ctx context.Context, r models.Reflection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reflections = append(s.reflections, r)
	return nil
}

// CountReflectionsSince counts records for a user at or after the given time.
func (s *InMemoryStore) CountReflectionsSince(ctx context.Context, userHash string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reflections {
		if r.UserHash == userHash && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// Reflections returns a snapshot of all stored records.
func (s *InMemoryStore) Reflections() []models.Reflection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reflection, len(s.reflections))
	copy(out, s.reflections)
	return out
}
