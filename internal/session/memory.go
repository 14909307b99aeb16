package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mindmirror/mindmirror/internal/models"
)

// InMemoryStore keeps sessions in a process-local map guarded by a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating in-memory session store")
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

// Create starts a fresh session for a user.
func (s *InMemoryStore) Create(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[userID]; exists {
		slog.Warn("InMemoryStore Create: session already exists", "userID", userID)
		return models.ErrSessionExists
	}

	s.sessions[userID] = &models.Session{
		UserID:         userID,
		Answers:        []string{},
		LastActivityAt: time.Now(),
	}
	slog.Debug("InMemoryStore Create succeeded", "userID", userID)
	return nil
}

// Get returns a copy of the user's session, or nil when none exists.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, exists := s.sessions[userID]
	if !exists {
		return nil, nil
	}
	return copySession(sess), nil
}

// Update appends an answer and advances the question index.
func (s *InMemoryStore) Update(ctx context.Context, userID, answer string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[userID]
	if !exists {
		slog.Warn("InMemoryStore Update: no session for user, ignoring", "userID", userID)
		return nil, nil
	}

	sess.Answers = append(sess.Answers, answer)
	sess.CurrentQuestionIndex++
	sess.IsComplete = sess.CurrentQuestionIndex >= models.TotalQuestions
	sess.LastActivityAt = time.Now()
	slog.Debug("InMemoryStore Update succeeded", "userID", userID, "questionIndex", sess.CurrentQuestionIndex)
	return copySession(sess), nil
}

// Touch refreshes the session's last-activity time.
func (s *InMemoryStore) Touch(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, exists := s.sessions[userID]; exists {
		sess.LastActivityAt = time.Now()
	}
	return nil
}

// Clear removes the user's session.
func (s *InMemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[userID]; !exists {
		slog.Debug("InMemoryStore Clear: no session for user", "userID", userID)
		return nil
	}
	delete(s.sessions, userID)
	slog.Debug("InMemoryStore Clear succeeded", "userID", userID)
	return nil
}

// copySession returns a detached copy so callers never alias store-owned state.
func copySession(sess *models.Session) *models.Session {
	out := *sess
	out.Answers = make([]string, len(sess.Answers))
	copy(out.Answers, sess.Answers)
	return &out
}
