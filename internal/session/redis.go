package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindmirror/mindmirror/internal/models"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "mindmirror:session:"

// RedisStore keeps sessions in Redis with a sliding server-side TTL. The
// expiry *message* is still driven by the process-local keyed timer; the
// Redis TTL is a backstop that keeps stale entries from accumulating.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the session key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithSessionTTL sets the sliding expiration applied on every write.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a session store backed by an existing Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    15 * time.Minute,
	}
	for _, opt := range opts {
		opt(store)
	}
	slog.Debug("Creating Redis session store", "prefix", store.prefix, "ttl", store.ttl)
	return store
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// Create starts a fresh session for a user.
func (s *RedisStore) Create(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}

	sess := models.Session{
		UserID:         userID,
		Answers:        []string{},
		LastActivityAt: time.Now(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(userID), data, s.ttl).Result()
	if err != nil {
		slog.Error("RedisStore Create failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	if !ok {
		slog.Warn("RedisStore Create: session already exists", "userID", userID)
		return models.ErrSessionExists
	}
	slog.Debug("RedisStore Create succeeded", "userID", userID)
	return nil
}

// Get returns the user's session, or nil when none exists.
func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		slog.Error("RedisStore Get failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update appends an answer and advances the question index.
func (s *RedisStore) Update(ctx context.Context, userID, answer string) (*models.Session, error) {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		slog.Warn("RedisStore Update: no session for user, ignoring", "userID", userID)
		return nil, nil
	}

	sess.Answers = append(sess.Answers, answer)
	sess.CurrentQuestionIndex++
	sess.IsComplete = sess.CurrentQuestionIndex >= models.TotalQuestions
	sess.LastActivityAt = time.Now()

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	slog.Debug("RedisStore Update succeeded", "userID", userID, "questionIndex", sess.CurrentQuestionIndex)
	return sess, nil
}

// Touch refreshes the last-activity time and re-extends the Redis TTL.
func (s *RedisStore) Touch(ctx context.Context, userID string) error {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	sess.LastActivityAt = time.Now()
	return s.save(ctx, sess)
}

// Clear removes the user's session.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		slog.Error("RedisStore Clear failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear session in redis: %w", err)
	}
	slog.Debug("RedisStore Clear succeeded", "userID", userID)
	return nil
}

func (s *RedisStore) save(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.UserID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore save failed", "error", err, "userID", sess.UserID)
		return fmt.Errorf("failed to save session in redis: %w", err)
	}
	return nil
}
