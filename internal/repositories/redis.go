package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix   = "djwaifu:session:"
	redisSequenceKey = "djwaifu:sessions:sequence"
	redisTimeout     = 3 * time.Second
)

// RedisSessionStore implements [SessionStore] with one JSON value per session.
//
// Keys carry the session's remaining lifetime as TTL, so Redis drops expired sessions itself.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore connects to addr and verifies the connection with PING.
func NewRedisSessionStore(ctx context.Context, addr string) (*RedisSessionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is empty", shared.ErrInvalidConfig)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping failed: %v", shared.ErrServiceUnavailable, err)
	}

	return &RedisSessionStore{client: client}, nil
}

// NewRedisSessionStoreWithClient wraps an existing client.
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Close releases the underlying connection pool.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisSessionStore) write(ctx context.Context, session *models.Session, mustExist bool) error {
	ttl := time.Until(session.ExpiresAt())
	if ttl <= 0 {
		return fmt.Errorf("%w: session %s already expired", shared.ErrInvalidSession, session.ID())
	}

	data, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if !mustExist {
		return r.client.Set(ctx, redisKey(session.ID()), data, ttl).Err()
	}

	ok, err := r.client.SetXX(ctx, redisKey(session.ID()), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}
	return nil
}

// Create stores a new session with generated ID and sequence
func (r *RedisSessionStore) Create(session *models.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	sequence, err := r.client.Incr(ctx, redisSequenceKey).Result()
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	session.SetID(shared.GenerateID())
	session.SetSequence(int(sequence))

	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := r.write(ctx, session, false); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *RedisSessionStore) Get(id string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	return decodeSession(data)
}

// Update overwrites an existing session, refreshing its TTL from the session expiry
func (r *RedisSessionStore) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	session.SetUpdatedAt(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.write(ctx, session, true); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a session by ID
func (r *RedisSessionStore) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := r.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// List scans every stored session, optionally filtered by "spotify_user_id"
func (r *RedisSessionStore) List(criteria map[string]any) ([]*models.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	userID, _ := criteria["spotify_user_id"].(string)

	var sessions []*models.Session
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session: %w", err)
		}

		session, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		if userID != "" && session.SpotifyUserID() != userID {
			continue
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	return sessions, nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (r *RedisSessionStore) DeleteExpired(time.Time) (int, error) {
	return 0, nil
}

func decodeSession(data []byte) (*models.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return rec.session(), nil
}
