// Package session keeps the minimal server-side session record that must
// agree with the bearer token on every authenticated request.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is the minimal user projection stored at login.
type Session struct {
	UserID   string
	Email    string
	Username string
	Fullname string
	SID      string
}

// Store abstracts the session backend. The redis implementation is wired in
// production; the memory implementation backs tests.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*Session, error)
	Delete(ctx context.Context, userID string) error
}

func key(userID string) string {
	return "user:session:" + userID
}

// RedisStore keeps sessions as redis hashes with a TTL.
type RedisStore struct {
	RDB *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb}
}

func (r *RedisStore) Save(ctx context.Context, s Session, ttl time.Duration) error {
	fields := map[string]any{
		"user_id":    s.UserID,
		"email":      s.Email,
		"username":   s.Username,
		"fullname":   s.Fullname,
		"sid":        s.SID,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	pipe := r.RDB.Pipeline()
	pipe.HSet(ctx, key(s.UserID), fields)
	pipe.Expire(ctx, key(s.UserID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	data, err := r.RDB.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &Session{
		UserID:   data["user_id"],
		Email:    data["email"],
		Username: data["username"],
		Fullname: data["fullname"],
		SID:      data["sid"],
	}, nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	return r.RDB.Del(ctx, key(userID)).Err()
}

// MemoryStore is a process-local Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(ctx context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
