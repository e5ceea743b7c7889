package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists quota state.
type Store interface {
	// Load returns the stored state, or UnknownState when nothing was stored.
	Load(ctx context.Context) (*State, error)
	// Save replaces the stored state.
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps quota state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return UnknownState(), nil
	}
	s := *m.state
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("quota state cannot be nil")
	}
	s := *state
	m.mu.Lock()
	m.state = &s
	m.mu.Unlock()
	return nil
}

// RedisStore shares quota state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	remaining, err := r.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return UnknownState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota remaining: %w", err)
	}

	state := &State{Remaining: remaining}

	lastUpdate, err := r.redis.Get(ctx, RedisKeyLastUpdate).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get quota last update: %w", err)
	}
	if len(lastUpdate) > 0 {
		if err := json.Unmarshal(lastUpdate, &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse quota last update: %w", err)
		}
	}

	state.UpdateHealth()
	return state, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("quota state cannot be nil")
	}

	lastUpdate, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal quota last update: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, RedisStateTTL)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdate, RedisStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}
	return nil
}
