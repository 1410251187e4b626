package property

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const configKey = "property:config"

// Store persists the single property configuration.
type Store interface {
	// Get returns the saved config with defaults applied, or DefaultConfig when none is saved.
	Get(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
	// SaveIfAbsent stores cfg only when nothing is saved yet.
	SaveIfAbsent(ctx context.Context, cfg *Config) (bool, error)
}

// RedisStore keeps the config as a JSON document in Redis.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("property: redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Get(ctx context.Context) (*Config, error) {
	data, err := s.redis.Get(ctx, configKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("property: get config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("property: unmarshal config: %w", err)
	}
	return cfg.WithDefaults(), nil
}

func (s *RedisStore) Save(ctx context.Context, cfg *Config) error {
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, configKey, data, 0).Err(); err != nil {
		return fmt.Errorf("property: set config: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveIfAbsent(ctx context.Context, cfg *Config) (bool, error) {
	data, err := marshalConfig(cfg)
	if err != nil {
		return false, err
	}
	ok, err := s.redis.SetNX(ctx, configKey, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("property: seed config: %w", err)
	}
	return ok, nil
}

func marshalConfig(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("property: config cannot be nil")
	}
	stamped := *cfg
	stamped.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&stamped)
	if err != nil {
		return nil, fmt.Errorf("property: marshal config: %w", err)
	}
	return data, nil
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return DefaultConfig(), nil
	}
	return s.cfg.WithDefaults(), nil
}

func (s *MemoryStore) Save(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("property: config cannot be nil")
	}
	copied := *cfg
	copied.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.cfg = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveIfAbsent(ctx context.Context, cfg *Config) (bool, error) {
	s.mu.RLock()
	exists := s.cfg != nil
	s.mu.RUnlock()
	if exists {
		return false, nil
	}
	return true, s.Save(ctx, cfg)
}
