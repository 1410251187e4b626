package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxOptimisticRetries = 5

// RedisSessionStore keeps each session as a JSON document under "session:<id>".
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore builds a store. A zero ttl keeps sessions until removed externally.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("leasing.internal.conversation.sessions")
	}
	return &RedisSessionStore{redis: client, ttl: ttl, tracer: tracer}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_session", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	sess, err := s.load(ctx, s.redis, id)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		span.RecordError(err)
	}
	return sess, err
}

// Save merges with the stored document inside a WATCH transaction so a concurrent
// write cannot drop collected fields or reset the sync flag.
func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()
	if sess == nil || sess.SessionID == "" {
		return errors.New("conversation: session id required")
	}
	span.SetAttributes(attribute.String("session_id", sess.SessionID))

	key := sessionKey(sess.SessionID)
	err := s.update(ctx, key, func(tx *redis.Tx) (*Session, error) {
		stored, err := s.load(ctx, tx, sess.SessionID)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		next := sess.clone()
		next.absorb(stored)
		return next, nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) LeadSynced(ctx context.Context, id string) (bool, error) {
	return leadSynced(ctx, s.Get, id)
}

func (s *RedisSessionStore) MarkLeadSynced(ctx context.Context, id, externalID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.mark_lead_synced", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	err := s.update(ctx, sessionKey(id), func(tx *redis.Tx) (*Session, error) {
		stored, err := s.load(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		stored.LeadSyncedToExternal = true
		if stored.ExternalLeadID == "" {
			stored.ExternalLeadID = externalID
		}
		stored.UpdatedAt = time.Now().UTC()
		return stored, nil
	})
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to mark lead synced: %w", err)
	}
	return err
}

func (s *RedisSessionStore) update(ctx context.Context, key string, mutate func(tx *redis.Tx) (*Session, error)) error {
	txf := func(tx *redis.Tx) error {
		next, err := mutate(tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxOptimisticRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisSessionStore) load(ctx context.Context, c stringGetter, id string) (*Session, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &sess, nil
}
