package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/store"
	"github.com/utafrali/storefront/pkg/database"
)

// Store implements store.Store on Redis. Keys live under "<namespace>:"
// and changes are published on "<namespace>:changes".
type Store struct {
	client    *redis.Client
	namespace string
	origin    string
	logger    *slog.Logger
}

// NewStore creates a Redis-backed store for one namespace. origin must be
// unique per tab.
func NewStore(client *redis.Client, namespace, origin string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		namespace: namespace,
		origin:    origin,
		logger:    logger,
	}
}

func (s *Store) key(k string) string {
	return s.namespace + ":" + k
}

func (s *Store) channel() string {
	return s.namespace + ":changes"
}

// Get retrieves a value from Redis.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	ctx, end := database.TraceOp(ctx, "redis", "Get", "GET "+s.key(key))
	defer func() { end(err) }()

	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes a value without expiry and publishes the change.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceOp(ctx, "redis", "Set", "SET "+s.key(key))
	defer func() { end(err) }()

	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.publish(ctx, store.Change{Key: key})
	return nil
}

// Remove deletes a key and publishes the change.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceOp(ctx, "redis", "Remove", "DEL "+s.key(key))
	defer func() { end(err) }()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	s.publish(ctx, store.Change{Key: key, Removed: true})
	return nil
}

// publish is best effort: a lost notification only delays another tab.
func (s *Store) publish(ctx context.Context, c store.Change) {
	c.Namespace = s.namespace
	c.Origin = s.origin
	payload, err := c.Encode()
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.WarnContext(ctx, "failed to publish store change",
			slog.String("key", c.Key),
			slog.String("error", err.Error()),
		)
	}
}

// Watch subscribes to the namespace change channel.
func (s *Store) Watch(ctx context.Context, fn func(store.Change)) error {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe %s: %w", s.channel(), err)
	}

	go func() {
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c, err := store.DecodeChange(msg.Payload)
				if err != nil {
					s.logger.Warn("ignoring malformed store change", slog.String("error", err.Error()))
					continue
				}
				if c.Origin == s.origin || c.Namespace != s.namespace {
					continue
				}
				fn(c)
			}
		}
	}()

	return nil
}

// Origin returns the tab id.
func (s *Store) Origin() string {
	return s.origin
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
