package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imuhira/backend/internal/models"
)

// DebateEventsChannel carries debate.* events to every websocket hub
const DebateEventsChannel = "debates"

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Public debate cache

func debateKey(slug string) string {
	return fmt.Sprintf("debate:published:%s", slug)
}

// GetPublishedDebate returns the cached public payload for slug.
// A miss is (nil, nil).
func (r *RedisClient) GetPublishedDebate(ctx context.Context, slug string) (*models.DebateWithArguments, error) {
	data, err := r.client.Get(ctx, debateKey(slug)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var debate models.DebateWithArguments
	if err := json.Unmarshal(data, &debate); err != nil {
		return nil, err
	}
	return &debate, nil
}

// generationKey counts invalidations of slug. A fill only lands when the
// count it read before loading from the database is still current.
func generationKey(slug string) string {
	return fmt.Sprintf("debate:gen:%s", slug)
}

// CacheGeneration returns the invalidation count for slug; read it before
// loading the debate that will be passed to SetPublishedDebate.
func (r *RedisClient) CacheGeneration(ctx context.Context, slug string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(slug)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// SetPublishedDebate caches the public payload for the debate's slug unless
// the slug was invalidated after generation was read. A skipped fill is not
// an error.
func (r *RedisClient) SetPublishedDebate(ctx context.Context, debate *models.DebateWithArguments, generation int64) error {
	data, err := json.Marshal(debate)
	if err != nil {
		return err
	}

	genKey := generationKey(debate.Slug)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, debateKey(debate.Slug), data, r.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidateDebate drops cached payloads for every given slug and bumps
// their generations so in-flight fills are discarded
func (r *RedisClient) InvalidateDebate(ctx context.Context, slugs ...string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, slug := range slugs {
			if slug == "" {
				continue
			}
			pipe.Incr(ctx, generationKey(slug))
			pipe.Del(ctx, debateKey(slug))
		}
		return nil
	})
	return err
}

// Pub/Sub

// PublishDebateEvent publishes an event to the debates channel
func (r *RedisClient) PublishDebateEvent(ctx context.Context, event models.WSMessage) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, DebateEventsChannel, data).Err()
}

// SubscribeToDebateEvents subscribes to the debates channel
func (r *RedisClient) SubscribeToDebateEvents(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, DebateEventsChannel)
}

// Ping reports whether Redis is reachable
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
