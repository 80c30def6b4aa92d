package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/retry"
)

// RedisMemory stores transcripts as Redis lists, one key per conversation
type RedisMemory struct {
	client         *redis.Client
	ttl            time.Duration
	keyPrefix      string
	maxMessageSize int
	retryExecutor  *retry.Executor
}

// RedisOption represents an option for configuring the Redis memory
type RedisOption func(*RedisMemory)

// WithTTL sets the TTL for Redis keys
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisMemory) {
		r.ttl = ttl
	}
}

// WithKeyPrefix sets a custom prefix for Redis keys
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisMemory) {
		r.keyPrefix = prefix
	}
}

// WithMaxMessageSize sets the maximum encoded size of a stored message
func WithMaxMessageSize(size int) RedisOption {
	return func(r *RedisMemory) {
		r.maxMessageSize = size
	}
}

// WithRetry configures retries for Redis writes
func WithRetry(opts ...retry.Option) RedisOption {
	return func(r *RedisMemory) {
		r.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// RedisConfig contains configuration for Redis
type RedisConfig struct {
	// Addr is the Redis address (e.g., "localhost:6379")
	Addr string `yaml:"addr"`

	// Password is the Redis password
	Password string `yaml:"password"`

	// DB is the Redis database number
	DB int `yaml:"db"`
}

// NewRedisMemory creates a new Redis-backed transcript store
func NewRedisMemory(client *redis.Client, options ...RedisOption) *RedisMemory {
	memory := &RedisMemory{
		client:         client,
		ttl:            7 * 24 * time.Hour,
		keyPrefix:      "clemm:transcript:",
		maxMessageSize: 1024 * 1024,
		retryExecutor: retry.NewExecutor(retry.NewPolicy(
			retry.WithInitialInterval(100*time.Millisecond),
			retry.WithMaxAttempts(3),
		)),
	}

	for _, option := range options {
		option(memory)
	}

	return memory
}

// NewRedisMemoryFromConfig connects to Redis and verifies the connection
func NewRedisMemoryFromConfig(ctx context.Context, config RedisConfig, options ...RedisOption) (*RedisMemory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisMemory(client, options...), nil
}

// Key returns the Redis key holding the conversation's transcript
func (r *RedisMemory) Key(conversationID string) string {
	return r.keyPrefix + conversationID
}

// AddMessage appends a message to the conversation list and refreshes its TTL
func (r *RedisMemory) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}
	key := r.Key(id)

	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if r.maxMessageSize > 0 && len(encoded) > r.maxMessageSize {
		return fmt.Errorf("message size exceeds maximum allowed size of %d bytes", r.maxMessageSize)
	}

	err = r.retryExecutor.Execute(ctx, func() error {
		pipe := r.client.TxPipeline()
		pipe.RPush(ctx, key, encoded)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add message to Redis: %w", err)
	}

	return nil
}

// GetMessages reads the conversation list
func (r *RedisMemory) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	results, err := r.client.LRange(ctx, r.Key(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from Redis: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(results))
	for _, result := range results {
		var message interfaces.Message
		if err := json.Unmarshal([]byte(result), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, message)
	}

	return applyOptions(messages, interfaces.ApplyGetMessagesOptions(options...)), nil
}

// Clear deletes the conversation list
func (r *RedisMemory) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.Key(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear memory in Redis: %w", err)
	}

	return nil
}

// Close closes the underlying Redis connection
func (r *RedisMemory) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
