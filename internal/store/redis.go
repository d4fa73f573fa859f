package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisConnectionKeyPrefix = "fts:connection:"

// RedisStore is a redis-backed ConnectionStore for deployments without a
// writable filesystem. Connections are stored as JSON blobs keyed by id.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore connects to redis at redisURL and fails fast if unreachable.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// Harden client timeouts and retries.
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, now: time.Now}, nil
}

type redisConnection struct {
	SlackWebhookURL     string `json:"slack_webhook_url"`
	FathomWebhookSecret string `json:"fathom_webhook_secret,omitempty"`
	AssigneeEmailFilter string `json:"assignee_email_filter,omitempty"`
	AssigneeNameFilter  string `json:"assignee_name_filter,omitempty"`
	DeliveryMode        string `json:"delivery_mode"`
	CreatedAt           string `json:"created_at"`
}

// Create stores a new connection and returns its generated id.
func (s *RedisStore) Create(ctx context.Context, conn Connection) (string, error) {
	id := uuid.NewString()
	mode := conn.DeliveryMode
	if mode == "" {
		mode = ModeMessage
	}

	blob, err := json.Marshal(redisConnection{
		SlackWebhookURL:     conn.SlackWebhookURL,
		FathomWebhookSecret: conn.FathomWebhookSecret,
		AssigneeEmailFilter: conn.AssigneeEmailFilter,
		AssigneeNameFilter:  conn.AssigneeNameFilter,
		DeliveryMode:        mode,
		CreatedAt:           s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("marshal connection: %w", err)
	}

	if err := s.rdb.Set(ctx, redisConnectionKeyPrefix+id, blob, 0).Err(); err != nil {
		return "", fmt.Errorf("store connection: %w", err)
	}
	return id, nil
}

// Get loads one connection by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Connection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrConnectionNotFound
	}

	blob, err := s.rdb.Get(ctx, redisConnectionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}

	var rc redisConnection
	if err := json.Unmarshal(blob, &rc); err != nil {
		return nil, fmt.Errorf("unmarshal connection %q: %w", id, err)
	}

	conn := &Connection{
		ID:                  id,
		SlackWebhookURL:     rc.SlackWebhookURL,
		FathomWebhookSecret: rc.FathomWebhookSecret,
		AssigneeEmailFilter: rc.AssigneeEmailFilter,
		AssigneeNameFilter:  rc.AssigneeNameFilter,
		DeliveryMode:        rc.DeliveryMode,
	}
	if rc.CreatedAt != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, rc.CreatedAt); err == nil {
			conn.CreatedAt = createdAt
		}
	}
	return conn, nil
}

// Close releases the underlying redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
