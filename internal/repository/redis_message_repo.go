package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"portfolio-backend/internal/models"
)

const DefaultRedisMessagesKey = "chat:messages"

// RedisMessageRepo stores the chat log as a Redis list of JSON records.
// RPUSH is atomic, so concurrent writers never interleave or lose entries.
type RedisMessageRepo struct {
	redis *redis.Client
	key   string
}

func NewRedisMessageRepo(redisClient *redis.Client, key string) *RedisMessageRepo {
	if key == "" {
		key = DefaultRedisMessagesKey
	}
	return &RedisMessageRepo{redis: redisClient, key: key}
}

func (r *RedisMessageRepo) Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        uuid.New(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, storageErr("create", err)
	}

	if err := r.redis.RPush(ctx, r.key, data).Err(); err != nil {
		return nil, storageErr("create", err)
	}

	return msg, nil
}

func (r *RedisMessageRepo) List(ctx context.Context) ([]models.ChatMessage, error) {
	return r.lrange(ctx, "list", 0, -1)
}

func (r *RedisMessageRepo) Recent(ctx context.Context, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		return []models.ChatMessage{}, nil
	}
	return r.lrange(ctx, "recent", int64(-n), -1)
}

func (r *RedisMessageRepo) lrange(ctx context.Context, op string, start, stop int64) ([]models.ChatMessage, error) {
	raw, err := r.redis.LRange(ctx, r.key, start, stop).Result()
	if err != nil {
		return nil, storageErr(op, err)
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for i, item := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, storageErr(op, fmt.Errorf("decode entry %d: %w", i, err))
		}
		if !m.Sender.Valid() {
			return nil, storageErr(op, fmt.Errorf("entry %d has unknown sender %q", i, m.Sender))
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}
