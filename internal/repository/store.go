package repository

import (
	"context"

	"portfolio-backend/internal/models"
)

// MessageStore is the append-only chat log. Every backend in this package
// implements it.
type MessageStore interface {
	Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error)
	List(ctx context.Context) ([]models.ChatMessage, error)
	Recent(ctx context.Context, n int) ([]models.ChatMessage, error)
}

var (
	_ MessageStore = (*MemoryMessageRepo)(nil)
	_ MessageStore = (*PostgresMessageRepo)(nil)
	_ MessageStore = (*RedisMessageRepo)(nil)
	_ MessageStore = (*BadgerMessageRepo)(nil)
)
