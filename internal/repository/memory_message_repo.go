package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-backend/internal/models"
)

// MemoryMessageRepo keeps the chat log in process memory. Contents are lost
// on restart.
type MemoryMessageRepo struct {
	mu          sync.RWMutex
	messages    []models.ChatMessage
	maxRetained int
	now         func() time.Time
}

// NewMemoryMessageRepo creates an in-memory store. maxRetained <= 0 keeps
// every message, which is the default. A positive cap (CHAT_MAX_RETAINED)
// deletes the oldest messages once it is exceeded, so the log is no longer
// append-only: evicted messages disappear from history for good.
func NewMemoryMessageRepo(maxRetained int) *MemoryMessageRepo {
	return &MemoryMessageRepo{
		maxRetained: maxRetained,
		now:         time.Now,
	}
}

func (r *MemoryMessageRepo) Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := models.ChatMessage{
		ID:        uuid.New(),
		Content:   content,
		Sender:    sender,
		Timestamp: r.now().UTC(),
	}
	r.messages = append(r.messages, msg)

	if r.maxRetained > 0 && len(r.messages) > r.maxRetained {
		drop := len(r.messages) - r.maxRetained
		r.messages = append([]models.ChatMessage(nil), r.messages[drop:]...)
	}

	return &msg, nil
}

func (r *MemoryMessageRepo) List(ctx context.Context) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append(make([]models.ChatMessage, 0, len(r.messages)), r.messages...), nil
}

func (r *MemoryMessageRepo) Recent(ctx context.Context, n int) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return []models.ChatMessage{}, nil
	}
	start := len(r.messages) - n
	if start < 0 {
		start = 0
	}
	return append([]models.ChatMessage{}, r.messages[start:]...), nil
}
