package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio-backend/internal/models"
)

type PostgresMessageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepo(pool *pgxpool.Pool) *PostgresMessageRepo {
	return &PostgresMessageRepo{pool: pool}
}

// Create inserts a message. id and created_at come from the database so the
// row is the single source of truth; seq fixes the chronological order.
func (r *PostgresMessageRepo) Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{Content: content, Sender: sender}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (content, sender)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, content, string(sender)).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return nil, storageErr("create", err)
	}

	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func (r *PostgresMessageRepo) List(ctx context.Context) ([]models.ChatMessage, error) {
	return r.query(ctx, "list", `
		SELECT id, content, sender, created_at
		FROM chat_messages
		ORDER BY seq ASC
	`)
}

// Recent selects the newest n rows and returns them oldest first.
func (r *PostgresMessageRepo) Recent(ctx context.Context, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		return []models.ChatMessage{}, nil
	}
	return r.query(ctx, "recent", `
		SELECT id, content, sender, created_at FROM (
			SELECT seq, id, content, sender, created_at
			FROM chat_messages
			ORDER BY seq DESC
			LIMIT $1
		) newest
		ORDER BY seq ASC
	`, n)
}

func (r *PostgresMessageRepo) query(ctx context.Context, op, sql string, args ...interface{}) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	msgs := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.Content, &sender, &m.Timestamp); err != nil {
			return nil, storageErr(op, err)
		}
		m.Sender = models.Sender(sender)
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}

	return msgs, nil
}
