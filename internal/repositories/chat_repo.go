package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pactify/backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, m *models.ChatMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (pact_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.PactID, m.SenderID, m.Body).Scan(&m.ID, &m.CreatedAt)
}

// ListSince supports the polling client: messages newer than the client's
// last-seen timestamp, oldest first.
func (r *ChatRepo) ListSince(ctx context.Context, pactID uuid.UUID, since time.Time, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, pact_id, sender_id, body, created_at
		FROM chat_messages
		WHERE pact_id = $1 AND created_at > $2
		ORDER BY created_at ASC LIMIT $3
	`, pactID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.PactID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
