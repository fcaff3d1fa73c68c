package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"parcel-dispatch/internal/domain"
)

// ChatRepo represents chat message repository.
type ChatRepo struct{ db *pgxpool.Pool }

// NewChatRepo creates a new ChatRepo.
func NewChatRepo(db *pgxpool.Pool) *ChatRepo { return &ChatRepo{db: db} }

// Insert appends a message to the delivery chat log.
func (r *ChatRepo) Insert(ctx context.Context, m *domain.ChatMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO chat_messages (id, delivery_id, sender_type, sender_id, content, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, m.ID, m.DeliveryID, string(m.SenderType), m.SenderID, m.Content, m.IsRead, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message for delivery %d: %w", m.DeliveryID, err)
	}
	return nil
}

// Recent returns the last limit messages of a delivery, oldest first.
func (r *ChatRepo) Recent(ctx context.Context, deliveryID int64, limit int) ([]domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, delivery_id, sender_type, sender_id, content, is_read, created_at
        FROM (
            SELECT id, delivery_id, sender_type, sender_id, content, is_read, created_at
            FROM chat_messages
            WHERE delivery_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, id ASC
    `, deliveryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages for delivery %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.DeliveryID, &m.SenderType, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead marks unread messages written by sender as read and returns how many changed.
func (r *ChatRepo) MarkRead(ctx context.Context, deliveryID int64, sender domain.SenderType) (int64, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE chat_messages
        SET is_read = true
        WHERE delivery_id = $1 AND sender_type = $2 AND NOT is_read
    `, deliveryID, string(sender))
	if err != nil {
		return 0, fmt.Errorf("mark chat read for delivery %d: %w", deliveryID, err)
	}
	return ct.RowsAffected(), nil
}
