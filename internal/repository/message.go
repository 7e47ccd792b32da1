package repository

import (
	"context"
	"fmt"

	"community-backend/internal/models"
)

// MessageRepository handles database operations for messages and read cursors
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message and fills in its id and creation time
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_id, text, file_url, file_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Text, msg.FileURL, msg.FileName,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByConversation returns all messages of a conversation in id order
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.name, u.photo_url,
		       m.text, m.file_url, m.file_name, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.id ASC
	`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.SenderPhotoURL,
			&m.Text, &m.FileURL, &m.FileName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// UpsertReadCursor sets the read high-water mark of userID in a conversation
func (r *MessageRepository) UpsertReadCursor(ctx context.Context, conversationID, userID, lastMessageID int64) error {
	query := `
		INSERT INTO conversation_reads (conversation_id, user_id, last_read_message_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (conversation_id, user_id)
		DO UPDATE SET last_read_message_id = EXCLUDED.last_read_message_id,
		              updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, conversationID, userID, lastMessageID); err != nil {
		return fmt.Errorf("failed to upsert read cursor: %w", err)
	}
	return nil
}

// UnreadCount counts messages by other members above userID's read cursor
func (r *MessageRepository) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.conversation_id = $1
		  AND m.sender_id <> $2
		  AND m.id > COALESCE((
		      SELECT last_read_message_id FROM conversation_reads
		      WHERE conversation_id = $1 AND user_id = $2), 0)
	`
	var n int
	if err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}
