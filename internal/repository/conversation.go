package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ConversationRepository handles database operations for conversations and memberships
type ConversationRepository struct {
	db DBTX
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// LockDirectPair takes a transaction-scoped advisory lock on the unordered
// pair so two concurrent lookups cannot both create a direct conversation.
// first must be the smaller id.
func (r *ConversationRepository) LockDirectPair(ctx context.Context, first, second int64) error {
	_, err := r.db.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('direct:' || $1::text || ':' || $2::text, 0))`,
		first, second)
	if err != nil {
		return fmt.Errorf("failed to lock direct pair: %w", err)
	}
	return nil
}

// FindDirect returns the direct conversation whose members include both users
func (r *ConversationRepository) FindDirect(ctx context.Context, first, second int64) (int64, bool, error) {
	query := `
		SELECT c.id
		FROM conversations c
		JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.user_id = $1
		JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.user_id = $2
		WHERE c.type = 'direct'
		ORDER BY c.id
		LIMIT 1
	`
	var id int64
	err := r.db.QueryRow(ctx, query, first, second).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to find direct conversation: %w", err)
	}
	return id, true, nil
}

// Create inserts a conversation and returns its id
func (r *ConversationRepository) Create(ctx context.Context, kind models.ConversationType, name *string, createdBy int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO conversations (type, name, created_by) VALUES ($1, $2, $3) RETURNING id`,
		kind, name, createdBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// AddMembers inserts one membership row per user
func (r *ConversationRepository) AddMembers(ctx context.Context, conversationID int64, userIDs []int64) error {
	query := `
		INSERT INTO conversation_members (conversation_id, user_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, conversationID, userIDs); err != nil {
		return fmt.Errorf("failed to add conversation members: %w", err)
	}
	return nil
}

// IsMember reports whether userID belongs to the conversation
func (r *ConversationRepository) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// GetForMember returns the conversation if userID is one of its members
func (r *ConversationRepository) GetForMember(ctx context.Context, conversationID, userID int64) (*models.Conversation, error) {
	query := `
		SELECT c.id, c.type, c.name, COALESCE(c.created_by, 0), c.created_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE c.id = $1 AND cm.user_id = $2
	`
	var c models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&c.ID, &c.Type, &c.Name, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// MemberIDs returns the ids of all members of a conversation
func (r *ConversationRepository) MemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1 ORDER BY user_id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Members returns the member cards of a conversation ordered by name
func (r *ConversationRepository) Members(ctx context.Context, conversationID int64) ([]models.MemberSummary, error) {
	query := `
		SELECT u.id, u.name, u.photo_url
		FROM conversation_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.conversation_id = $1
		ORDER BY u.name
	`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.MemberSummary
	for rows.Next() {
		var m models.MemberSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// ListForUser returns every conversation userID belongs to with its last
// message, display label and unread count, most recent activity first
func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.type, c.created_at,
		       last.text, last.created_at,
		       CASE WHEN c.type = 'direct'
		            THEN COALESCE((
		                SELECT u.name
		                FROM conversation_members o
		                JOIN users u ON u.id = o.user_id
		                WHERE o.conversation_id = c.id AND o.user_id <> $1
		                ORDER BY o.user_id
		                LIMIT 1), 'Conversation')
		            ELSE COALESCE(c.name, 'Group')
		       END AS label,
		       (SELECT COUNT(*)
		          FROM messages mu
		         WHERE mu.conversation_id = c.id
		           AND mu.sender_id <> $1
		           AND mu.id > COALESCE((
		               SELECT cr.last_read_message_id
		               FROM conversation_reads cr
		               WHERE cr.conversation_id = c.id AND cr.user_id = $1), 0)
		       ) AS unread_count
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = $1
		LEFT JOIN LATERAL (
		    SELECT m.text, m.created_at
		    FROM messages m
		    WHERE m.conversation_id = c.id
		    ORDER BY m.id DESC
		    LIMIT 1
		) last ON TRUE
		ORDER BY COALESCE(last.created_at, c.created_at) DESC, c.id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var list []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.ID, &s.Type, &s.CreatedAt, &s.LastMessage, &s.LastMessageAt,
			&s.Label, &s.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return list, nil
}

// CountWithUnread returns how many of userID's conversations have at least one unread message
func (r *ConversationRepository) CountWithUnread(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM conversation_members cm
		WHERE cm.user_id = $1
		  AND EXISTS (
		      SELECT 1 FROM messages m
		      WHERE m.conversation_id = cm.conversation_id
		        AND m.sender_id <> $1
		        AND m.id > COALESCE((
		            SELECT cr.last_read_message_id
		            FROM conversation_reads cr
		            WHERE cr.conversation_id = cm.conversation_id AND cr.user_id = $1), 0)
		  )
	`
	var total int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count unread conversations: %w", err)
	}
	return total, nil
}
