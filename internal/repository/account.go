package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AccountRepository tears down everything owned by or referencing a user
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// accountTeardown lists the deletes in dependency order. Every statement
// takes the user id as $1.
var accountTeardown = []struct {
	name string
	sql  string
}{
	{"photo comments on own photos", `DELETE FROM photo_post_comments WHERE photo_post_id IN (SELECT id FROM photo_posts WHERE user_id = $1)`},
	{"photo likes on own photos", `DELETE FROM photo_post_likes WHERE photo_post_id IN (SELECT id FROM photo_posts WHERE user_id = $1)`},
	{"own photo comments", `DELETE FROM photo_post_comments WHERE user_id = $1`},
	{"own photo likes", `DELETE FROM photo_post_likes WHERE user_id = $1`},
	{"own photo posts", `DELETE FROM photo_posts WHERE user_id = $1`},
	{"reports on own comments", `DELETE FROM reports WHERE target_type = 'comment' AND target_id IN (SELECT id FROM comments WHERE user_id = $1)`},
	{"own comments", `DELETE FROM comments WHERE user_id = $1`},
	{"reports on comments of own posts", `DELETE FROM reports WHERE target_type = 'comment' AND target_id IN (SELECT c.id FROM comments c JOIN posts p ON p.id = c.post_id WHERE p.user_id = $1)`},
	{"comments on own posts", `DELETE FROM comments WHERE post_id IN (SELECT id FROM posts WHERE user_id = $1)`},
	{"likes on own posts", `DELETE FROM post_likes WHERE post_id IN (SELECT id FROM posts WHERE user_id = $1)`},
	{"reports on own posts", `DELETE FROM reports WHERE target_type = 'post' AND target_id IN (SELECT id FROM posts WHERE user_id = $1)`},
	{"own posts", `DELETE FROM posts WHERE user_id = $1`},
	{"own likes", `DELETE FROM post_likes WHERE user_id = $1`},
	{"authored reports", `DELETE FROM reports WHERE reporter_id = $1`},
	{"known contacts", `DELETE FROM known_contacts WHERE user_id = $1 OR known_user_id = $1`},
	{"connection requests", `DELETE FROM connection_requests WHERE requester_id = $1 OR receiver_id = $1`},
	{"read cursors", `DELETE FROM conversation_reads WHERE user_id = $1`},
	{"authored messages", `DELETE FROM messages WHERE sender_id = $1`},
	{"memberships", `DELETE FROM conversation_members WHERE user_id = $1`},
	{"empty conversation cursors", `DELETE FROM conversation_reads WHERE conversation_id IN (SELECT c.id FROM conversations c WHERE NOT EXISTS (SELECT 1 FROM conversation_members cm WHERE cm.conversation_id = c.id))`},
	{"empty conversation messages", `DELETE FROM messages WHERE conversation_id IN (SELECT c.id FROM conversations c WHERE NOT EXISTS (SELECT 1 FROM conversation_members cm WHERE cm.conversation_id = c.id))`},
	{"empty conversations", `DELETE FROM conversations c WHERE NOT EXISTS (SELECT 1 FROM conversation_members cm WHERE cm.conversation_id = c.id)`},
	{"user", `DELETE FROM users WHERE id = $1`},
}

// DeleteUserData removes the user and every row that references them. It
// returns the file references (profile photo and owned photo-post images)
// whose backing files the caller should remove after commit.
func (r *AccountRepository) DeleteUserData(ctx context.Context, userID int64) ([]string, error) {
	var profilePhoto string
	err := r.db.QueryRow(ctx, `SELECT photo_url FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&profilePhoto)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load user for deletion: %w", err)
	}

	var files []string
	if profilePhoto != "" {
		files = append(files, profilePhoto)
	}

	rows, err := r.db.Query(ctx, `SELECT image_url FROM photo_posts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photo posts for deletion: %w", err)
	}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan photo post image: %w", err)
		}
		files = append(files, url)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo posts: %w", err)
	}

	for _, step := range accountTeardown {
		if _, err := r.db.Exec(ctx, step.sql, userID); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", step.name, err)
		}
	}

	return files, nil
}
