package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PostRepository handles database operations for text posts, their comments and likes
type PostRepository struct {
	db DBTX
}

// NewPostRepository creates a new post repository
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a post
func (r *PostRepository) Create(ctx context.Context, userID int64, content string) (*models.Post, error) {
	post := models.Post{UserID: userID, Content: content}
	err := r.db.QueryRow(ctx,
		`INSERT INTO posts (user_id, content) VALUES ($1, $2) RETURNING id, created_at`,
		userID, content).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return &post, nil
}

// Owner returns the author of a post
func (r *PostRepository) Owner(ctx context.Context, postID int64) (int64, error) {
	var owner int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("post not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get post owner: %w", err)
	}
	return owner, nil
}

// List returns the feed, newest first, with like counts relative to viewerID
func (r *PostRepository) List(ctx context.Context, viewerID int64) ([]models.Post, error) {
	query := `
		SELECT p.id, p.user_id, u.name, u.church || ' - ' || u.city || ', ' || u.country, u.photo_url,
		       p.content, p.created_at,
		       (SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = p.id),
		       EXISTS(SELECT 1 FROM post_likes mpl WHERE mpl.post_id = p.id AND mpl.user_id = $1)
		FROM posts p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.id DESC
	`
	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.AuthorName, &p.AuthorInfo, &p.AuthorURL,
			&p.Content, &p.CreatedAt, &p.LikesCount, &p.LikedByMe); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// ListByUser returns the posts of one author with like counts, newest first
func (r *PostRepository) ListByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	query := `
		SELECT p.id, p.user_id, p.content, p.created_at,
		       (SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = p.id)
		FROM posts p
		WHERE p.user_id = $1
		ORDER BY p.id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.LikesCount); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// Comments returns all post comments in id order
func (r *PostRepository) Comments(ctx context.Context) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.user_id, u.name, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		ORDER BY c.id ASC
	`
	return queryComments(ctx, r.db, query)
}

// AddComment inserts a comment on a post
func (r *PostRepository) AddComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error) {
	c := models.Comment{ParentID: postID, UserID: userID, Content: content}
	err := r.db.QueryRow(ctx,
		`INSERT INTO comments (post_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		postID, userID, content).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &c, nil
}

// CommentExists checks whether a comment exists
func (r *PostRepository) CommentExists(ctx context.Context, commentID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check comment existence: %w", err)
	}
	return exists, nil
}

// ToggleLike adds the like of userID on a post, or removes it if present.
// It reports whether the post is liked afterwards.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID int64) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove like: %w", err)
	}
	if result.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add like: %w", err)
	}
	return true, nil
}

// DeleteCascade removes a post with its comments, likes and reports. The
// report keepReportID, if non-zero, is left in place so the caller can
// resolve it.
func (r *PostRepository) DeleteCascade(ctx context.Context, postID, keepReportID int64) error {
	statements := []string{
		`DELETE FROM reports WHERE target_type = 'comment' AND id <> $2
		   AND target_id IN (SELECT id FROM comments WHERE post_id = $1)`,
		`DELETE FROM comments WHERE post_id = $1`,
		`DELETE FROM post_likes WHERE post_id = $1`,
		`DELETE FROM reports WHERE target_type = 'post' AND target_id = $1 AND id <> $2`,
		`DELETE FROM posts WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt, postID, keepReportID); err != nil {
			return fmt.Errorf("failed to delete post %d: %w", postID, err)
		}
	}
	return nil
}

// DeleteCommentCascade removes a comment with the reports pointing at it,
// except keepReportID
func (r *PostRepository) DeleteCommentCascade(ctx context.Context, commentID, keepReportID int64) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM reports WHERE target_type = 'comment' AND target_id = $1 AND id <> $2`,
		commentID, keepReportID); err != nil {
		return fmt.Errorf("failed to delete comment reports: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func queryComments(ctx context.Context, db DBTX, query string, args ...any) ([]models.Comment, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ParentID, &c.UserID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}
