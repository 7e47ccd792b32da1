package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PhotoRepository handles database operations for photo posts
type PhotoRepository struct {
	db DBTX
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db DBTX) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create creates a new photo post
func (r *PhotoRepository) Create(ctx context.Context, photo *models.PhotoPost) error {
	query := `
		INSERT INTO photo_posts (user_id, caption, image_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, photo.UserID, photo.Caption, photo.ImageURL).
		Scan(&photo.ID, &photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo post: %w", err)
	}
	return nil
}

// GetByID retrieves a photo post by ID
func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*models.PhotoPost, error) {
	query := `
		SELECT id, user_id, caption, image_url, created_at
		FROM photo_posts
		WHERE id = $1
	`
	var photo models.PhotoPost
	err := r.db.QueryRow(ctx, query, id).Scan(
		&photo.ID, &photo.UserID, &photo.Caption, &photo.ImageURL, &photo.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("photo post not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get photo post: %w", err)
	}
	return &photo, nil
}

// List returns the gallery, newest first, with like counts relative to viewerID
func (r *PhotoRepository) List(ctx context.Context, viewerID int64) ([]models.PhotoPost, error) {
	query := `
		SELECT pp.id, pp.user_id, u.name, u.photo_url, pp.caption, pp.image_url, pp.created_at,
		       (SELECT COUNT(*) FROM photo_post_likes ppl WHERE ppl.photo_post_id = pp.id),
		       EXISTS(SELECT 1 FROM photo_post_likes mpl WHERE mpl.photo_post_id = pp.id AND mpl.user_id = $1)
		FROM photo_posts pp
		JOIN users u ON u.id = pp.user_id
		ORDER BY pp.id DESC
	`
	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo posts: %w", err)
	}
	defer rows.Close()

	var photos []models.PhotoPost
	for rows.Next() {
		var p models.PhotoPost
		err := rows.Scan(
			&p.ID, &p.UserID, &p.AuthorName, &p.AuthorURL, &p.Caption, &p.ImageURL, &p.CreatedAt,
			&p.LikesCount, &p.LikedByMe,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo post: %w", err)
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo posts: %w", err)
	}

	return photos, nil
}

// Comments returns all photo comments in id order
func (r *PhotoRepository) Comments(ctx context.Context) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.photo_post_id, c.user_id, u.name, c.content, c.created_at
		FROM photo_post_comments c
		JOIN users u ON u.id = c.user_id
		ORDER BY c.id ASC
	`
	return queryComments(ctx, r.db, query)
}

// AddComment inserts a comment on a photo post
func (r *PhotoRepository) AddComment(ctx context.Context, photoID, userID int64, content string) (*models.Comment, error) {
	c := models.Comment{ParentID: photoID, UserID: userID, Content: content}
	err := r.db.QueryRow(ctx,
		`INSERT INTO photo_post_comments (photo_post_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		photoID, userID, content).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo comment: %w", err)
	}
	return &c, nil
}

// ToggleLike adds or removes the like of userID on a photo post and
// reports whether the photo is liked afterwards
func (r *PhotoRepository) ToggleLike(ctx context.Context, photoID, userID int64) (bool, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM photo_post_likes WHERE photo_post_id = $1 AND user_id = $2`, photoID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove photo like: %w", err)
	}
	if result.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO photo_post_likes (photo_post_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (photo_post_id, user_id) DO NOTHING`, photoID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add photo like: %w", err)
	}
	return true, nil
}

// DeleteCascade removes a photo post with its comments and likes
func (r *PhotoRepository) DeleteCascade(ctx context.Context, photoID int64) error {
	statements := []string{
		`DELETE FROM photo_post_comments WHERE photo_post_id = $1`,
		`DELETE FROM photo_post_likes WHERE photo_post_id = $1`,
		`DELETE FROM photo_posts WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt, photoID); err != nil {
			return fmt.Errorf("failed to delete photo post %d: %w", photoID, err)
		}
	}
	return nil
}
