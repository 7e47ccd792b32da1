package services

import (
	"context"
	"io"
	"strings"

	"community-backend/internal/models"
	"community-backend/internal/repository"
	"community-backend/internal/storage"
)

// PhotoService handles photo posts in the gallery
type PhotoService struct {
	store *repository.Store
	files *storage.Files
}

// NewPhotoService creates a new photo service
func NewPhotoService(store *repository.Store, files *storage.Files) *PhotoService {
	return &PhotoService{store: store, files: files}
}

// CreatePhotoPost uploads an image and publishes it with an optional caption
func (s *PhotoService) CreatePhotoPost(ctx context.Context, userID int64, caption, filename string, image io.Reader) (*models.PhotoPost, error) {
	ref, err := s.files.SaveGalleryImage(ctx, filename, readerOrEmpty(image))
	if err != nil {
		return nil, fromStorage(err)
	}

	photo := &models.PhotoPost{UserID: userID, ImageURL: ref}
	if c := strings.TrimSpace(caption); c != "" {
		photo.Caption = &c
	}

	if err := s.store.Photos.Create(ctx, photo); err != nil {
		s.files.Delete(ctx, ref)
		return nil, err
	}
	return photo, nil
}

// ListPhotos returns the gallery, newest first, with comments
func (s *PhotoService) ListPhotos(ctx context.Context, viewerID int64) ([]models.PhotoPost, error) {
	photos, err := s.store.Photos.List(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Photos.Comments(ctx)
	if err != nil {
		return nil, err
	}

	byPhoto := groupComments(comments)
	for i := range photos {
		photos[i].Comments = byPhoto[photos[i].ID]
	}
	return photos, nil
}

// ToggleLike likes a photo post or removes the like
func (s *PhotoService) ToggleLike(ctx context.Context, photoID, userID int64) (bool, error) {
	if _, err := s.get(ctx, photoID); err != nil {
		return false, err
	}
	return s.store.Photos.ToggleLike(ctx, photoID, userID)
}

// AddComment comments on a photo post
func (s *PhotoService) AddComment(ctx context.Context, photoID, userID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if _, err := s.get(ctx, photoID); err != nil {
		return nil, err
	}
	return s.store.Photos.AddComment(ctx, photoID, userID, content)
}

// DeletePhotoPost removes a photo post of its owner. The image file is
// removed after the rows are gone.
func (s *PhotoService) DeletePhotoPost(ctx context.Context, photoID, actingUserID int64) error {
	var imageURL string
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		photo, err := r.Photos.GetByID(ctx, photoID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if photo.UserID != actingUserID {
			return ErrForbidden
		}
		imageURL = photo.ImageURL
		return r.Photos.DeleteCascade(ctx, photoID)
	})
	if err != nil {
		return err
	}

	s.files.Delete(ctx, imageURL)
	return nil
}

func (s *PhotoService) get(ctx context.Context, photoID int64) (*models.PhotoPost, error) {
	photo, err := s.store.Photos.GetByID(ctx, photoID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return photo, nil
}
