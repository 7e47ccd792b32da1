package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backend persists uploaded bytes under a key and returns a public reference
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, ref string) error
}

// ValidationError is returned for uploads rejected by the allow-list or size limit
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Files validates uploads and stores them through a Backend
type Files struct {
	backend  Backend
	maxBytes int64
}

// New creates a file store enforcing maxBytes per upload
func New(backend Backend, maxBytes int64) *Files {
	return &Files{backend: backend, maxBytes: maxBytes}
}

// MaxBytes returns the per-upload size limit
func (f *Files) MaxBytes() int64 {
	return f.maxBytes
}

// SaveProfilePhoto stores a profile picture
func (f *Files) SaveProfilePhoto(ctx context.Context, filename string, r io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", &ValidationError{Message: "a profile photo is required"}
	}
	return f.saveImage(ctx, "", filename, r)
}

// SaveGalleryImage stores the image of a photo post
func (f *Files) SaveGalleryImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", &ValidationError{Message: "select an image to publish"}
	}
	return f.saveImage(ctx, "gallery_", filename, r)
}

// SaveChatFile stores a chat attachment of any type. It returns the public
// reference and the trimmed original file name.
func (f *Files) SaveChatFile(ctx context.Context, filename string, r io.Reader) (string, string, error) {
	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", "", &ValidationError{Message: "invalid file"}
	}
	data, err := f.read(r)
	if err != nil {
		return "", "", err
	}
	key := "chat/" + uuid.New().String() + strings.ToLower(filepath.Ext(name))
	ref, err := f.backend.Put(ctx, key, data, http.DetectContentType(data))
	if err != nil {
		return "", "", fmt.Errorf("failed to store chat file: %w", err)
	}
	return ref, name, nil
}

// Delete removes a stored file. Failures are logged and otherwise ignored.
func (f *Files) Delete(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := f.backend.Remove(ctx, ref); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Failed to delete stored file")
	}
}

func (f *Files) saveImage(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", &ValidationError{Message: "invalid image format, use JPG, PNG or WEBP"}
	}
	data, err := f.read(r)
	if err != nil {
		return "", err
	}
	key := prefix + uuid.New().String() + ext
	ref, err := f.backend.Put(ctx, key, data, http.DetectContentType(data))
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return ref, nil
}

// read loads at most maxBytes+1 bytes so oversized uploads are detected
// without buffering them whole
func (f *Files) read(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > f.maxBytes {
		return nil, &ValidationError{
			Message: fmt.Sprintf("file too large, limit is %dMB", f.maxBytes/(1024*1024)),
		}
	}
	return buf.Bytes(), nil
}
