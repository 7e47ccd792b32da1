package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores files on disk below dir and serves them under publicURL
type Local struct {
	dir       string
	publicURL string
}

// NewLocal creates a disk backend, creating dir if needed
func NewLocal(dir, publicURL string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chat"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the root directory served for public references
func (l *Local) Dir() string {
	return l.dir
}

// Put writes data to dir/key
func (l *Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	target := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return l.publicURL + "/" + key, nil
}

// Remove deletes the file behind a reference produced by Put
func (l *Local) Remove(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, l.publicURL+"/")
	if !ok {
		return fmt.Errorf("reference %q is not served by this store", ref)
	}
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return fmt.Errorf("invalid reference %q", ref)
	}
	if err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(clean))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
