package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	timeLayout = "2006-01-02_15-04-05"
	extension  = ".tar.gz"
)

// ErrInvalidName is returned by Open for names that could leave the backup directory
var ErrInvalidName = errors.New("invalid backup name")

// Info describes one snapshot file
type Info struct {
	Name       string    `json:"name"`
	SizeKB     int64     `json:"size_kb"`
	ModifiedAt time.Time `json:"modified_at"`
}

// TableSource streams one table as CSV
type TableSource interface {
	CopyTable(ctx context.Context, table string, w io.Writer) error
}

// Uploader copies a finished snapshot off-site
type Uploader interface {
	Upload(ctx context.Context, name, path string) error
}

// Service creates and rotates snapshots of the application tables
type Service struct {
	pool     *pgxpool.Pool
	tables   []string
	dir      string
	prefix   string
	keep     int
	uploader Uploader
	now      func() time.Time
}

// NewService creates a backup service. uploader may be nil.
func NewService(pool *pgxpool.Pool, tables []string, dir, prefix string, keep int, uploader Uploader) *Service {
	return &Service{
		pool:     pool,
		tables:   tables,
		dir:      dir,
		prefix:   prefix,
		keep:     keep,
		uploader: uploader,
		now:      time.Now,
	}
}

// Dir returns the snapshot directory
func (s *Service) Dir() string {
	return s.dir
}

// Create writes a new snapshot, uploads it when configured and prunes old ones
func (s *Service) Create(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	name := FileName(s.prefix, s.now())
	path, err := WriteSnapshot(ctx, txSource{tx: tx}, s.tables, s.dir, name)
	if err != nil {
		return nil, err
	}

	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, name, path); err != nil {
			log.Error().Err(err).Str("backup", name).Msg("Failed to upload backup")
		}
	}

	removed, err := Prune(s.dir, s.prefix, s.keep)
	if err != nil {
		return nil, err
	}
	for _, p := range removed {
		log.Info().Str("backup", filepath.Base(p)).Msg("Old backup removed")
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info := toInfo(st)
	return &info, nil
}

// List returns the snapshots in the service directory
func (s *Service) List() ([]Info, error) {
	return List(s.dir, s.prefix)
}

// Open opens a snapshot in the service directory for download
func (s *Service) Open(name string) (*os.File, error) {
	return Open(s.dir, name)
}

// FileName returns the snapshot name for t
func FileName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(timeLayout) + extension
}

// WriteSnapshot writes one CSV entry per table into dir/name. The archive is
// assembled under a temporary name and renamed once complete.
func WriteSnapshot(ctx context.Context, src TableSource, tables []string, dir, name string) (string, error) {
	final := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeArchive(ctx, src, tables, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}
	return final, nil
}

func writeArchive(ctx context.Context, src TableSource, tables []string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	now := time.Now()

	var buf bytes.Buffer
	for _, table := range tables {
		buf.Reset()
		if err := src.CopyTable(ctx, table, &buf); err != nil {
			return fmt.Errorf("failed to copy table %s: %w", table, err)
		}
		hdr := &tar.Header{
			Name:    table + ".csv",
			Mode:    0o644,
			Size:    int64(buf.Len()),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write archive header: %w", err)
		}
		if _, err := tw.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write archive entry: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return nil
}

type txSource struct {
	tx pgx.Tx
}

func (s txSource) CopyTable(ctx context.Context, table string, w io.Writer) error {
	sql := "COPY " + pgx.Identifier{table}.Sanitize() + " TO STDOUT WITH (FORMAT csv, HEADER true)"
	_, err := s.tx.Conn().PgConn().CopyTo(ctx, w, sql)
	return err
}

// Prune keeps the keep most recently modified snapshots and returns the
// paths it removed
func Prune(dir, prefix string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	entries, err := snapshots(dir, prefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime().After(entries[j].ModTime())
	})

	var removed []string
	for _, e := range entries[min(keep, len(entries)):] {
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// List returns the snapshots in dir sorted by name, newest first
func List(dir, prefix string) ([]Info, error) {
	entries, err := snapshots(dir, prefix)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, toInfo(e))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name > infos[j].Name })
	return infos, nil
}

// Open opens a snapshot by bare file name
func Open(dir, name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		name == "." || name == ".." || !strings.HasSuffix(name, extension) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	return f, nil
}

func snapshots(dir, prefix string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var out []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix+"_") || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		out = append(out, info)
	}
	return out, nil
}

func toInfo(fi os.FileInfo) Info {
	return Info{
		Name:       fi.Name(),
		SizeKB:     max(1, fi.Size()/1024),
		ModifiedAt: fi.ModTime(),
	}
}
