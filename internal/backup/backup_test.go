package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSource map[string]string

func (f fakeSource) CopyTable(_ context.Context, table string, w io.Writer) error {
	data, ok := f[table]
	if !ok {
		return errors.New("no such table")
	}
	_, err := io.WriteString(w, data)
	return err
}

func touch(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestFileName(t *testing.T) {
	got := FileName("community", time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC))
	if got != "community_2024-03-09_07-05-01.tar.gz" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestWriteSnapshotContainsEveryTable(t *testing.T) {
	dir := t.TempDir()
	src := fakeSource{
		"users": "id,name\n1,Ana\n",
		"posts": "id,content\n",
	}

	path, err := WriteSnapshot(context.Background(), src, []string{"users", "posts"}, dir, "community_x.tar.gz")
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)

	got := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(tr)
		got[hdr.Name] = string(data)
	}

	if got["users.csv"] != src["users"] || got["posts.csv"] != src["posts"] || len(got) != 2 {
		t.Fatalf("archive contents = %v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestWriteSnapshotFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteSnapshot(context.Background(), fakeSource{}, []string{"missing"}, dir, "community_x.tar.gz")
	if err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"community_a.tar.gz", "community_b.tar.gz", "community_c.tar.gz", "community_d.tar.gz"} {
		touch(t, dir, name, base.Add(time.Duration(i)*time.Minute))
	}
	touch(t, dir, "other_a.tar.gz", base)
	touch(t, dir, "community_notes.txt", base)

	removed, err := Prune(dir, "community", 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %v", removed)
	}

	for _, name := range []string{"community_c.tar.gz", "community_d.tar.gz", "other_a.tar.gz", "community_notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s should remain: %v", name, err)
		}
	}
	for _, name := range []string{"community_a.tar.gz", "community_b.tar.gz"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s should be removed", name)
		}
	}
}

func TestPruneRejectsKeepBelowOne(t *testing.T) {
	if _, err := Prune(t.TempDir(), "community", 0); err == nil {
		t.Fatal("expected error for keep 0")
	}
}

func TestPruneFewerThanKeep(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "community_a.tar.gz", time.Now())
	removed, err := Prune(dir, "community", 15)
	if err != nil || len(removed) != 0 {
		t.Fatalf("Prune = %v, %v", removed, err)
	}
}

func TestListSortedByNameDesc(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "community_2024-01-01_00-00-00.tar.gz", time.Now())
	touch(t, dir, "community_2024-02-01_00-00-00.tar.gz", time.Now().Add(-time.Hour))

	infos, err := List(dir, "community")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "community_2024-02-01_00-00-00.tar.gz" {
		t.Fatalf("List = %+v", infos)
	}
	if infos[0].SizeKB != 1 {
		t.Fatalf("tiny file size = %d KB, want 1", infos[0].SizeKB)
	}

	infos, err = List(filepath.Join(dir, "missing"), "community")
	if err != nil || len(infos) != 0 {
		t.Fatalf("missing dir: %v, %v", infos, err)
	}
}

func TestOpenRejectsUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "community_a.tar.gz", time.Now())

	for _, name := range []string{"", "..", "../community_a.tar.gz", "sub/community_a.tar.gz", `a\b.tar.gz`, "community_a.txt"} {
		if _, err := Open(dir, name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Open(%q) = %v, want ErrInvalidName", name, err)
		}
	}

	f, err := Open(dir, "community_a.tar.gz")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Close()
}
