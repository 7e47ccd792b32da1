package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.MaxUploadMB != 5 {
		t.Errorf("max upload = %d, want 5", cfg.Storage.MaxUploadMB)
	}
	if cfg.Backup.Keep != 15 {
		t.Errorf("backup keep = %d, want 15", cfg.Backup.Keep)
	}
	if got := cfg.Storage.MaxUploadBytes(); got != 5*1024*1024 {
		t.Errorf("max upload bytes = %d", got)
	}
}

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  host: 127.0.0.1
  port: 9000
database:
  host: db
  port: 5432
  user: app
  password: secret
  dbname: community
  sslmode: disable
backup:
  keep: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BACKUP_KEEP", "7")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Backup.Keep != 7 {
		t.Errorf("backup keep = %d, want env override 7", cfg.Backup.Keep)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("jwt secret = %q", cfg.JWT.Secret)
	}
	want := "host=db port=5432 user=app password=secret dbname=community sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestLoadRejectsInvalidIntegerEnv(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "lots")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error for non-numeric MAX_UPLOAD_MB")
	}
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u:p@h/db", Host: "ignored"}
	if c.DSN() != "postgres://u:p@h/db" {
		t.Errorf("DSN = %q", c.DSN())
	}
}
