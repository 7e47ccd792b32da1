package cmd

import (
	"context"
	"fmt"
	"os"

	"community-backend/internal/backup"
	"community-backend/internal/config"
	"community-backend/internal/repository"
	"community-backend/internal/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const configPath = "config.yaml"

// loadConfig loads configuration and configures the global logger
func loadConfig() *config.Config {
	path := configPath
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)
	return cfg
}

// openDatabase connects, pings and migrates the database
func openDatabase(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	return db
}

// newS3Client builds the S3 client when any component needs one
func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.Storage.Driver != "s3" && !cfg.Backup.UploadS3 {
		return nil, nil
	}
	if cfg.AWS.S3Bucket == "" {
		return nil, fmt.Errorf("aws.s3_bucket is required for S3 storage or backup upload")
	}
	return storage.NewS3Client(ctx, cfg.AWS)
}

// newFileStore selects the upload backend
func newFileStore(cfg *config.Config, client *s3.Client) (*storage.Files, *storage.Local, error) {
	maxBytes := cfg.Storage.MaxUploadBytes()
	if cfg.Storage.Driver == "s3" {
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Using S3 upload storage")
		backend := storage.NewS3(client, cfg.AWS.S3Bucket, cfg.AWS.Region, cfg.Storage.PublicURL)
		return storage.New(backend, maxBytes), nil, nil
	}

	local, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("dir", local.Dir()).Msg("Using local upload storage")
	return storage.New(local, maxBytes), local, nil
}

// newBackupService wires snapshots with the optional S3 upload
func newBackupService(cfg *config.Config, db *pgxpool.Pool, client *s3.Client) *backup.Service {
	var uploader backup.Uploader
	if cfg.Backup.UploadS3 && client != nil {
		uploader = backup.NewS3Uploader(client, cfg.AWS.S3Bucket)
	}
	return backup.NewService(db, repository.Tables, cfg.Backup.Dir, cfg.Backup.Prefix, cfg.Backup.Keep, uploader)
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
