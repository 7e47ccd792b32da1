package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunBackup writes one snapshot, prunes old ones and exits. Meant for cron.
func RunBackup() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db := openDatabase(ctx, cfg)
	defer db.Close()

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 client")
	}

	info, err := newBackupService(cfg, db, s3Client).Create(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	log.Info().
		Str("name", info.Name).
		Int64("size_kb", info.SizeKB).
		Msg("Backup complete")
}
