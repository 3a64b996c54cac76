package main

import (
	"context"
	"flag"

	appcontext "github.com/SeakMengs/AutoSign/internal/app_context"
	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/database"
	"github.com/SeakMengs/AutoSign/internal/env"
	filestorage "github.com/SeakMengs/AutoSign/internal/file_storage"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
)

// this function run before main
func init() {
	env.LoadEnv(".env")
}

// Run from cron. Moves PENDING documents past their expiry to EXPIRED.
func main() {
	limit := flag.Int("limit", 500, "maximum documents to expire in one run")
	flag.Parse()

	cfg := config.GetConfig()
	logger := util.NewLogger(cfg.ENV)

	db, err := database.ConnectReturnGormDB(cfg.DB)
	if err != nil {
		logger.Panic(err)
	}

	sqlDb, err := db.DB()
	if err != nil {
		logger.Panic(err)
	}
	defer sqlDb.Close()

	s3, err := filestorage.NewMinioClient(&cfg.Minio)
	if err != nil {
		logger.Panic(err)
	}
	storage := filestorage.NewStorage(s3, cfg.Minio.BUCKET, cfg.Minio.PresignExpiry, logger)

	repo := repository.NewRepository(db, logger)
	engine := appcontext.NewWorkflow(&cfg, logger, repo, storage)

	n, err := engine.ExpireOverdue(context.Background(), *limit)
	if err != nil {
		logger.Errorf("Some documents could not be expired: %v", err)
	}
	logger.Infof("Expired %d document(s)", n)
}
