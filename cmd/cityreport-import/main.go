package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mr1hm/go-city-report/internal/config"
	"github.com/mr1hm/go-city-report/internal/importer"
	"github.com/mr1hm/go-city-report/internal/logging"
	"github.com/mr1hm/go-city-report/internal/repository"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <reports.geojson>\n", os.Args[0])
		os.Exit(2)
	}
	path := os.Args[1]

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	db, err := repository.Open(cfg.DB.Driver, cfg.DataSource())
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	im := importer.New(db, db, importer.Options{
		Workers:    cfg.Import.Workers,
		BufferSize: cfg.Import.BufferSize,
		MaxBytes:   cfg.Upload.MaxBytes,
	})

	res, err := im.Run(ctx, path)
	if err != nil {
		slog.Error("import failed", "path", path, "error", err)
	}

	fmt.Printf("imported %d of %d features (%d failed, %d skipped)\n",
		res.Imported, res.Total, res.Failed, res.Skipped)

	if err != nil || res.Failed > 0 {
		db.Close()
		os.Exit(1)
	}
}
