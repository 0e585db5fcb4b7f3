package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-city-report/internal/api"
	"github.com/mr1hm/go-city-report/internal/config"
	internalgrpc "github.com/mr1hm/go-city-report/internal/grpc"
	"github.com/mr1hm/go-city-report/internal/logging"
	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "db_driver", cfg.DB.Driver)

	if cfg.DB.Driver == repository.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			logging.Fatalf("Failed to create data directory: %v", err)
		}
	}

	db, err := repository.Open(cfg.DB.Driver, cfg.DataSource())
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var grpcServer *internalgrpc.Server
	if cfg.GRPC.Port != 0 {
		grpcServer = internalgrpc.NewServer(db, cfg.GRPC.HealthInterval)
		go func() {
			grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
			if err := grpcServer.Start(grpcAddr); err != nil {
				logging.Fatalf("gRPC server error: %v", err)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxBytes
	router.Use(gin.Recovery())
	router.Use(api.RequestID())
	router.Use(api.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false, // wildcard origins
		MaxAge:           12 * time.Hour,
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RPS))

	handler := api.NewHandler(db, db, api.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		DefaultCenter: models.Coordinates{
			Latitude:  cfg.Map.DefaultLatitude,
			Longitude: cfg.Map.DefaultLongitude,
		},
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	slog.Info("shutdown complete")
}
