package admin

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/loader"
	"github.com/cloo-solutions/vocabtool/internal/registry"
	"github.com/cloo-solutions/vocabtool/internal/storage"
)

// setupLogging routes component logs to stderr, at debug level when asked.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func openRegistry(cfg *config.Config) (*registry.Registry, error) {
	systems, err := registry.LoadSystems(cfg.RegistryFile, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	reg, err := registry.New(systems)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return reg, nil
}

// newLoader builds a loader that can read s3:// sources when S3 is configured.
func newLoader(ctx context.Context, cfg *config.Config) (*loader.Loader, error) {
	var store loader.ObjectStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		log.Printf("object storage configured (default bucket '%s')", cfg.S3Bucket)
		store = s3Client
	}
	return loader.New(loader.NewSources(store)), nil
}
