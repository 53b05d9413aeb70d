package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"safedrive/config"
	"safedrive/frontend"
	qhttp "safedrive/http"
	"safedrive/logging"
	"safedrive/ml"
)

func main() {
	configName := flag.String("config", "config.yaml", "config file, looked up in . and ..")
	flag.Parse()

	// 1. Load config
	cfg, configPath, err := config.Resolve(*configName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("config loaded", zap.String("path", configPath))

	// 3. Load model bundle
	bundle, loadErr := ml.LoadBundle(cfg.Model.Path)
	if loadErr != nil {
		logger.Error("model bundle not loaded", zap.String("path", cfg.Model.Path), zap.Error(loadErr))
		if cfg.Model.ExitOnLoadError {
			logger.Sync()
			os.Exit(1)
		}
	} else {
		info := bundle.Info()
		logger.Info("model bundle loaded",
			zap.String("path", info.Path),
			zap.Strings("models", info.Models),
			zap.Strings("columns", info.Columns))
	}

	fe, err := frontend.New(bundle, loadErr, frontend.Options{
		ArtifactPath: cfg.Model.Path,
		CacheSize:    cfg.Model.CacheSize,
		Logger:       logger.Named("frontend"),
	})
	if err != nil {
		logger.Fatal("Failed to build frontend", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Watch the artifact
	if cfg.Model.Watch && loadErr == nil {
		if err := ml.WatchArtifact(ctx, cfg.Model.Path, logger.Named("watch"), nil); err != nil {
			logger.Warn("artifact watch disabled", zap.Error(err))
		}
	}

	// 5. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		Title:          cfg.Frontend.Title,
		Language:       cfg.Frontend.Language,
	}, fe, logger.Named("http"))
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	// 6. Handle graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
