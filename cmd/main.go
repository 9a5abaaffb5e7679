package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"heartdx/config"
	"heartdx/db"
	"heartdx/diagnosis"
	qhttp "heartdx/http"
	"heartdx/logger"
	"heartdx/monitoring"
	"heartdx/registry"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Look for config in root even if run from cmd/
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		*configPath = filepath.Join("..", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.L()

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		lg.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()
	lg.Info("database initialized", zap.String("path", cfg.Database.Path))

	reg := registry.New(registry.Paths{
		ModelType:  cfg.Model.Type,
		ModelPath:  cfg.Model.Path,
		ScalerPath: cfg.Model.ScalerPath,
		SchemaPath: cfg.Model.SchemaPath,
	})
	if err := reg.Load(); err != nil {
		lg.Fatal("failed to load model artifacts", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Model.Watch {
		go func() {
			if err := reg.Watch(ctx); err != nil && ctx.Err() == nil {
				lg.Error("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	hub := monitoring.NewHub()
	go hub.Run()
	defer hub.Stop()

	metrics := monitoring.NewDiagnosisMetrics()
	svc, err := diagnosis.NewService(reg, diagnosis.Options{
		Defaults:  cfg.Features.Defaults,
		CacheSize: cfg.Cache.Size,
		Recorder:  store,
		Publisher: hub,
		Metrics:   metrics,
	})
	if err != nil {
		lg.Fatal("failed to create diagnosis service", zap.Error(err))
	}

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, qhttp.NewAPI(svc, store, hub, metrics, cfg.Report.Locale))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server failed", zap.Error(err))
		}
	}
	lg.Info("shutting down")

	if err := server.Stop(); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	lg.Info("exiting")
}
