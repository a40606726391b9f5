package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/kidfeed/internal/api"
	"github.com/mcoot/kidfeed/internal/config"
	"github.com/mcoot/kidfeed/internal/factory"
	"github.com/mcoot/kidfeed/internal/services/app"
	redisstorage "github.com/mcoot/kidfeed/internal/storage/redis"
	"github.com/mcoot/kidfeed/internal/storage/sqlstore"
)

func main() {
	cfg, err := config.Load(config.Options{ConfigFile: os.Getenv("KIDFEED_CONFIG")})
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := factory.New(ctx, factoryConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Controller: application.Controller,
		Hub:        application.Hub,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	server := api.NewServer(router, serverConfig, logger)

	// Session budgets are enforced even when nobody is making requests
	go application.Controller.RunTicker(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
	)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// The hub holds event streams open; close it first so Shutdown can drain
		application.Hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

func factoryConfig(cfg *config.Config, logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		BcryptCost:  cfg.Auth.BcryptCost,
		AppConfig: app.Config{
			TokenTTL:     cfg.Session.TokenTTL,
			TickInterval: cfg.Session.TickInterval,
		},
		BlockList: cfg.Classifier.BlockList,
	}

	switch cfg.Storage.Type {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.Redis.URL
		if cfg.Storage.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Storage.Redis.PoolSize
		}
		fc.RedisConfig = &redisCfg
	case factory.StorageTypeSQL:
		fc.SQLConfig = &sqlstore.Config{
			Driver:       cfg.Storage.SQL.Driver,
			DSN:          cfg.Storage.SQL.DSN,
			MaxOpenConns: cfg.Storage.SQL.MaxOpenConns,
		}
	}
	return fc
}
