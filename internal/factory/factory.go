package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/kidfeed/internal/api/sse"
	"github.com/mcoot/kidfeed/internal/dependencies/clock"
	"github.com/mcoot/kidfeed/internal/services/app"
	"github.com/mcoot/kidfeed/internal/services/auth"
	"github.com/mcoot/kidfeed/internal/services/classifier"
	"github.com/mcoot/kidfeed/internal/services/credential"
	"github.com/mcoot/kidfeed/internal/services/policy"
	"github.com/mcoot/kidfeed/internal/services/session"
	"github.com/mcoot/kidfeed/internal/storage"
	"github.com/mcoot/kidfeed/internal/storage/memory"
	redisstorage "github.com/mcoot/kidfeed/internal/storage/redis"
	"github.com/mcoot/kidfeed/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQL    = "sql"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock       clock.Clock
	Credentials credential.HashVerifier

	// Services
	Policies    *policy.Store
	Tracker     *session.Tracker
	Classifier  *classifier.Classifier
	AuthService *auth.Service
	Controller  *app.Controller

	// Change notification
	Hub         *sse.Hub
	Broadcaster *sse.Broadcaster

	unsubscribe func()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sql")
	SQLConfig *sqlstore.Config
	// BcryptCost for passwords and PINs; zero means bcrypt's default
	BcryptCost int
	// AppConfig holds controller settings; zero fields take defaults
	AppConfig app.Config
	// BlockList replaces the content classifier's default words when non-empty
	BlockList []string
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cls := classifier.Default()
	if len(cfg.BlockList) > 0 {
		cls = classifier.New(cfg.BlockList)
	}

	return newWithDependencies(store, clock.New(), credential.NewBcrypt(cfg.BcryptCost), cls, cfg.AppConfig, logger), nil
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		return redisStore, nil
	case StorageTypeSQL:
		if cfg.SQLConfig == nil {
			return nil, errors.New("SQLConfig required when StorageType is sql")
		}
		sqlStore, err := sqlstore.Open(ctx, *cfg.SQLConfig)
		if err != nil {
			return nil, err
		}
		return sqlStore, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sql'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	creds credential.HashVerifier,
	cls *classifier.Classifier,
	appCfg app.Config,
	logger *slog.Logger,
) *App {
	policies := policy.New(store, clk, logger.With(slog.String("component", "policy")))
	tracker := session.NewTracker(clk)
	authService := auth.New(store, clk, creds, policies, logger.With(slog.String("component", "auth")))
	controller := app.NewController(store, authService, policies, tracker, cls, creds, clk,
		logger.With(slog.String("component", "app")), appCfg)

	hub := sse.NewHub(logger)
	go hub.Run()
	broadcaster := sse.NewBroadcaster(hub, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Credentials: creds,
		Policies:    policies,
		Tracker:     tracker,
		Classifier:  cls,
		AuthService: authService,
		Controller:  controller,
		Hub:         hub,
		Broadcaster: broadcaster,
		unsubscribe: broadcaster.Attach(store),
	}
}

// Close stops event delivery and releases the storage backend
func (a *App) Close() error {
	a.unsubscribe()
	a.Hub.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}
