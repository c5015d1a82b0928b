package app

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/realtime"
)

// AppContext holds shared dependencies (config, DB, Redis, logger and the
// process-local connection registry).
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Registry   *realtime.Registry
}

// New creates a new AppContext with an empty connection registry.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Registry:   realtime.NewRegistry(),
	}
}

// PingDB reports whether the database answers.
func (a *AppContext) PingDB(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pools. Live connections are invalidated
// first so their sessions wind down.
func (a *AppContext) Close() {
	a.Registry.CloseAll()
	if a.RedisCache != nil {
		if err := a.RedisCache.Close(); err != nil {
			a.Logger.Warn("redis close failed", "err", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Logger.Warn("db close failed", "err", err)
		}
	}
}
