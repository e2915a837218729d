// Package bootstrap initializes the shared runtime for every binary.
package bootstrap

import (
	"context"
	"fmt"

	"socialapp/internal/cache"
	"socialapp/internal/config"
	"socialapp/internal/database"
	"socialapp/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is the set of process-wide resources a binary runs on.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// Options control runtime initialization behavior.
type Options struct {
	ServiceName string
	// SkipSchema connects without applying migrations.
	SkipSchema bool
}

// InitRuntime sets up tracing, connects to the database and Redis. A nil
// Redis client means caching is disabled.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "socialapp-api"
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return &Runtime{
		DB:              db,
		Redis:           cache.GetClient(),
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close flushes traces and closes the database and Redis connections.
func (r *Runtime) Close(ctx context.Context) error {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return r.shutdownTracing(ctx)
}

// ShutdownTracing flushes pending spans without touching the connections.
func (r *Runtime) ShutdownTracing(ctx context.Context) error {
	return r.shutdownTracing(ctx)
}
