package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/tally/app/handlers"
	"github.com/amirphl/tally/app/router"
	businessflow "github.com/amirphl/tally/business_flow"
	"github.com/amirphl/tally/config"
	"github.com/amirphl/tally/repository"
	"github.com/amirphl/tally/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	stopFuncs []func()
}

func (a *Application) close() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
}

// initializeApplication initializes the main application components
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig) (*Application, error) {
	app := &Application{}

	db, err := initializeDatabase(cfg.Database, cfg.Logging)
	if err != nil {
		return nil, err
	}
	app.stopFuncs = append(app.stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		app.close()
		return nil, err
	}

	checks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, func() { rc.Close() })
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(ctx, rc, cfg.Cache.CleanupInterval))
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	counterRepo := repository.NewCounterRepository(db)
	counterCache := businessflow.NewCounterCache(cfg.Cache, rc)
	counterFlow := businessflow.NewCounterFlow(counterRepo, counterCache)
	counterHandler := handlers.NewCounterHandler(counterFlow, cfg.Deployment.Version)

	app.router = router.NewFiberRouter(cfg, counterHandler, checks)
	return app, nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logging config.LoggingConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: newGormLogger(cfg, logging),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), utils.HealthCheckTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// newGormLogger routes ORM logs to the application log sink
func newGormLogger(db config.DatabaseConfig, logging config.LoggingConfig) logger.Interface {
	slow := time.Duration(0)
	if db.SlowQueryLog {
		slow = db.SlowQueryTime
	}
	return logger.New(log.New(log.Writer(), "", log.LstdFlags|log.LUTC), logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormLogLevel(logging.Level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// initializeCache initializes the Redis client and verifies connectivity.
// It returns nil when Redis is not the configured cache provider.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, utils.HealthCheckTimeout)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}
