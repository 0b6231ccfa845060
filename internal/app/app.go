// Package app wires configuration into the running components shared by the
// server and the scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/service"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type App struct {
	DB        *sqlx.DB
	Redis     *redis.Client // nil when the schedule cache is disabled
	Publisher events.Publisher
	Service   *service.LoanService

	logger *slog.Logger
}

// Build migrates the schema, opens every connection and constructs the loan
// service. Close releases whatever Build opened, also after a partial failure.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db

	a.Redis, err = newRedisClient(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Publisher, err = newPublisher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = service.NewLoanService(
		repository.NewLoanRepository(db, logger),
		logger,
		service.WithClock(businessClock(cfg.BusinessLocation())),
		service.WithScheduleCache(newScheduleCache(cfg, a.Redis)),
		service.WithPublisher(a.Publisher),
		service.WithDueWindowDays(cfg.Business.DueWindowDays),
		service.WithWorkerPoolSize(cfg.Scheduler.WorkerPoolSize),
	)

	return a, nil
}

// businessClock reads the current time in loc, so "today" follows that
// location's calendar rather than the host's.
func businessClock(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}

func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Error("Failed to close event publisher", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Error("Failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}

func newRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, schedule cache off")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddress(), err)
	}

	logger.Info("Connected to Redis", "addr", cfg.RedisAddress())
	return client, nil
}

func newScheduleCache(cfg *config.Config, client *redis.Client) cache.ScheduleCache {
	if client == nil {
		return cache.NopScheduleCache{}
	}
	return cache.NewRedisScheduleCache(client, cfg.GetScheduleCacheTTL())
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	brokers := cfg.KafkaBrokers()
	if len(brokers) == 0 {
		logger.Info("Kafka brokers not configured, loan events disabled")
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewKafkaPublisher(logger, brokers, cfg.Kafka.LoanEventTopic, cfg.GetKafkaWriteTimeout())
	if err != nil {
		return nil, err
	}

	logger.Info("Kafka loan event publisher ready", "brokers", brokers, "topic", cfg.Kafka.LoanEventTopic)
	return publisher, nil
}
