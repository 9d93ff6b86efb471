// Package app wires configuration, stores, services and handlers into a fiber app.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"twitapp/internal/config"
	"twitapp/internal/handlers"
	"twitapp/internal/metrics"
	"twitapp/internal/middleware"
	"twitapp/internal/repositories"
	"twitapp/internal/services"
	"twitapp/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// App is a fully wired twitapp instance.
type App struct {
	Fiber   *fiber.App
	Auth    *services.AuthService
	Tweets  *services.TweetService
	Metrics *metrics.Metrics

	mq      *rabbitmq.Client
	closers []func(context.Context) error
}

// NewApp builds the stores, services and HTTP routes described by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	if err := a.build(ctx, cfg); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	registry, m := metrics.NewRegistry()
	a.Metrics = m

	users, tweets, err := a.openStores(ctx, cfg)
	if err != nil {
		return err
	}

	hasher, err := services.NewBcryptHasher(cfg.SecretKey, cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return err
		}
		a.mq = mq
		a.closers = append(a.closers, func(context.Context) error { return mq.Close() })
		events = mq
	}

	a.Auth, err = services.NewAuthService(users, hasher, tokens, m)
	if err != nil {
		return err
	}
	a.Tweets = services.NewTweetService(tweets, events, m, cfg.MutationRetries)

	authHandler := handlers.NewAuthHandler(a.Auth)
	tweetHandler := handlers.NewTweetHandler(a.Tweets)

	app := fiber.New(fiber.Config{AppName: "twitapp"})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.RequestMetrics(m))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"store":    cfg.StoreDriver,
			"rabbitmq": a.mq != nil,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(a.Auth))
	authHandler.RegisterProtectedRoutes(protected)
	tweetHandler.RegisterRoutes(protected)

	a.Fiber = app
	return nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (repositories.UserRepository, repositories.TweetRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := repositories.OpenGORM(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrapf(err, "failed to get sql.DB")
		}
		a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
		if err := repositories.Migrate(db); err != nil {
			return nil, nil, err
		}
		return repositories.NewGORMUserRepository(db), repositories.NewGORMTweetRepository(db), nil

	case config.DriverMongo:
		client, db, err := repositories.ConnectMongo(ctx, cfg.MongoURL, cfg.DatabaseName)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		if err := repositories.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, nil, err
		}
		return repositories.NewMongoUserRepository(db), repositories.NewMongoTweetRepository(db), nil

	default:
		slog.WarnContext(ctx, "using in-memory store; data is lost on exit")
		return repositories.NewMockUserRepository(), repositories.NewMockTweetRepository(), nil
	}
}

// StartConsumer logs every tweet event from the broker until it disconnects.
// It does nothing when no broker is configured.
func (a *App) StartConsumer() {
	if a.mq == nil {
		return
	}
	go func() {
		if err := a.mq.ConsumeTweetEvents(rabbitmq.LogTweetEvent); err != nil {
			slog.Error("event consumer stopped", "error", err)
		}
	}()
}

// Close shuts down the HTTP app and releases every store and broker connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate creates the schema or indexes for the configured store and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := repositories.OpenGORM(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").Wrapf(err, "failed to get sql.DB")
		}
		defer sqlDB.Close()
		return repositories.Migrate(db)

	case config.DriverMongo:
		client, db, err := repositories.ConnectMongo(ctx, cfg.MongoURL, cfg.DatabaseName)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		return repositories.EnsureMongoIndexes(ctx, db)

	default:
		return oops.Code("MIGRATE_UNSUPPORTED").
			With("driver", cfg.StoreDriver).
			Errorf("the %s store has no schema to migrate", cfg.StoreDriver)
	}
}
