package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twitapp/internal/app"
	"twitapp/internal/config"
	"twitapp/internal/logging"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"port":       "APP_PORT",
	"store":      "STORE_DRIVER",
	"dsn":        "DATABASE_DSN",
	"mongo-url":  "MONGODB_URL",
	"db-name":    "DATABASE_NAME",
	"rabbitmq":   "RABBITMQ_URL",
	"log-format": "LOG_FORMAT",
	"token-ttl":  "TOKEN_TTL",
}

// NewRootCmd creates the root command. Every subcommand reads its
// configuration from the same viper instance.
func NewRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "twitapp",
		Short: "twitapp - a small social posting backend",
		Long: `twitapp serves a JSON API for accounts, tweets, likes and comments.
Configuration comes from flags, environment variables and an optional config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return oops.Code("CONFIG_INVALID").With("file", configFile).Wrapf(err, "failed to read config file")
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.String("port", "", "listen address, e.g. :8080")
	flags.String("store", "", "store driver: memory, sqlite, postgres or mongo")
	flags.String("dsn", "", "SQL database DSN")
	flags.String("mongo-url", "", "MongoDB connection URL")
	flags.String("db-name", "", "MongoDB database name")
	flags.String("rabbitmq", "", "RabbitMQ URL; empty disables event publishing")
	flags.String("log-format", "", "log format: json or text")
	flags.Duration("token-ttl", 0, "token lifetime")
	if err := bindFlags(v, flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(NewServeCmd(v))
	cmd.AddCommand(NewMigrateCmd(v))

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return oops.Code("CONFIG_INVALID").With("flag", name).Wrap(err)
		}
	}
	return nil
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logging.SetDefault("twitapp", version, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}
}

// runServe serves until ctx is done, then shuts down gracefully. When ln is
// nil it listens on cfg.AppPort.
func runServe(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return oops.Code("STARTUP_FAILED").Wrapf(err, "failed to build app")
	}
	a.StartConsumer()

	serveErr := make(chan error, 1)
	go func() {
		if ln != nil {
			serveErr <- a.Fiber.Listener(ln)
			return
		}
		slog.Info("starting server", "addr", cfg.AppPort, "store", cfg.StoreDriver)
		serveErr <- a.Fiber.Listen(cfg.AppPort)
	}()

	select {
	case err := <-serveErr:
		closeErr := a.Close(context.Background())
		return errors.Join(oops.Code("SERVER_FAILED").Wrap(err), closeErr)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	if err := <-serveErr; err != nil {
		return oops.Code("SERVER_FAILED").Wrap(err)
	}
	slog.Info("server gracefully stopped")
	return nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema or indexes of the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			cmd.Println("Running migrations...")
			if err := app.Migrate(cmd.Context(), cfg); err != nil {
				return oops.Code("MIGRATION_FAILED").With("store", cfg.StoreDriver).Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
