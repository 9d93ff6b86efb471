// Package config loads the process configuration once at startup.
package config

import (
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is immutable after Load and is handed to constructors.
type Config struct {
	AppPort         string
	StoreDriver     string
	DatabaseDSN     string
	MongoURL        string
	DatabaseName    string
	JWTSecret       string
	SecretKey       string
	TokenTTL        time.Duration
	BcryptCost      int
	RabbitMQURL     string
	LogFormat       string
	MutationRetries int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_DSN", "twitapp.db")
	v.SetDefault("MONGODB_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "twitapp")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 0)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MUTATION_RETRIES", 5)
}

// Load reads the configuration from v, which already carries defaults,
// environment and any bound flags. Missing secrets are an error.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:         v.GetString("APP_PORT"),
		StoreDriver:     strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		MongoURL:        v.GetString("MONGODB_URL"),
		DatabaseName:    v.GetString("DATABASE_NAME"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		SecretKey:       v.GetString("SECRET_KEY"),
		TokenTTL:        v.GetDuration("TOKEN_TTL"),
		BcryptCost:      v.GetInt("BCRYPT_COST"),
		RabbitMQURL:     v.GetString("RABBITMQ_URL"),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
		MutationRetries: v.GetInt("MUTATION_RETRIES"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New returns a viper instance with defaults set and the environment bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// Validate checks the values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("JWT_SECRET is required")
	}
	if c.SecretKey == "" {
		return oops.Code("CONFIG_INVALID").Errorf("SECRET_KEY is required")
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return oops.Code("CONFIG_INVALID").
			With("driver", c.StoreDriver).
			Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("format", c.LogFormat).
			Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	if c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("TOKEN_TTL must be positive")
	}
	if c.MutationRetries < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("MUTATION_RETRIES must not be negative")
	}
	return nil
}
