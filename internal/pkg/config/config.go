package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port           string `env:"PORT,             default=8080"`
	Env            string `env:"ENV,              default=development"`
	LogLevel       string `env:"LOG_LEVEL,        default=info"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET, required"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Accounts AccountsConfig
}

type MongoConfig struct {
	URI             string        `env:"MONGO_URI,              default=mongodb://localhost:27017"`
	Database        string        `env:"MONGO_DB,               default=accounts"`
	UsersCollection string        `env:"MONGO_USERS_COLLECTION, default=users"`
	ConnectTimeout  time.Duration `env:"MONGO_CONNECT_TIMEOUT,  default=10s"`
	MaxPoolSize     uint64        `env:"MONGO_MAX_POOL_SIZE,    default=100"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR,            default=localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB,              default=0"`
	KeyStream   string        `env:"REDIS_KEY_STREAM,      default=account:keys"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT,    default=5s"`
	PoolSize    int           `env:"REDIS_POOL_SIZE,       default=10"`
}

type AccountsConfig struct {
	// KeyValidityDays is used when a registration request does not specify one.
	KeyValidityDays      int  `env:"KEY_VALIDITY_DAYS,      default=7"`
	EnforceKeyExpiration bool `env:"ENFORCE_KEY_EXPIRATION, default=true"`
	DeliveryWorkers      int  `env:"KEY_DELIVERY_WORKERS,   default=4"`
}

// IsDevelopment reports whether the service runs with developer defaults
// (pretty logs).
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith resolves configuration from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.Accounts.KeyValidityDays <= 0 {
		return nil, fmt.Errorf("KEY_VALIDITY_DAYS must be positive, got %d", cfg.Accounts.KeyValidityDays)
	}
	return &cfg, nil
}
