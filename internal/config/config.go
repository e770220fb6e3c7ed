package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`

	HTTPServer
	Tokens
	Hash
	Revocation
	Redis
	Kafka
	Elastic
	RateLimit
}

type HTTPServer struct {
	Address     string        `env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Tokens struct {
	JWTSecret       string        `env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-required:"true"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-required:"true"`
}

type Hash struct {
	Algorithm  string `env:"HASH_ALGORITHM" env-default:"bcrypt"`
	BcryptCost int    `env:"BCRYPT_COST" env-default:"10"`
}

type Revocation struct {
	// "db" or "redis"
	Backend       string        `env:"REVOCATION_BACKEND" env-default:"db"`
	PruneInterval time.Duration `env:"REVOCATION_PRUNE_INTERVAL" env-default:"0s"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"user_events"`
}

type Elastic struct {
	URL      string `env:"ES_URL"`
	User     string `env:"ES_USER"`
	Password string `env:"ES_PASSWORD"`
	Index    string `env:"ES_INDEX" env-default:"health_records"`
}

type RateLimit struct {
	Login    int `env:"RATE_LIMIT_LOGIN" env-default:"10"`
	Register int `env:"RATE_LIMIT_REGISTER" env-default:"5"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is empty")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL")
	}
	switch c.Revocation.Backend {
	case "db":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis revocation backend")
		}
	default:
		return fmt.Errorf("unknown REVOCATION_BACKEND %q", c.Revocation.Backend)
	}
	return nil
}
