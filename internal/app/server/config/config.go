package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Auth   auth
	Logger logger
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
}

type server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT_SECONDS"`
}

type auth struct {
	Secret     string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL_HOURS"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("invalid server config: %v", err)
	}
	return cfg
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB: db{
			DatabaseURI: v.GetString("database_uri"),
		},
		Server: server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: time.Duration(v.GetInt("shutdown_timeout_seconds")) * time.Second,
		},
		Auth: auth{
			Secret:     v.GetString("jwt_secret"),
			AccessTTL:  time.Duration(v.GetInt("access_token_ttl_minutes")) * time.Minute,
			RefreshTTL: time.Duration(v.GetInt("refresh_token_ttl_hours")) * time.Hour,
		},
		Logger: logger{LogLevel: v.GetString("log_level")},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8000")
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("access_token_ttl_minutes", 60)
	v.SetDefault("refresh_token_ttl_hours", 24*30)
	v.SetDefault("log_level", "info")
}

func (c *Config) validate() error {
	if c.DB.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}
	if c.Auth.Secret == "" {
		if c.Env == EnvProd {
			return errors.New("JWT_SECRET is required in prod")
		}
		c.Auth.Secret = "possync-dev-secret"
	}
	if c.Auth.AccessTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if c.Auth.RefreshTTL <= 0 {
		return errors.New("REFRESH_TOKEN_TTL_HOURS must be positive")
	}
	return nil
}
