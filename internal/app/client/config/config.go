package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".possync"
	defaultClientID      = "possync-cli"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	LogLevel      string `mapstructure:"log_level"`

	// InstanceID адрес сайта; к нему привязаны токены и данные
	InstanceID    string `mapstructure:"instance_id"`
	CompanyID     string `mapstructure:"company_id"`
	OAuthClientID string `mapstructure:"oauth_client_id"`

	ConfigDir string `mapstructure:"config_dir"`
	DataPath  string `mapstructure:"data_path"`

	SyncInterval      time.Duration
	HeartbeatInterval time.Duration
	SyncCooldown      time.Duration
	CacheTTL          time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	BackoffJitter     float64
	HTTPMaxRetries    int
	HTTPTimeout       time.Duration
	SyncMonthsBack    int
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()
	setDefaults()

	config, err := fromViper()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	if err := os.MkdirAll(config.ConfigDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	return config
}

func setDefaults() {
	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("ENABLE_TLS", false)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("OAUTH_CLIENT_ID", defaultClientID)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 300)
	viper.SetDefault("HEARTBEAT_INTERVAL_SECONDS", 300)
	viper.SetDefault("SYNC_COOLDOWN_SECONDS", 5)
	viper.SetDefault("CACHE_TTL_HOURS", 6)
	viper.SetDefault("BACKOFF_BASE_SECONDS", 30)
	viper.SetDefault("BACKOFF_MAX_SECONDS", 900)
	viper.SetDefault("BACKOFF_JITTER", 0.2)
	viper.SetDefault("HTTP_MAX_RETRIES", 2)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SYNC_MONTHS_BACK", 3)
}

func fromViper() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Относительная директория по умолчанию лежит в домашней
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "pos.db")
	}

	scheme := "http://"
	if viper.GetBool("ENABLE_TLS") {
		scheme = "https://"
	}
	instanceID := viper.GetString("INSTANCE_ID")
	if instanceID == "" {
		instanceID = scheme + viper.GetString("SERVER_ADDRESS")
	}

	config := &Config{
		Env:               viper.GetString("APP_ENV"),
		ServerAddress:     viper.GetString("SERVER_ADDRESS"),
		EnableTLS:         viper.GetBool("ENABLE_TLS"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		InstanceID:        instanceID,
		CompanyID:         strings.TrimSpace(viper.GetString("COMPANY_ID")),
		OAuthClientID:     viper.GetString("OAUTH_CLIENT_ID"),
		ConfigDir:         configDir,
		DataPath:          dataPath,
		SyncInterval:      seconds("SYNC_INTERVAL_SECONDS"),
		HeartbeatInterval: seconds("HEARTBEAT_INTERVAL_SECONDS"),
		SyncCooldown:      seconds("SYNC_COOLDOWN_SECONDS"),
		CacheTTL:          time.Duration(viper.GetInt("CACHE_TTL_HOURS")) * time.Hour,
		BackoffBase:       seconds("BACKOFF_BASE_SECONDS"),
		BackoffMax:        seconds("BACKOFF_MAX_SECONDS"),
		BackoffJitter:     viper.GetFloat64("BACKOFF_JITTER"),
		HTTPMaxRetries:    viper.GetInt("HTTP_MAX_RETRIES"),
		HTTPTimeout:       seconds("HTTP_TIMEOUT_SECONDS"),
		SyncMonthsBack:    viper.GetInt("SYNC_MONTHS_BACK"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.OAuthClientID == "" {
		return fmt.Errorf("oauth_client_id не может быть пустым")
	}
	// без компании гейты профиля и смены не получают контекст синхронизации
	if c.CompanyID == "" {
		return fmt.Errorf("company_id не может быть пустым: задайте COMPANY_ID")
	}
	if c.BackoffJitter < 0 || c.BackoffJitter > 1 {
		return fmt.Errorf("backoff_jitter должен быть в диапазоне [0, 1]")
	}
	if c.HTTPMaxRetries < 0 {
		return fmt.Errorf("http_max_retries не может быть отрицательным")
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
