package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all runtime configuration. Values come from defaults, an
// optional YAML file, a .env file and the environment, in increasing priority.
type Config struct {
	Port             string `mapstructure:"port"`
	ReadTimeoutSecs  int    `mapstructure:"server_read_timeout"`
	WriteTimeoutSecs int    `mapstructure:"server_write_timeout"`
	IdleTimeoutSecs  int    `mapstructure:"server_idle_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	JWTSecret string `mapstructure:"jwt_secret"`

	DBURL             string `mapstructure:"db_url"`
	DBMaxConns        int    `mapstructure:"db_max_conns"`
	DBMinConns        int    `mapstructure:"db_min_conns"`
	DBMaxIdleSecs     int    `mapstructure:"db_max_conn_idle_secs"`
	DBMaxLifeSecs     int    `mapstructure:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs int    `mapstructure:"db_conn_timeout_secs"`
	DBStatementCache  int    `mapstructure:"db_statement_cache_capacity"`

	MongoURL         string `mapstructure:"mongo_url"`
	MongoDatabase    string `mapstructure:"mongo_database"`
	MongoTimeoutSecs int    `mapstructure:"mongo_timeout_secs"`

	PushGatewayURL    string `mapstructure:"push_gateway_url"`
	PushGatewayAPIKey string `mapstructure:"push_gateway_api_key"`
	PushTimeoutSecs   int    `mapstructure:"push_timeout_secs"`

	ReminderEnabled  bool          `mapstructure:"reminder_enabled"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	ReminderLeadDays int           `mapstructure:"reminder_lead_days"`
}

var defaults = map[string]interface{}{
	"port":                        "8080",
	"server_read_timeout":         15,
	"server_write_timeout":        15,
	"server_idle_timeout":         60,
	"log_level":                   "info",
	"log_format":                  "json",
	"jwt_secret":                  "",
	"db_url":                      "",
	"db_max_conns":                20,
	"db_min_conns":                2,
	"db_max_conn_idle_secs":       300,
	"db_max_conn_lifetime_secs":   3600,
	"db_conn_timeout_secs":        10,
	"db_statement_cache_capacity": 256,
	"mongo_url":                   "",
	"mongo_database":              "",
	"mongo_timeout_secs":          5,
	"push_gateway_url":            "",
	"push_gateway_api_key":        "",
	"push_timeout_secs":           5,
	"reminder_enabled":            true,
	"reminder_interval":           24 * time.Hour,
	"reminder_lead_days":          7,
}

// Load reads configuration, applying defaults and validation. configFile may be empty.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting by its environment variable name.
func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.MongoURL == "" {
		return fmt.Errorf("MONGO_URL is required")
	}
	if cfg.MongoDatabase == "" {
		return fmt.Errorf("MONGO_DATABASE is required")
	}
	if cfg.MongoTimeoutSecs <= 0 {
		return fmt.Errorf("MONGO_TIMEOUT_SECS must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.PushTimeoutSecs <= 0 {
		return fmt.Errorf("PUSH_TIMEOUT_SECS must be positive")
	}
	if cfg.ReminderEnabled {
		if cfg.PushGatewayURL == "" {
			return fmt.Errorf("PUSH_GATEWAY_URL is required when REMINDER_ENABLED is set")
		}
		if cfg.ReminderInterval < time.Minute {
			return fmt.Errorf("REMINDER_INTERVAL must be at least one minute")
		}
		if cfg.ReminderLeadDays < 0 {
			return fmt.Errorf("REMINDER_LEAD_DAYS must be non-negative")
		}
	}
	return nil
}
