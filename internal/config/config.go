package config

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// MongoDB holds the journal collection
	MongoDB MongoDBConfig `json:"mongodb" mapstructure:"mongodb"`

	// Link AI backend
	LinkAPI LinkAPIConfig `json:"link_api" mapstructure:"link_api"`

	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	RealtimePort string `json:"realtime_port" mapstructure:"realtime_port"` // gRPC realtime feed
	ReadTimeout  int    `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout int    `json:"write_timeout" mapstructure:"write_timeout"`
	Environment  string `json:"environment" mapstructure:"environment"` // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `json:"driver" mapstructure:"driver"` // mysql, sqlite
	Host         string `json:"host" mapstructure:"host"`
	Port         string `json:"port" mapstructure:"port"`
	Username     string `json:"username" mapstructure:"username"`
	Password     string `json:"password" mapstructure:"password"`
	DatabaseName string `json:"database_name" mapstructure:"database_name"`
	MaxOpenConns int    `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `json:"auto_migrate" mapstructure:"auto_migrate"`

	// SQLitePath is used when Driver is sqlite
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path"`
}

type MongoDBConfig struct {
	Host              string `json:"host" mapstructure:"host"`
	Port              string `json:"port" mapstructure:"port"`
	Username          string `json:"username" mapstructure:"username"`
	Password          string `json:"password" mapstructure:"password"`
	Database          string `json:"database" mapstructure:"database"`
	JournalCollection string `json:"journal_collection" mapstructure:"journal_collection"`
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
}

type LinkAPIConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

func (c LinkAPIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret string `json:"-" mapstructure:"jwt_secret"`
	Issuer    string `json:"issuer" mapstructure:"issuer"`
}

// RateLimitConfig throttles sends per user
type RateLimitConfig struct {
	RPS   float64 `json:"rps" mapstructure:"rps"`
	Burst int     `json:"burst" mapstructure:"burst"`
}

type ChatConfig struct {
	PageSize int `json:"page_size" mapstructure:"page_size"`
	// PersistReplies writes assistant replies to the store when the backend
	// does not persist them itself.
	PersistReplies bool `json:"persist_replies" mapstructure:"persist_replies"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"`           // json, console
	OutputPath string `json:"output_path" mapstructure:"output_path"` // stdout, stderr, or file path
}

var envBindings = map[string]string{
	"server.port":              "PORT",
	"server.host":              "HOST",
	"server.realtime_port":     "REALTIME_PORT",
	"server.environment":       "APP_ENV",
	"database.driver":          "DB_DRIVER",
	"database.host":            "DB_HOST",
	"database.port":            "DB_PORT",
	"database.username":        "DB_USER",
	"database.password":        "DB_PASSWORD",
	"database.database_name":   "DB_NAME",
	"database.sqlite_path":     "DB_SQLITE_PATH",
	"database.auto_migrate":    "DB_AUTO_MIGRATE",
	"mongodb.host":             "MONGO_HOST",
	"mongodb.port":             "MONGO_PORT",
	"mongodb.username":         "MONGO_USER",
	"mongodb.password":         "MONGO_PASSWORD",
	"mongodb.database":         "MONGO_DB",
	"mongodb.enabled":          "MONGO_ENABLED",
	"link_api.base_url":        "LINK_API_URL",
	"link_api.timeout_seconds": "LINK_API_TIMEOUT",
	"auth.jwt_secret":          "JWT_SECRET",
	"rate_limit.rps":           "RATE_LIMIT_RPS",
	"rate_limit.burst":         "RATE_LIMIT_BURST",
	"chat.page_size":           "CHAT_PAGE_SIZE",
	"chat.persist_replies":     "CHAT_PERSIST_REPLIES",
	"logging.level":            "LOG_LEVEL",
	"logging.format":           "LOG_FORMAT",
	"logging.output_path":      "LOG_OUTPUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.realtime_port", "50061")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.database_name", "bonded")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.sqlite_path", "bondedlink.db")

	v.SetDefault("mongodb.host", "localhost")
	v.SetDefault("mongodb.port", "27017")
	v.SetDefault("mongodb.database", "bonded")
	v.SetDefault("mongodb.journal_collection", "link_journal_entries")
	v.SetDefault("mongodb.enabled", false)

	v.SetDefault("link_api.base_url", "https://link-ai-production.up.railway.app")
	v.SetDefault("link_api.timeout_seconds", 30)

	v.SetDefault("auth.issuer", "bonded")

	v.SetDefault("rate_limit.rps", 1.0)
	v.SetDefault("rate_limit.burst", 3)

	v.SetDefault("chat.page_size", 50)
	v.SetDefault("chat.persist_replies", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// LoadConfig reads .env when present, then the process environment, on top
// of the defaults above.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Chat.PageSize <= 0 {
		cfg.Chat.PageSize = 50
	}
	return &cfg, nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Driver == "sqlite" {
		return cfg.Database.SQLitePath
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	m := cfg.MongoDB
	if m.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s", m.Host, m.Port, m.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		url.QueryEscape(m.Username), url.QueryEscape(m.Password), m.Host, m.Port, m.Database)
}
