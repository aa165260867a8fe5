package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ストアの種類。
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Store
	SessionStore string // postgres | redis | memory
	UserStore    string // postgres | memory
	RedisURL     string

	// Session
	SessionMaxAge int

	// Password
	BcryptCost int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Observability
	LogLevel       slog.Level
	MetricsEnabled bool
}

// Load は環境変数からConfigを読み込む。
// カレントまたは親ディレクトリに.env.localがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{}

	cfg.SessionStore = strings.ToLower(getEnvString("SESSION_STORE", StorePostgres))
	cfg.UserStore = strings.ToLower(getEnvString("USER_STORE", StorePostgres))

	switch cfg.SessionStore {
	case StorePostgres, StoreRedis, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE: %q (must be postgres, redis or memory)", cfg.SessionStore)
	}
	switch cfg.UserStore {
	case StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid USER_STORE: %q (must be postgres or memory)", cfg.UserStore)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.UsesPostgres() {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" && cfg.SessionStore == StoreRedis {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7200)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}

	return cfg, nil
}

// UsesPostgres はいずれかのストアがPostgreSQLを使うかどうかを返す。
func (c *Config) UsesPostgres() bool {
	return c.SessionStore == StorePostgres || c.UserStore == StorePostgres
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
