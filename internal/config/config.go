package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	CLI       CLIConfig       `yaml:"cli"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BackendConfig points at the REST backend every data operation goes to.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	CookieName   string             `yaml:"cookie_name"`
	TTL          time.Duration      `yaml:"ttl"`
	SecureCookie bool               `yaml:"secure_cookie"`
	ProfileCache ProfileCacheConfig `yaml:"profile_cache"`
}

// ProfileCacheConfig controls caching of restored user profiles. Backend is
// "none" (default), "memory" or "redis".
type ProfileCacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
}

// RateLimitConfig limits login attempts per client IP.
type RateLimitConfig struct {
	LoginAttempts int           `yaml:"login_attempts"`
	Window        time.Duration `yaml:"window"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type CLIConfig struct {
	TokenFile string `yaml:"token_file"` // default: <user config dir>/dktadmin/token.json
	TokenKey  string `yaml:"token_key"`  // hex, 32 bytes; empty stores the token unsealed
}

// envOverrides lists the DKTADMIN_* variables that take precedence over the
// config file. Zero values mean "not set".
type envOverrides struct {
	Host       string        `env:"DKTADMIN_HOST"`
	Port       int           `env:"DKTADMIN_PORT"`
	APIBaseURL string        `env:"DKTADMIN_API_BASE_URL"`
	APITimeout time.Duration `env:"DKTADMIN_API_TIMEOUT"`
	LogLevel   string        `env:"DKTADMIN_LOG_LEVEL"`
	RedisAddr  string        `env:"DKTADMIN_REDIS_ADDR"`
	TokenFile  string        `env:"DKTADMIN_TOKEN_FILE"`
	TokenKey   string        `env:"DKTADMIN_TOKEN_KEY"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "authToken",
			TTL:        7 * 24 * time.Hour,
			ProfileCache: ProfileCacheConfig{
				Backend:    "none",
				TTL:        30 * time.Second,
				MaxEntries: 1000,
				RedisAddr:  "localhost:6379",
			},
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: 10,
			Window:        time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(context.Background(), &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if env.Host != "" {
		cfg.Server.Host = env.Host
	}
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.APIBaseURL != "" {
		cfg.Backend.BaseURL = env.APIBaseURL
	}
	if env.APITimeout != 0 {
		cfg.Backend.Timeout = env.APITimeout
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.RedisAddr != "" {
		cfg.Session.ProfileCache.RedisAddr = env.RedisAddr
	}
	if env.TokenFile != "" {
		cfg.CLI.TokenFile = env.TokenFile
	}
	if env.TokenKey != "" {
		cfg.CLI.TokenKey = env.TokenKey
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	switch c.Session.ProfileCache.Backend {
	case "", "none":
	case "memory", "redis":
		if c.Session.ProfileCache.TTL <= 0 {
			return fmt.Errorf("session.profile_cache.ttl must be positive")
		}
	default:
		return fmt.Errorf("session.profile_cache.backend must be none, memory or redis, got %q", c.Session.ProfileCache.Backend)
	}
	if c.RateLimit.LoginAttempts < 0 {
		return fmt.Errorf("rate_limit.login_attempts must not be negative")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TokenFilePath returns where the CLI persists its bearer token.
func (c *Config) TokenFilePath() (string, error) {
	if c.CLI.TokenFile != "" {
		return c.CLI.TokenFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, "dktadmin", "token.json"), nil
}
