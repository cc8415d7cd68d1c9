// Package config loads Yachtsy settings from the process environment,
// optionally seeded from dotenv files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// PlaceholderAPIKey is substituted by the example driver when no key is set.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

var ErrPlaceholderKey = errors.New("YACHTSY_API_KEY is the placeholder value")

// Server configures the yachtsy-mcp stdio server.
type Server struct {
	APIKey              string        `env:"YACHTSY_API_KEY,required"`
	BaseURL             string        `env:"YACHTSY_API_BASE_URL,default=https://api.yachtsy.ai/v1"`
	Model               string        `env:"YACHTSY_MODEL,default=yachtsy-agent"`
	CacheTTL            time.Duration `env:"YACHTSY_CACHE_TTL,default=0s"`
	CacheRedisAddr      string        `env:"YACHTSY_CACHE_REDIS_ADDR"`
	CacheSize           int           `env:"YACHTSY_CACHE_SIZE,default=256"`
	EnvFile             string        `env:"YACHTSY_ENV_FILE,default=.env"`
	RejectPlaceholder   bool          `env:"YACHTSY_REJECT_PLACEHOLDER_KEY,default=false"`
	LogLevel            string        `env:"YACHTSY_LOG_LEVEL,default=info"`
}

// Client configures the example driver.
type Client struct {
	APIKey          string        `env:"YACHTSY_API_KEY,default=YOUR_API_KEY_HERE"`
	ServerCommand   string        `env:"YACHTSY_SERVER_COMMAND,default=go"`
	ServerArgs      []string      `env:"YACHTSY_SERVER_ARGS,default=run;./cmd/yachtsy-mcp"`
	CallTimeout     time.Duration `env:"YACHTSY_CALL_TIMEOUT,default=0s"`
	ContinueOnError bool          `env:"YACHTSY_CONTINUE_ON_ERROR,default=false"`
	LogLevel        string        `env:"YACHTSY_LOG_LEVEL,default=info"`
}

// LoadEnvFiles seeds the environment from path and then from path.$APP_ENV.
// Variables already present in the environment win over path; the
// APP_ENV-specific file overrides both. Missing files are not an error.
func LoadEnvFiles(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		return nil
	}
	envFile := path + "." + appEnv
	if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// LoadServer decodes and validates the server configuration.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks constraints envdecode cannot express.
func (c *Server) Validate() error {
	if err := c.CheckAPIKey(c.APIKey); err != nil {
		return err
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("YACHTSY_CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("YACHTSY_CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// CheckAPIKey applies the key policy shared by startup and hot reload. The
// placeholder is accepted unless YACHTSY_REJECT_PLACEHOLDER_KEY is set.
func (c *Server) CheckAPIKey(key string) error {
	if key == "" {
		return errors.New("YACHTSY_API_KEY must not be empty")
	}
	if IsPlaceholder(key) && c.RejectPlaceholder {
		return fmt.Errorf("%w: set a real key or unset YACHTSY_REJECT_PLACEHOLDER_KEY", ErrPlaceholderKey)
	}
	return nil
}

// IsPlaceholder reports whether key is the example placeholder.
func IsPlaceholder(key string) bool { return key == PlaceholderAPIKey }

// CacheEnabled reports whether answers should be cached.
func (c *Server) CacheEnabled() bool { return c.CacheTTL > 0 }

// LoadClient decodes the driver configuration.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.CallTimeout < 0 {
		return nil, fmt.Errorf("YACHTSY_CALL_TIMEOUT must not be negative, got %s", cfg.CallTimeout)
	}
	return &cfg, nil
}

func decode(target any) error {
	err := envdecode.StrictDecode(target)
	if err == nil || errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil
	}
	return fmt.Errorf("decode environment: %w", err)
}
