// ABOUTME: Configuration loader for the console client and dev backend
// ABOUTME: Loads settings from a .env file and environment variables with defaults

package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "http://localhost:8080"
	DefaultDisplayName = "Guest"
	appDirName         = "fastfood-console"
)

type Config struct {
	// Backend
	APIURL      string
	RealtimeURL string // ws(s):// endpoint, derived from APIURL when unset
	HTTPTimeout time.Duration
	AllProxy    string // ssh+socks5://user@host:port?private-key=/path

	// Credentials
	ConfigDir     string // durable credential file and debug log
	RuntimeDir    string // session-scoped credential file; empty = in-memory only
	CredentialKey []byte // optional 32-byte key sealing credential files

	// Realtime reconnect policy
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration

	// Identity normalization
	DefaultDisplayName string

	// Dev backend
	DevAddr      string
	DevUsersFile string
	DevJWTSecret string
	DevRateLimit int // login attempts per minute per identifier
}

// Load reads .env (or FASTFOOD_ENV_FILE) into the environment without overriding
// variables that are already set, then builds a validated Config.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("FASTFOOD_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:      strings.TrimRight(ensureScheme(getEnv("FASTFOOD_API_URL", DefaultAPIURL)), "/"),
		RealtimeURL: os.Getenv("FASTFOOD_REALTIME_URL"),
		HTTPTimeout: time.Duration(getEnvInt("FASTFOOD_HTTP_TIMEOUT", 30)) * time.Second,
		AllProxy:    os.Getenv("FASTFOOD_ALL_PROXY"),

		ConfigDir:  getEnv("FASTFOOD_CONFIG_DIR", DefaultConfigDir()),
		RuntimeDir: getEnv("FASTFOOD_RUNTIME_DIR", defaultRuntimeDir()),

		ReconnectAttempts: getEnvInt("FASTFOOD_RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:    time.Duration(getEnvInt("FASTFOOD_RECONNECT_DELAY_MS", 500)) * time.Millisecond,
		ReconnectMaxDelay: time.Duration(getEnvInt("FASTFOOD_RECONNECT_MAX_DELAY_MS", 10000)) * time.Millisecond,

		DefaultDisplayName: getEnv("FASTFOOD_DEFAULT_DISPLAY_NAME", DefaultDisplayName),

		DevAddr:      getEnv("FASTFOOD_DEV_ADDR", ":8080"),
		DevUsersFile: os.Getenv("FASTFOOD_DEV_USERS_FILE"),
		DevJWTSecret: getEnv("FASTFOOD_DEV_JWT_SECRET", "dev-secret-change-me"),
		DevRateLimit: getEnvInt("FASTFOOD_DEV_RATE_LIMIT", 5),
	}

	if key := os.Getenv("FASTFOOD_CREDENTIAL_KEY"); key != "" {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("FASTFOOD_CREDENTIAL_KEY must be base64: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("FASTFOOD_CREDENTIAL_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		cfg.CredentialKey = decoded
	}

	if err := cfg.SetAPIURL(cfg.APIURL); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("FASTFOOD_HTTP_TIMEOUT must be positive")
	}
	if cfg.ReconnectAttempts < 1 || cfg.ReconnectAttempts > 20 {
		return nil, fmt.Errorf("FASTFOOD_RECONNECT_ATTEMPTS must be between 1 and 20, got %d", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("FASTFOOD_RECONNECT_DELAY_MS must be positive")
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectDelay {
		return nil, fmt.Errorf("FASTFOOD_RECONNECT_MAX_DELAY_MS must be >= FASTFOOD_RECONNECT_DELAY_MS")
	}
	if cfg.DevRateLimit < 1 || cfg.DevRateLimit > 10000 {
		return nil, fmt.Errorf("FASTFOOD_DEV_RATE_LIMIT must be between 1 and 10000, got %d", cfg.DevRateLimit)
	}

	return cfg, nil
}

// SetAPIURL replaces the backend URL (e.g. from a --api-url flag) and re-derives
// the realtime URL unless FASTFOOD_REALTIME_URL pinned it.
func (c *Config) SetAPIURL(raw string) error {
	apiURL := strings.TrimRight(ensureScheme(raw), "/")
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid API URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL must use http or https, got %q", u.Scheme)
	}
	c.APIURL = apiURL

	if os.Getenv("FASTFOOD_REALTIME_URL") == "" {
		c.RealtimeURL = RealtimeURLFor(apiURL)
	}
	return nil
}

// RealtimeURLFor maps http(s)://host/base to ws(s)://host/base/ws
func RealtimeURLFor(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// DefaultConfigDir returns the default config directory following XDG spec
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDirName)
}

// defaultRuntimeDir uses XDG_RUNTIME_DIR, which the OS clears when the login session ends
func defaultRuntimeDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	return ""
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// ensureScheme adds http:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "http://" + url
	}
	return url
}
