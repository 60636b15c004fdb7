package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Cleanup(withCleanEnv(t, nil))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("Expected default API URL %s, got %s", DefaultAPIURL, cfg.APIURL)
	}
	if cfg.RealtimeURL != "ws://localhost:8080/ws" {
		t.Errorf("Expected derived realtime URL, got %s", cfg.RealtimeURL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.HTTPTimeout)
	}
	if cfg.ReconnectAttempts != 5 {
		t.Errorf("Expected default reconnect attempts 5, got %d", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond || cfg.ReconnectMaxDelay != 10*time.Second {
		t.Errorf("Unexpected reconnect delays %v / %v", cfg.ReconnectDelay, cfg.ReconnectMaxDelay)
	}
	if cfg.DefaultDisplayName != "Guest" {
		t.Errorf("Expected default display name Guest, got %s", cfg.DefaultDisplayName)
	}
	if cfg.RuntimeDir != "" {
		t.Errorf("Expected no runtime dir without XDG_RUNTIME_DIR, got %s", cfg.RuntimeDir)
	}
	if cfg.CredentialKey != nil {
		t.Error("Expected no credential key by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Cleanup(withCleanEnv(t, map[string]string{
		"FASTFOOD_API_URL":            "https://ops.example.com/",
		"FASTFOOD_RECONNECT_ATTEMPTS": "3",
		"XDG_RUNTIME_DIR":             "/run/user/1000",
		"XDG_CONFIG_HOME":             "/home/crew/.config",
	}))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.APIURL != "https://ops.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.APIURL)
	}
	if cfg.RealtimeURL != "wss://ops.example.com/ws" {
		t.Errorf("Expected wss realtime URL, got %s", cfg.RealtimeURL)
	}
	if cfg.ReconnectAttempts != 3 {
		t.Errorf("Expected 3 reconnect attempts, got %d", cfg.ReconnectAttempts)
	}
	if cfg.RuntimeDir != filepath.Join("/run/user/1000", "fastfood-console") {
		t.Errorf("Unexpected runtime dir %s", cfg.RuntimeDir)
	}
	if cfg.ConfigDir != filepath.Join("/home/crew/.config", "fastfood-console") {
		t.Errorf("Unexpected config dir %s", cfg.ConfigDir)
	}
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("FASTFOOD_API_URL=http://pos.local:9000\nFASTFOOD_DEFAULT_DISPLAY_NAME=Crew\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(withCleanEnv(t, map[string]string{
		"FASTFOOD_ENV_FILE":             envFile,
		"FASTFOOD_DEFAULT_DISPLAY_NAME": "Override",
	}))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.APIURL != "http://pos.local:9000" {
		t.Errorf("Expected API URL from .env, got %s", cfg.APIURL)
	}
	if cfg.DefaultDisplayName != "Override" {
		t.Errorf("Expected process env to win over .env, got %s", cfg.DefaultDisplayName)
	}
}

func TestLoadConfig_CredentialKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	t.Cleanup(withCleanEnv(t, map[string]string{"FASTFOOD_CREDENTIAL_KEY": key}))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cfg.CredentialKey) != 32 {
		t.Errorf("Expected 32-byte key, got %d bytes", len(cfg.CredentialKey))
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short key", map[string]string{"FASTFOOD_CREDENTIAL_KEY": base64.StdEncoding.EncodeToString([]byte("short"))}},
		{"non-base64 key", map[string]string{"FASTFOOD_CREDENTIAL_KEY": "%%%"}},
		{"zero attempts", map[string]string{"FASTFOOD_RECONNECT_ATTEMPTS": "0"}},
		{"too many attempts", map[string]string{"FASTFOOD_RECONNECT_ATTEMPTS": "50"}},
		{"max below initial delay", map[string]string{"FASTFOOD_RECONNECT_DELAY_MS": "2000", "FASTFOOD_RECONNECT_MAX_DELAY_MS": "1000"}},
		{"bad scheme", map[string]string{"FASTFOOD_API_URL": "ftp://files.example.com"}},
		{"zero timeout", map[string]string{"FASTFOOD_HTTP_TIMEOUT": "0"}},
		{"rate limit", map[string]string{"FASTFOOD_DEV_RATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(withCleanEnv(t, tt.env))
			if _, err := Load(); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestSetAPIURL_RespectsPinnedRealtimeURL(t *testing.T) {
	t.Cleanup(withCleanEnv(t, map[string]string{"FASTFOOD_REALTIME_URL": "wss://push.example.com/socket"}))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := cfg.SetAPIURL("api.example.com"); err != nil {
		t.Fatalf("SetAPIURL: %v", err)
	}
	if cfg.APIURL != "http://api.example.com" {
		t.Errorf("Expected scheme added, got %s", cfg.APIURL)
	}
	if cfg.RealtimeURL != "wss://push.example.com/socket" {
		t.Errorf("Expected pinned realtime URL, got %s", cfg.RealtimeURL)
	}
}

func TestRealtimeURLFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://ops.example.com", "wss://ops.example.com/ws"},
		{"https://ops.example.com/base/", "wss://ops.example.com/base/ws"},
	}
	for _, tt := range tests {
		if got := RealtimeURLFor(tt.in); got != tt.want {
			t.Errorf("RealtimeURLFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
