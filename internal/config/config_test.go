package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	strings map[string]string
	ints    map[string]int
}

func newMapBackend() *mapBackend {
	return &mapBackend{strings: map[string]string{}, ints: map[string]int{}}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.strings[key]
	return v, ok, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b *mapBackend) SetString(key, value string) error {
	b.strings[key] = value
	return nil
}

func (b *mapBackend) SetInt(key string, value int) error {
	b.ints[key] = value
	return nil
}

func (b *mapBackend) Delete(key string) error {
	delete(b.strings, key)
	delete(b.ints, key)
	return nil
}

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("VITA_AI_API_KEY", "test-key")
	t.Setenv("VITA_ADMIN_TOKEN", "test-admin")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 4100 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.AI.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("base url = %q", cfg.AI.BaseURL)
	}
	if cfg.Monitor.WindowDays != 7 || cfg.Monitor.Concurrency != 4 {
		t.Errorf("monitor = %d/%d", cfg.Monitor.WindowDays, cfg.Monitor.Concurrency)
	}
	if cfg.AI.APIKey != "test-key" || cfg.Server.AdminToken != "test-admin" {
		t.Error("secrets should come from the environment")
	}
}

func TestLoadBackendValues(t *testing.T) {
	setRequiredSecrets(t)

	b := newMapBackend()
	b.strings["ai.model"] = "anthropic/claude-sonnet-4"
	b.ints["server.port"] = 9000

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.AI.Model != "anthropic/claude-sonnet-4" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverridesBackend(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("VITA_SERVER_PORT", "5500")
	t.Setenv("VITA_AI_MODEL", "from-env")

	b := newMapBackend()
	b.ints["server.port"] = 9000
	b.strings["ai.model"] = "from-file"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5500 {
		t.Errorf("port = %d, want env value 5500", cfg.Server.Port)
	}
	if cfg.AI.Model != "from-env" {
		t.Errorf("model = %q, want env value", cfg.AI.Model)
	}
}

func TestLoadBadIntEnvFallsBack(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("VITA_MONITOR_WINDOW_DAYS", "a week")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Monitor.WindowDays != 7 {
		t.Errorf("window days = %d, want default 7", cfg.Monitor.WindowDays)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("VITA_AI_API_KEY", "")
	t.Setenv("VITA_ADMIN_TOKEN", "test-admin")

	_, err := loadWith(newMapBackend())
	if err == nil || !strings.Contains(err.Error(), "VITA_AI_API_KEY") {
		t.Errorf("err = %v, want mention of VITA_AI_API_KEY", err)
	}
}

func TestLoadMissingAdminToken(t *testing.T) {
	t.Setenv("VITA_AI_API_KEY", "test-key")
	t.Setenv("VITA_ADMIN_TOKEN", "")

	_, err := loadWith(newMapBackend())
	if err == nil || !strings.Contains(err.Error(), "VITA_ADMIN_TOKEN") {
		t.Errorf("err = %v, want mention of VITA_ADMIN_TOKEN", err)
	}
}

func TestBackendSkipsSecrets(t *testing.T) {
	setRequiredSecrets(t)

	b := newMapBackend()
	b.strings["ai.api_key"] = "leaked"
	b.strings["server.admin_token"] = "leaked"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.AI.APIKey != "test-key" || cfg.Server.AdminToken != "test-admin" {
		t.Error("secrets in the backend file must be ignored")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	setRequiredSecrets(t)
	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	for _, info := range ShowAll(cfg) {
		if info.Key == "ai.api_key" || info.Key == "server.admin_token" {
			t.Errorf("secret key %q exposed", info.Key)
		}
		if info.Value == "test-key" || info.Value == "test-admin" {
			t.Errorf("secret value exposed under %q", info.Key)
		}
	}
}

func TestGetKey(t *testing.T) {
	setRequiredSecrets(t)
	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	v, err := GetKey(cfg, "server.port")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if v != "4100" {
		t.Errorf("server.port = %q", v)
	}

	if _, err := GetKey(cfg, "ai.api_key"); err == nil {
		t.Error("reading a secret should fail")
	}
	if _, err := GetKey(cfg, "nope"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key err = %v", err)
	}
}

func TestSetKeySecretRejected(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := SetKey("ai.api_key", "sk-123")
	if err == nil || !strings.Contains(err.Error(), "VITA_AI_API_KEY") {
		t.Errorf("err = %v, want secret rejection naming the env var", err)
	}
}

func TestSetKeyUnknown(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := SetKey("does.not.exist", "x")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v", err)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	setRequiredSecrets(t)

	if err := SetKey("server.port", "7000"); err != nil {
		t.Fatalf("SetKey port: %v", err)
	}
	if err := SetKey("ai.model", "custom/model"); err != nil {
		t.Fatalf("SetKey model: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.AI.Model != "custom/model" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
}

func TestSetKeyInvalidInt(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("server.port", "eighty"); err == nil {
		t.Error("non-integer value for an int key should fail")
	}
}
