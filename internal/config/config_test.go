package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setTestHome points HOME (and the working directory search path) at an
// empty temp dir so tests never pick up a developer's real config file.
func setTestHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Chdir(tmpDir)
	return tmpDir
}

func TestLoad_Defaults(t *testing.T) {
	setTestHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.Currency != DefaultCurrency {
		t.Errorf("Currency = %q, want %q", cfg.Currency, DefaultCurrency)
	}
	if cfg.Debug {
		t.Error("Debug = true, want false by default")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := setTestHome(t)

	configDir := filepath.Join(tmpDir, configDirName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	yaml := "server_url: https://assistant.example.com\ncurrency: eur\ndebug: true\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://assistant.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Currency != "eur" {
		t.Errorf("Currency = %q, want eur", cfg.Currency)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true from config file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := setTestHome(t)

	configDir := filepath.Join(tmpDir, configDirName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	yaml := "server_url: https://from-file.example.com\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("MARKETMATE_SERVER_URL", "https://from-env.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://from-env.example.com" {
		t.Errorf("ServerURL = %q, want the env value", cfg.ServerURL)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := setTestHome(t)

	configDir := filepath.Join(tmpDir, configDirName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(":\tnot yaml {{{"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load succeeded on a malformed config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{ServerURL: "http://localhost:8000", Currency: "usd"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"https ok", func(c *Config) { c.ServerURL = "https://api.example.com" }, nil},
		{"missing scheme", func(c *Config) { c.ServerURL = "localhost:8000" }, ErrInvalidServerURL},
		{"bad scheme", func(c *Config) { c.ServerURL = "ftp://example.com" }, ErrInvalidServerURL},
		{"empty url", func(c *Config) { c.ServerURL = "" }, ErrInvalidServerURL},
		{"empty currency", func(c *Config) { c.Currency = "  " }, ErrInvalidCurrency},
		{"currency too long", func(c *Config) { c.Currency = "dollarydoos" }, ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("nil config error = %v, want ErrConfigNil", err)
	}
}
