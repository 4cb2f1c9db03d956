package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := *DefaultConfig()
	cfg.UploadsDirectory = "/tmp/uploads"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "host and port",
			modify:  func(c *Config) { c.ListenAddr = "127.0.0.1:9000" },
			wantErr: false,
		},
		{
			name:        "missing port",
			modify:      func(c *Config) { c.ListenAddr = "localhost" },
			wantErr:     true,
			errorString: "invalid listen address 'localhost': missing port",
		},
		{
			name:        "port out of range",
			modify:      func(c *Config) { c.ListenAddr = ":70000" },
			wantErr:     true,
			errorString: "port must be between 0 and 65535",
		},
		{
			name:        "zero upload size",
			modify:      func(c *Config) { c.MaxUploadBytes = 0 },
			wantErr:     true,
			errorString: "invalid max upload size 0",
		},
		{
			name:        "preview rows too large",
			modify:      func(c *Config) { c.PreviewRows = 5000 },
			wantErr:     true,
			errorString: "invalid preview rows 5000",
		},
		{
			name:        "export filename with path",
			modify:      func(c *Config) { c.ExportFilename = "../out.csv" },
			wantErr:     true,
			errorString: "invalid export filename",
		},
		{
			name:        "negative cache ttl",
			modify:      func(c *Config) { c.CacheTTL = -time.Second },
			wantErr:     true,
			errorString: "invalid cache ttl",
		},
		{
			name: "multiple errors",
			modify: func(c *Config) {
				c.CacheSize = 0
				c.MaxRows = -1
			},
			wantErr:     true,
			errorString: "invalid cache size 0: must be at least 1\n- invalid max rows -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errorString)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	t.Setenv("CSVDASH_LISTEN_ADDR", ":9090")
	t.Setenv("CSVDASH_DEBUG", "1")
	t.Setenv("CSVDASH_DATA_DIR", dataDir)
	t.Setenv("CSVDASH_MAX_ROWS", "500")
	t.Setenv("CSVDASH_CACHE_TTL", "5m")
	t.Setenv("CSVDASH_CACHE_SIZE", "not-a-number")
	t.Setenv("CSVDASH_PASSWORD", "secret-password")

	cfg := Load()

	if cfg.ListenAddr != ":9090" || !cfg.Debug {
		t.Errorf("listen/debug = %s/%v", cfg.ListenAddr, cfg.Debug)
	}
	if cfg.UploadsDirectory != filepath.Join(dataDir, "uploads") {
		t.Errorf("uploads dir = %s", cfg.UploadsDirectory)
	}
	if cfg.MaxRows != 500 || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("max rows/ttl = %d/%v", cfg.MaxRows, cfg.CacheTTL)
	}
	if cfg.CacheSize != DefaultConfig().CacheSize {
		t.Errorf("invalid cache size should keep the default, got %d", cfg.CacheSize)
	}
	if cfg.Password != "secret-password" {
		t.Error("password not loaded")
	}
	if _, err := os.Stat(cfg.UploadsDirectory); err != nil {
		t.Errorf("uploads directory not created: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config is invalid: %v", err)
	}
}
