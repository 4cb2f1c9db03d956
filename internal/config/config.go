package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `json:"listen_addr"`
	Debug      bool   `json:"debug"`

	// Directories
	DataDirectory      string `json:"data_directory"`
	UploadsDirectory   string `json:"uploads_directory"`
	TemplatesDirectory string `json:"templates_directory"`
	StaticDirectory    string `json:"static_directory"`

	// Uploads
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	MaxRows        int   `json:"max_rows"`
	PreviewRows    int   `json:"preview_rows"`

	// Dataset cache
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`

	// Export
	ExportFilename string `json:"export_filename"`

	// Encryption password; empty prompts on a terminal when the store is encrypted
	Password string `json:"-"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:         ":8080",
		Debug:              false,
		DataDirectory:      filepath.Join(wd, "data"),
		UploadsDirectory:   filepath.Join(wd, "data", "uploads"),
		TemplatesDirectory: filepath.Join(wd, "web", "templates"),
		StaticDirectory:    filepath.Join(wd, "web", "static"),
		MaxUploadBytes:     32 << 20,
		MaxRows:            0,
		PreviewRows:        20,
		CacheSize:          16,
		CacheTTL:           30 * time.Minute,
		ExportFilename:     "processed_data.csv",
	}
}

// Load loads configuration from the environment, reading a .env file first
// when one is present
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	cfg := DefaultConfig()

	if addr := os.Getenv("CSVDASH_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if debug := os.Getenv("CSVDASH_DEBUG"); debug == "true" || debug == "1" {
		cfg.Debug = true
	}
	if dataDir := os.Getenv("CSVDASH_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
		cfg.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}
	if templatesDir := os.Getenv("CSVDASH_TEMPLATES_DIR"); templatesDir != "" {
		cfg.TemplatesDirectory = templatesDir
	}
	if staticDir := os.Getenv("CSVDASH_STATIC_DIR"); staticDir != "" {
		cfg.StaticDirectory = staticDir
	}
	if name := os.Getenv("CSVDASH_EXPORT_FILENAME"); name != "" {
		cfg.ExportFilename = name
	}

	cfg.MaxUploadBytes = getEnvInt64("CSVDASH_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.MaxRows = getEnvInt("CSVDASH_MAX_ROWS", cfg.MaxRows)
	cfg.PreviewRows = getEnvInt("CSVDASH_PREVIEW_ROWS", cfg.PreviewRows)
	cfg.CacheSize = getEnvInt("CSVDASH_CACHE_SIZE", cfg.CacheSize)
	cfg.CacheTTL = getEnvDuration("CSVDASH_CACHE_TTL", cfg.CacheTTL)
	cfg.Password = os.Getenv("CSVDASH_PASSWORD")

	cfg.ensureDirectories()

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.ListenAddr == "" {
		errors = append(errors, "listen address cannot be empty")
	} else if idx := strings.LastIndex(c.ListenAddr, ":"); idx < 0 {
		errors = append(errors, fmt.Sprintf("invalid listen address '%s': missing port", c.ListenAddr))
	} else if port, err := strconv.Atoi(c.ListenAddr[idx+1:]); err != nil || port < 0 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid listen address '%s': port must be between 0 and 65535", c.ListenAddr))
	}

	if c.UploadsDirectory == "" {
		errors = append(errors, "uploads directory cannot be empty")
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.MaxRows < 0 {
		errors = append(errors, fmt.Sprintf("invalid max rows %d: must not be negative", c.MaxRows))
	}
	if c.PreviewRows < 1 || c.PreviewRows > 1000 {
		errors = append(errors, fmt.Sprintf("invalid preview rows %d: must be between 1 and 1000", c.PreviewRows))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache ttl %v: must not be negative", c.CacheTTL))
	}
	if c.ExportFilename == "" || strings.ContainsAny(c.ExportFilename, `/\"`) {
		errors = append(errors, fmt.Sprintf("invalid export filename '%s'", c.ExportFilename))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ensureDirectories creates required directories if they don't exist
func (c *Config) ensureDirectories() {
	for _, dir := range []string{c.DataDirectory, c.UploadsDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: could not create directory %s: %v", dir, err)
		}
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Warning: ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		log.Printf("Warning: ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}
