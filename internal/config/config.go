package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Server   ServerConfig
	S3       S3Config
	App      AppConfig
	LogLevel string
}

type ServerConfig struct {
	Host               string
	Port               string
	APIKey             string
	CORSAllowedOrigins []string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type AppConfig struct {
	StorageBackend    string
	UploadDir         string
	MaxUploadSize     int64
	AllowedExtensions []string
	AllowedMimeTypes  []string
	AnalysisCacheSize int
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("API_KEY", "dev-api-key-12345")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("STORAGE_BACKEND", BackendLocal)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_FILE_SIZE", 5*1024*1024) // 5MB
	v.SetDefault("ALLOWED_EXTENSIONS", "jpg,jpeg,png")
	v.SetDefault("ALLOWED_MIME_TYPES", "image/jpeg,image/png")
	v.SetDefault("ANALYSIS_CACHE_SIZE", 256)
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "images")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("SERVER_HOST"),
			Port:               v.GetString("SERVER_PORT"),
			APIKey:             v.GetString("API_KEY"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"), false),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
		},
		App: AppConfig{
			StorageBackend:    strings.ToLower(v.GetString("STORAGE_BACKEND")),
			UploadDir:         v.GetString("UPLOAD_DIR"),
			MaxUploadSize:     v.GetInt64("MAX_FILE_SIZE"),
			AllowedExtensions: splitList(v.GetString("ALLOWED_EXTENSIONS"), true),
			AllowedMimeTypes:  splitList(v.GetString("ALLOWED_MIME_TYPES"), true),
			AnalysisCacheSize: v.GetInt("ANALYSIS_CACHE_SIZE"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.App.StorageBackend == BackendLocal {
		if err := os.MkdirAll(cfg.App.UploadDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", cfg.App.UploadDir, err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.StorageBackend {
	case BackendLocal:
		if c.App.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case BackendS3:
		if c.S3.BucketName == "" {
			return fmt.Errorf("S3_BUCKET_NAME must not be empty")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.App.StorageBackend)
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.App.MaxUploadSize)
	}
	if len(c.App.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	if len(c.App.AllowedMimeTypes) == 0 {
		return fmt.Errorf("ALLOWED_MIME_TYPES must not be empty")
	}
	if c.App.AnalysisCacheSize < 0 {
		return fmt.Errorf("ANALYSIS_CACHE_SIZE must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func splitList(raw string, lower bool) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if lower {
			item = strings.ToLower(strings.TrimPrefix(item, "."))
		}
		out = append(out, item)
	}
	return out
}
