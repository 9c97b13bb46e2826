package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendS3     = "s3"
)

const DefaultPort = 23479

type Config struct {
	Server  ServerConfig
	App     AppConfig
	Staging StagingConfig
	S3      S3Config
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AppConfig struct {
	TemplateDir    string
	StaticPrefix   string
	FaviconPath    string
	MaxUploadSize  int64
	StrictStatus   bool
	WatchTemplates bool
}

type StagingConfig struct {
	Backend string
	Dir     string
	// SweepAge is how old a staged upload must be before the startup sweep
	// removes it.
	SweepAge time.Duration
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

// Load reads configuration from defaults, the optional file at path and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_HOST", "")
	v.SetDefault("SERVER_PORT", DefaultPort)
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("APP_TEMPLATE_DIR", "web/templates")
	v.SetDefault("APP_STATIC_PREFIX", "/templates/")
	v.SetDefault("APP_FAVICON_PATH", "genico.ico")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_STRICT_STATUS", false)
	v.SetDefault("APP_WATCH_TEMPLATES", true)
	v.SetDefault("STAGING_BACKEND", BackendMemory)
	v.SetDefault("STAGING_DIR", filepath.Join(os.TempDir(), "genico"))
	v.SetDefault("STAGING_SWEEP_AGE", time.Hour)
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "genico")
	v.SetDefault("S3_REGION", "us-east-1")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("SERVER_HOST"),
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		App: AppConfig{
			TemplateDir:    v.GetString("APP_TEMPLATE_DIR"),
			StaticPrefix:   v.GetString("APP_STATIC_PREFIX"),
			FaviconPath:    v.GetString("APP_FAVICON_PATH"),
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			StrictStatus:   v.GetBool("APP_STRICT_STATUS"),
			WatchTemplates: v.GetBool("APP_WATCH_TEMPLATES"),
		},
		Staging: StagingConfig{
			Backend:  strings.ToLower(v.GetString("STAGING_BACKEND")),
			Dir:      v.GetString("STAGING_DIR"),
			SweepAge: v.GetDuration("STAGING_SWEEP_AGE"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.App.TemplateDir == "" {
		return fmt.Errorf("template directory must be set")
	}
	if !strings.HasPrefix(c.App.StaticPrefix, "/") || !strings.HasSuffix(c.App.StaticPrefix, "/") || c.App.StaticPrefix == "/" {
		return fmt.Errorf("static prefix %q must start and end with '/'", c.App.StaticPrefix)
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	switch c.Staging.Backend {
	case BackendMemory, BackendDisk, BackendS3:
	default:
		return fmt.Errorf("unknown staging backend %q", c.Staging.Backend)
	}
	if c.Staging.SweepAge < 0 {
		return fmt.Errorf("staging sweep age must not be negative")
	}
	return nil
}
