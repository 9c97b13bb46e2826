package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.App.StaticPrefix != "/templates/" {
		t.Errorf("StaticPrefix = %q", cfg.App.StaticPrefix)
	}
	if cfg.App.MaxUploadSize != 10*1024*1024 {
		t.Errorf("MaxUploadSize = %d", cfg.App.MaxUploadSize)
	}
	if cfg.Staging.Backend != BackendMemory {
		t.Errorf("Backend = %q", cfg.Staging.Backend)
	}
	if cfg.Staging.SweepAge != time.Hour {
		t.Errorf("SweepAge = %v, want 1h", cfg.Staging.SweepAge)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("APP_STRICT_STATUS", "true")
	t.Setenv("STAGING_BACKEND", "DISK")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("STAGING_SWEEP_AGE", "10m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Server.Port)
	}
	if !cfg.App.StrictStatus {
		t.Error("StrictStatus not set from environment")
	}
	if cfg.Staging.Backend != BackendDisk {
		t.Errorf("Backend = %q, want %q", cfg.Staging.Backend, BackendDisk)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Staging.SweepAge != 10*time.Minute {
		t.Errorf("SweepAge = %v, want 10m", cfg.Staging.SweepAge)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genico.yaml")
	content := "server_port: 9090\napp_template_dir: /srv/templates\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.App.TemplateDir != "/srv/templates" {
		t.Errorf("TemplateDir = %q", cfg.App.TemplateDir)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			App:     AppConfig{TemplateDir: "t", StaticPrefix: "/static/", MaxUploadSize: 1},
			Staging: StagingConfig{Backend: BackendMemory},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"no template dir", func(c *Config) { c.App.TemplateDir = "" }},
		{"prefix without slashes", func(c *Config) { c.App.StaticPrefix = "static" }},
		{"root prefix", func(c *Config) { c.App.StaticPrefix = "/" }},
		{"zero upload size", func(c *Config) { c.App.MaxUploadSize = 0 }},
		{"unknown backend", func(c *Config) { c.Staging.Backend = "ftp" }},
		{"negative sweep age", func(c *Config) { c.Staging.SweepAge = -time.Second }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	if got := (ServerConfig{Host: "127.0.0.1", Port: 80}).Addr(); got != "127.0.0.1:80" {
		t.Errorf("Addr = %q", got)
	}
}
