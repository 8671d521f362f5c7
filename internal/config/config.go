package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	Form      FormConfig      `mapstructure:"form"`
	Theme     ThemeConfig     `mapstructure:"theme"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	// MaxUploadBytes bounds a single multipart upload from the browser.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	CookieName      string        `mapstructure:"cookie_name"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type GeneratorConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
}

type ArtifactConfig struct {
	FileName      string `mapstructure:"file_name"`
	MaxTotalBytes int64  `mapstructure:"max_total_bytes"`
}

type FormConfig struct {
	// RejectPolicy is "error" or "ignore" for files of the wrong type.
	RejectPolicy string `mapstructure:"reject_policy"`
}

type ThemeConfig struct {
	Default string `mapstructure:"default"`
	Variant string `mapstructure:"variant"`
	File    string `mapstructure:"file"`
}

const DefaultEndpoint = "https://ppt-backend-gfqr.onrender.com/generate-presentation/"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 32<<20)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("session.cookie_name", "deckgen_session")
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("generator.endpoint", DefaultEndpoint)
	v.SetDefault("generator.timeout", 3*time.Minute)
	v.SetDefault("generator.max_response_bytes", 100<<20)

	v.SetDefault("artifact.file_name", "presentation.pptx")
	v.SetDefault("artifact.max_total_bytes", 512<<20)

	v.SetDefault("form.reject_policy", "error")

	v.SetDefault("theme.default", "card")
	v.SetDefault("theme.variant", "light")
}

// Load reads the YAML file at configPath on top of the built-in defaults.
// An empty path skips the file. DECKGEN_* environment variables override
// both, e.g. DECKGEN_GENERATOR_ENDPOINT.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DECKGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return loaded, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Generator.Endpoint) == "" {
		return errors.New("generator.endpoint is required")
	}
	switch c.Form.RejectPolicy {
	case "error", "ignore":
	default:
		return fmt.Errorf("form.reject_policy must be error or ignore, got %q", c.Form.RejectPolicy)
	}
	if c.Session.TTL <= 0 || c.Session.CleanupInterval <= 0 {
		return errors.New("session.ttl and session.cleanup_interval must be positive")
	}
	if c.Artifact.FileName == "" {
		return errors.New("artifact.file_name is required")
	}
	return nil
}
