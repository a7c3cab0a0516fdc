package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLabels is the art-style label set in the model's training order.
var DefaultLabels = []string{
	"Abstract Expressionism", "Baroque", "Cubism", "Expressionism",
	"High Renaissance", "Impressionism", "Minimalism", "Realism",
	"Rococo", "Ukiyo_e",
}

type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		SecretKey   string `yaml:"secretKey"`
		UploadDir   string `yaml:"uploadDir"`
		MaxUploadMB int64  `yaml:"maxUploadMB"`
		// AllowDegraded keeps the server up without a classifier; /predict answers 503.
		AllowDegraded bool `yaml:"allowDegraded"`
	} `yaml:"server"`

	Model struct {
		Path            string   `yaml:"path"`
		URL             string   `yaml:"url"`
		DownloadRetries uint64   `yaml:"downloadRetries"`
		SharedLibrary   string   `yaml:"sharedLibrary"`
		InputName       string   `yaml:"inputName"`
		OutputName      string   `yaml:"outputName"`
		ImageSize       int      `yaml:"imageSize"`
		Resample        string   `yaml:"resample"`
		Labels          []string `yaml:"labels"`
	} `yaml:"model"`

	Metadata struct {
		Source   string `yaml:"source"`
		CSVPath  string `yaml:"csvPath"`
		Database string `yaml:"database"`
		Table    string `yaml:"table"`
	} `yaml:"metadata"`

	Storage struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"useSSL"`
	} `yaml:"storage"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a configuration that runs from the project root without a config file.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 5001
	cfg.Server.SecretKey = "dev-secret"
	cfg.Server.UploadDir = "uploads"
	cfg.Server.MaxUploadMB = 16

	cfg.Model.Path = "models/art_style_classifier.onnx"
	cfg.Model.ImageSize = 224
	cfg.Model.Resample = "bicubic"
	cfg.Model.Labels = append([]string(nil), DefaultLabels...)

	cfg.Metadata.Source = "csv"
	cfg.Metadata.CSVPath = "updated_classes_with_genres.csv"
	cfg.Metadata.Table = "paintings"

	cfg.Log.Level = "info"
	return &cfg
}

// Load reads the YAML file at path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	setString(&c.Server.SecretKey, "SECRET_KEY")
	setString(&c.Model.Path, "MODEL_PATH")
	setString(&c.Model.URL, "MODEL_URL")
	setString(&c.Model.SharedLibrary, "ONNXRUNTIME_LIB")
	setString(&c.Metadata.CSVPath, "METADATA_CSV")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Metadata.Database = v
		c.Metadata.Source = "postgres"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the values the startup sequence depends on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.maxUploadMB must be positive")
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.ImageSize <= 0 {
		return fmt.Errorf("model.imageSize must be positive")
	}
	if len(c.Model.Labels) < 2 {
		return fmt.Errorf("model.labels needs at least two entries, got %d", len(c.Model.Labels))
	}
	switch c.Metadata.Source {
	case "csv":
	case "postgres":
		if c.Metadata.Database == "" {
			return fmt.Errorf("metadata.database is required for the postgres source")
		}
	default:
		return fmt.Errorf("unknown metadata.source %q", c.Metadata.Source)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the multipart body limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// LogLevel maps log.level onto slog; unknown values fall back to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
