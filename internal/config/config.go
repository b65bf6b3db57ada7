// Package config loads the worker configuration from an optional YAML file,
// .env files and CITYPAPER_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"citypaper/internal/apperrors"
	"citypaper/internal/env"
	"citypaper/internal/models"

	"github.com/spf13/viper"
)

// Config is the root configuration passed explicitly to every component.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Git      GitConfig      `mapstructure:"git"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	// Root is the project root; relative paths below are resolved against it.
	Root      string `mapstructure:"root"`
	OutputDir string `mapstructure:"output_dir"`
}

type RendererConfig struct {
	Dir          string                `mapstructure:"dir"`
	Command      string                `mapstructure:"command"`
	Script       string                `mapstructure:"script"`
	MaxAttempts  int                   `mapstructure:"max_attempts"`
	RetryDelay   time.Duration         `mapstructure:"retry_delay"`
	PollInterval time.Duration         `mapstructure:"poll_interval"`
	PollAttempts int                   `mapstructure:"poll_attempts"`
	Formats      []models.OutputFormat `mapstructure:"formats"`
}

// ScratchDir is the renderer's shared output directory.
func (r RendererConfig) ScratchDir() string {
	return filepath.Join(r.Dir, "posters")
}

// ThemesDir holds one JSON file per theme.
func (r RendererConfig) ThemesDir() string {
	return filepath.Join(r.Dir, "themes")
}

type GeocoderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PaddingFactor float64       `mapstructure:"padding_factor"`
}

type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// Configured reports whether uploads can be attempted at all.
func (s StorageConfig) Configured() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

// PublicURL returns the base under which uploaded keys are reachable.
func (s StorageConfig) PublicURL() string {
	if s.PublicBaseURL != "" {
		return strings.TrimRight(s.PublicBaseURL, "/")
	}
	scheme := "http"
	if s.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, s.Endpoint, s.Bucket)
}

type CatalogConfig struct {
	Path        string `mapstructure:"path"`
	MergeMaps   bool   `mapstructure:"merge_maps"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type GitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RepoDir string `mapstructure:"repo_dir"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether publish events should be produced.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. path may name an explicit YAML file; when empty,
// config.yaml is looked up in "." and "./configs" and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeConfig, "read config file", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, apperrors.Wrap(apperrors.ErrCodeConfig, "read config file", err)
			}
		}
	}

	// CITYPAPER_STORAGE_BUCKET -> storage.bucket
	v.SetEnvPrefix("CITYPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfig, "unmarshal config", err)
	}

	overrideFromEnv(&cfg)
	cfg.resolvePaths()
	if len(cfg.Renderer.Formats) == 0 {
		cfg.Renderer.Formats = models.DefaultFormats()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.root", ".")
	v.SetDefault("app.output_dir", "worker/output")

	v.SetDefault("renderer.dir", "worker/maptoposter")
	v.SetDefault("renderer.command", "python3")
	v.SetDefault("renderer.script", "create_map_poster.py")
	v.SetDefault("renderer.max_attempts", 3)
	v.SetDefault("renderer.retry_delay", 5*time.Second)
	v.SetDefault("renderer.poll_interval", time.Second)
	v.SetDefault("renderer.poll_attempts", 5)

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "city_paper_worker")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.padding_factor", 1.05)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "citypaper-maps")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("catalog.path", "data/cities.json")
	v.SetDefault("catalog.merge_maps", false)
	v.SetDefault("catalog.postgres_url", "")

	v.SetDefault("git.enabled", true)
	v.SetDefault("git.repo_dir", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv fills storage credentials from the MinIO variable names when
// the prefixed ones are absent.
func overrideFromEnv(cfg *Config) {
	if cfg.Storage.Endpoint == "" {
		if val, ok := env.Lookup("MINIO_ENDPOINT"); ok {
			cfg.Storage.Endpoint = val
		}
	}
	if cfg.Storage.AccessKey == "" {
		if val, ok := env.Lookup("MINIO_ACCESS_KEY"); ok {
			cfg.Storage.AccessKey = val
		}
	}
	if cfg.Storage.SecretKey == "" {
		if val, ok := env.Lookup("MINIO_SECRET_KEY"); ok {
			cfg.Storage.SecretKey = val
		}
	}
	if cfg.Catalog.PostgresURL == "" {
		if val, ok := env.Lookup("DATABASE_URL"); ok {
			cfg.Catalog.PostgresURL = val
		}
	}
}

func (c *Config) resolvePaths() {
	root := c.App.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c.App.Root = root
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	c.App.OutputDir = resolve(c.App.OutputDir)
	c.Renderer.Dir = resolve(c.Renderer.Dir)
	c.Catalog.Path = resolve(c.Catalog.Path)
	if c.Git.RepoDir == "" {
		c.Git.RepoDir = root
	} else {
		c.Git.RepoDir = resolve(c.Git.RepoDir)
	}
	c.Metrics.Textfile = resolve(c.Metrics.Textfile)
}

// Validate checks that required fields are present and sane. Missing storage
// credentials are not an error; uploads degrade to a no-op.
func (c *Config) Validate() error {
	var errs []string

	if c.App.OutputDir == "" {
		errs = append(errs, "app.output_dir is required")
	}
	if c.Renderer.Dir == "" {
		errs = append(errs, "renderer.dir is required")
	}
	if c.Renderer.Command == "" {
		errs = append(errs, "renderer.command is required")
	}
	if c.Renderer.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("renderer.max_attempts must be >= 1, got %d", c.Renderer.MaxAttempts))
	}
	if c.Renderer.PollAttempts < 0 {
		errs = append(errs, "renderer.poll_attempts must not be negative")
	}
	if c.Renderer.RetryDelay < 0 || c.Renderer.PollInterval < 0 {
		errs = append(errs, "renderer delays must not be negative")
	}
	if c.Geocoder.PaddingFactor < 1.0 {
		errs = append(errs, fmt.Sprintf("geocoder.padding_factor must be >= 1.0, got %g", c.Geocoder.PaddingFactor))
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, "geocoder.base_url is required")
	}
	if c.Catalog.Path == "" {
		errs = append(errs, "catalog.path is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "kafka.topic is required when kafka.brokers is set")
	}
	seen := make(map[string]struct{}, len(c.Renderer.Formats))
	for _, f := range c.Renderer.Formats {
		if f.Name == "" || f.Width <= 0 || f.Height <= 0 {
			errs = append(errs, fmt.Sprintf("renderer.formats: invalid entry %+v", f))
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, fmt.Sprintf("renderer.formats: duplicate name %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}

	if len(errs) > 0 {
		return apperrors.New(apperrors.ErrCodeConfig, "config validation failed:\n  - "+strings.Join(errs, "\n  - "))
	}
	return nil
}
