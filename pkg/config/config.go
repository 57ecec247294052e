package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"storefront/client"
	"storefront/store"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`
	HTTPPort int    `yaml:"http_port"`

	BackendURL     string        `yaml:"backend_url"`
	// BackendTimeout bounds each backend request. Zero means no limit.
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	Storage StorageConfig `yaml:"storage"`

	ImageConcurrency int  `yaml:"image_concurrency"`
	TraceStdout      bool `yaml:"trace_stdout"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Dir         string `yaml:"dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisURL    string `yaml:"redis_url"`
	Namespace   string `yaml:"namespace"`
}

// StoreOptions maps the storage section onto store.Open.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Storage.Driver,
		Dir:         c.Storage.Dir,
		PostgresDSN: c.Storage.PostgresDSN,
		RedisURL:    c.Storage.RedisURL,
	}
}

func defaults() Config {
	return Config{
		AppEnv:     "dev",
		LogLevel:   "info",
		HTTPPort:   8081,
		BackendURL: client.DefaultBaseURL,
		Storage: StorageConfig{
			Driver:    store.DriverFile,
			Dir:       "data",
			Namespace: "storefront",
		},
		ImageConcurrency: 8,
	}
}

// Load builds the config from defaults, then the YAML file named by
// STOREFRONT_CONFIG (if set), then the environment.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", cfg.BackendTimeout)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Dir = getEnv("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.PostgresDSN = getEnv("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.RedisURL = getEnv("REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.Namespace = getEnv("STORAGE_NAMESPACE", cfg.Storage.Namespace)
	cfg.ImageConcurrency = getEnvInt("IMAGE_CONCURRENCY", cfg.ImageConcurrency)
	cfg.TraceStdout = getEnvBool("TRACE_STDOUT", cfg.TraceStdout)
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if c.BackendTimeout < 0 {
		errs = append(errs, fmt.Errorf("backend_timeout %s is negative", c.BackendTimeout))
	}
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is required"))
	}
	switch c.Storage.Driver {
	case store.DriverFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file driver"))
		}
	case store.DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	case store.DriverRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis driver"))
		}
	case store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}
