package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"shortlink/internal/cache"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Service  ServiceConfig  `yaml:"service"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string        `yaml:"driver"`
	DSN      string        `yaml:"dsn"`
	MaxConns int32         `yaml:"max_conns"`
	Timeout  time.Duration `yaml:"timeout"`
	Migrate  bool          `yaml:"migrate"`
}

type RedisConfig struct {
	URL        string        `yaml:"url"`
	Addr       string        `yaml:"addr"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ServiceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	ClickTimeout time.Duration `yaml:"click_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			MaxConns: 10,
			Timeout:  5 * time.Second,
			Migrate:  true,
		},
		Redis: RedisConfig{
			MaxRetries: 3,
			Timeout:    time.Second,
		},
		Service: ServiceConfig{
			BaseURL:      "http://localhost:8080",
			CacheTTL:     time.Hour,
			ClickTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A missing .env file is not an error.
// An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
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
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "env %s", key)
		}
		*dst = d
		return nil
	}

	str("PORT", &c.Server.Port)
	str("BASE_URL", &c.Service.BaseURL)
	str("STORE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	for key, dst := range map[string]*time.Duration{
		"CACHE_TTL":     &c.Service.CacheTTL,
		"STORE_TIMEOUT": &c.Database.Timeout,
		"CLICK_TIMEOUT": &c.Service.ClickTimeout,
		"REDIS_TIMEOUT": &c.Redis.Timeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("REDIS_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "env REDIS_MAX_RETRIES")
		}
		c.Redis.MaxRetries = n
	}
	if v := os.Getenv("MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "env MIGRATE")
		}
		c.Database.Migrate = b
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("DATABASE_DSN not set")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", c.Database.Driver)
	}
	if c.Server.Port == "" {
		return errors.New("port must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"cache ttl":     c.Service.CacheTTL,
		"store timeout": c.Database.Timeout,
		"click timeout": c.Service.ClickTimeout,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Redis.MaxRetries < 0 {
		return errors.Errorf("redis max retries must not be negative, got %d", c.Redis.MaxRetries)
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func (c *Config) RedisOptions() cache.ClientOptions {
	return cache.ClientOptions{
		URL:        c.Redis.URL,
		Addr:       c.Redis.Addr,
		MaxRetries: c.Redis.MaxRetries,
		Timeout:    c.Redis.Timeout,
	}
}
