package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"` // development or production

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // mongo or memory
		URI    string `yaml:"uri"`
		Name   string `yaml:"name"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`

	Storage struct {
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Endpoint  string `yaml:"endpoint"` // S3-compatible services (MinIO, R2)
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		Users     time.Duration `yaml:"users"`
		ImageURLs time.Duration `yaml:"imageUrls"`
	} `yaml:"cache"`

	Goals struct {
		DefaultTimeZone     string        `yaml:"defaultTimeZone"`
		StreakWarningWindow time.Duration `yaml:"streakWarningWindow"`
		BackgroundTimeout   time.Duration `yaml:"backgroundTimeout"`
	} `yaml:"goals"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	SentryDSN string `yaml:"sentryDsn"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	var cfg Config
	cfg.Env = "development"
	cfg.Server.Port = 1313
	cfg.Database.Driver = "mongo"
	cfg.Cache.Users = 5 * time.Minute
	cfg.Cache.ImageURLs = time.Hour
	cfg.Goals.DefaultTimeZone = "Local"
	cfg.Goals.StreakWarningWindow = time.Hour
	cfg.Goals.BackgroundTimeout = 30 * time.Second
	cfg.CORS.Origins = []string{"http://localhost:5173"}
	return &cfg
}

// LoadConfig reads the configuration file and applies environment overrides.
// A .env file in the working directory is loaded first if present.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("APP_ENV", &c.Env)
	str("MONGODB_URI", &c.Database.URI)
	str("MONGODB_DATABASE", &c.Database.Name)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("AWS_REGION", &c.Storage.Region)
	str("S3_BUCKET_NAME", &c.Storage.Bucket)
	str("AWS_ACCESS_KEY_ID", &c.Storage.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.Storage.SecretKey)
	str("S3_ENDPOINT", &c.Storage.Endpoint)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("SENTRY_DSN", &c.SentryDSN)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env != "production"
}

// StorageEnabled reports whether proof images go to S3.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" {
			errs = append(errs, errors.New("database.uri is required for the mongo driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be mongo or memory", c.Database.Driver))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required"))
	}
	if c.StorageEnabled() && c.Storage.Region == "" {
		errs = append(errs, errors.New("storage.region is required when storage.bucket is set"))
	}
	if c.Cache.Users <= 0 {
		errs = append(errs, errors.New("cache.users must be positive"))
	}
	if c.Cache.ImageURLs <= 0 {
		errs = append(errs, errors.New("cache.imageUrls must be positive"))
	}
	if c.Goals.StreakWarningWindow < 0 {
		errs = append(errs, errors.New("goals.streakWarningWindow must not be negative"))
	}
	if c.Goals.DefaultTimeZone != "Local" {
		if _, err := time.LoadLocation(c.Goals.DefaultTimeZone); err != nil {
			errs = append(errs, fmt.Errorf("goals.defaultTimeZone: %w", err))
		}
	}
	return errors.Join(errs...)
}
