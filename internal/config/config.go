// Package config resolves server settings from defaults, an optional YAML
// file and the environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr      string `yaml:"http_addr"`
	GRPCAddr      string `yaml:"grpc_addr"`
	StorageDriver string `yaml:"storage_driver"` // mysql | memory
	MySQLDSN      string `yaml:"mysql_dsn"`
	RedisAddr     string `yaml:"redis_addr"` // empty disables the shared cache
	AutoMigrate   bool   `yaml:"auto_migrate"`

	JWTSecret string        `yaml:"jwt_secret"`
	AnonKey   string        `yaml:"anon_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	WorkerCount int `yaml:"worker_count"`
	QueueSize   int `yaml:"queue_size"`

	CacheFreshTTL time.Duration `yaml:"cache_fresh_ttl"`
	CacheStaleTTL time.Duration `yaml:"cache_stale_ttl"`

	Rules Rules `yaml:"rules"`
}

// Rules are the business limits enforced by the services.
type Rules struct {
	RecalibrationWindowDays int `yaml:"recalibration_window_days"`
	LeaveAllowanceDays      int `yaml:"leave_allowance_days"`
	MinTimesheetHours       int `yaml:"min_timesheet_hours"`
}

func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		GRPCAddr:      ":50051",
		StorageDriver: "mysql",
		MySQLDSN:      "root:root@tcp(localhost:3306)/momo?parseTime=true&multiStatements=true",
		RedisAddr:     "localhost:6379",
		TokenTTL:      12 * time.Hour,
		WorkerCount:   4,
		QueueSize:     1000,
		CacheFreshTTL: 30 * time.Second,
		CacheStaleTTL: 10 * time.Minute,
		Rules: Rules{
			RecalibrationWindowDays: 5,
			LeaveAllowanceDays:      18,
			MinTimesheetHours:       4,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then MOMO_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("MOMO_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("MOMO_HTTP_ADDR", &cfg.HTTPAddr)
	str("MOMO_GRPC_ADDR", &cfg.GRPCAddr)
	str("MOMO_STORAGE", &cfg.StorageDriver)
	str("MYSQL_DSN", &cfg.MySQLDSN)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("MOMO_JWT_SECRET", &cfg.JWTSecret)
	str("MOMO_ANON_KEY", &cfg.AnonKey)
	dur("MOMO_TOKEN_TTL", &cfg.TokenTTL)
	num("MOMO_WORKERS", &cfg.WorkerCount)
	num("MOMO_QUEUE_SIZE", &cfg.QueueSize)
	dur("MOMO_CACHE_FRESH_TTL", &cfg.CacheFreshTTL)
	dur("MOMO_CACHE_STALE_TTL", &cfg.CacheStaleTTL)
	num("MOMO_RECALIBRATION_WINDOW_DAYS", &cfg.Rules.RecalibrationWindowDays)
	num("MOMO_LEAVE_ALLOWANCE_DAYS", &cfg.Rules.LeaveAllowanceDays)
	num("MOMO_MIN_TIMESHEET_HOURS", &cfg.Rules.MinTimesheetHours)
	if v, ok := os.LookupEnv("MOMO_AUTO_MIGRATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MOMO_AUTO_MIGRATE: %w", err))
		}
		cfg.AutoMigrate = b
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (MOMO_JWT_SECRET)"))
	}
	if c.AnonKey == "" {
		errs = append(errs, errors.New("anon key is required (MOMO_ANON_KEY)"))
	}
	switch c.StorageDriver {
	case "memory":
	case "mysql":
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("mysql dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("worker count must be positive"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("queue size must be positive"))
	}
	if c.CacheStaleTTL < c.CacheFreshTTL {
		errs = append(errs, errors.New("cache stale ttl must not be shorter than fresh ttl"))
	}
	if w := c.Rules.RecalibrationWindowDays; w < 1 || w > 28 {
		errs = append(errs, fmt.Errorf("recalibration window must be 1..28 days, got %d", w))
	}
	if c.Rules.LeaveAllowanceDays < 0 {
		errs = append(errs, errors.New("leave allowance must not be negative"))
	}
	if h := c.Rules.MinTimesheetHours; h < 1 || h > 24 {
		errs = append(errs, fmt.Errorf("minimum timesheet hours must be 1..24, got %d", h))
	}
	return errors.Join(errs...)
}
