// Package config provides configuration loading for the ETL commands.
//
// Values resolve in three layers: built-in defaults, an optional YAML file,
// then OLIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBucket      = "brazil-retail-results"
	DefaultPrefix      = "results/output_csvs"
	DefaultQueriesDir  = "queries"
	DefaultOutputDir   = "results/csvs_out"
	DefaultInputDir    = "results/csvs_in"
	DefaultConcurrency = 4
)

// Config is the full runtime configuration.
type Config struct {
	Source SourceConfig `yaml:"source"`
	Store  StoreConfig  `yaml:"store"`
	Paths  PathsConfig  `yaml:"paths"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

// SourceConfig describes the relational source of truth.
type SourceConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslMode"`
	// DSN overrides the assembled connection string when set.
	DSN string `yaml:"dsn"`
}

// StoreConfig describes the remote artifact store.
type StoreConfig struct {
	EndpointURL     string  `yaml:"endpointUrl"`
	Region          string  `yaml:"region"`
	UseSSL          bool    `yaml:"useSSL"`
	AccessKeyID     string  `yaml:"accessKeyId"`
	SecretAccessKey string  `yaml:"secretAccessKey"`
	Bucket          string  `yaml:"bucket"`
	Prefix          string  `yaml:"prefix"`
	RootPath        string  `yaml:"rootPath"`
	EnsureBucket    bool    `yaml:"ensureBucket"`
	RateLimit       float64 `yaml:"rateLimit"`
	RateBurst       int     `yaml:"rateBurst"`
}

// PathsConfig holds local filesystem locations.
type PathsConfig struct {
	Queries       string `yaml:"queries"`
	Output        string `yaml:"output"`
	Input         string `yaml:"input"`
	ExportParquet bool   `yaml:"exportParquet"`
}

// SyncConfig tunes sync passes.
type SyncConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Store: StoreConfig{
			EndpointURL: "https://s3.amazonaws.com",
			Region:      "us-east-1",
			Bucket:      DefaultBucket,
			Prefix:      DefaultPrefix,
		},
		Paths: PathsConfig{
			Queries: DefaultQueriesDir,
			Output:  DefaultOutputDir,
			Input:   DefaultInputDir,
		},
		Sync: SyncConfig{Concurrency: DefaultConcurrency},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves configuration from defaults, the optional YAML file at path, and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Bucket == "" {
		errs = append(errs, errors.New("store.bucket is required"))
	}
	if c.Paths.Output == "" || c.Paths.Input == "" {
		errs = append(errs, errors.New("paths.output and paths.input are required"))
	}
	if c.Sync.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be >= 1, got %d", c.Sync.Concurrency))
	}
	if c.Store.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("store.rateLimit must be >= 0, got %v", c.Store.RateLimit))
	}
	return errors.Join(errs...)
}

// ConnectionString builds the driver-specific DSN.
func (s SourceConfig) ConnectionString() string {
	if s.DSN != "" {
		return s.DSN
	}
	switch s.Driver {
	case "sqlite":
		return s.Database
	case "pgx":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.Host, s.Port, s.User, s.Password, s.Database, s.SSLMode,
		)
	}
}

func (c *Config) applyEnv() {
	c.Source.Driver = getEnv("OLIST_DB_DRIVER", c.Source.Driver)
	c.Source.Host = getEnv("OLIST_DB_HOST", c.Source.Host)
	c.Source.Port = getEnvInt("OLIST_DB_PORT", c.Source.Port)
	c.Source.Database = getEnv("OLIST_DB_NAME", c.Source.Database)
	c.Source.User = getEnv("OLIST_DB_USER", c.Source.User)
	c.Source.Password = getEnv("OLIST_DB_PASS", c.Source.Password)
	c.Source.SSLMode = getEnv("OLIST_DB_SSLMODE", c.Source.SSLMode)
	c.Source.DSN = getEnv("OLIST_DB_DSN", c.Source.DSN)

	c.Store.EndpointURL = getEnv("OLIST_STORE_ENDPOINT", c.Store.EndpointURL)
	c.Store.Region = getEnv("OLIST_STORE_REGION", c.Store.Region)
	c.Store.AccessKeyID = getEnv("OLIST_STORE_ACCESS_KEY", getEnv("AWS_ACCESS_KEY_ID", c.Store.AccessKeyID))
	c.Store.SecretAccessKey = getEnv("OLIST_STORE_SECRET_KEY", getEnv("AWS_SECRET_ACCESS_KEY", c.Store.SecretAccessKey))
	c.Store.Bucket = getEnv("OLIST_STORE_BUCKET", c.Store.Bucket)
	c.Store.Prefix = getEnv("OLIST_STORE_PREFIX", c.Store.Prefix)
	c.Store.RootPath = getEnv("OLIST_STORE_ROOT", c.Store.RootPath)
	c.Store.RateLimit = getEnvFloat("OLIST_STORE_RATE_LIMIT", c.Store.RateLimit)
	c.Store.RateBurst = getEnvInt("OLIST_STORE_RATE_BURST", c.Store.RateBurst)
	c.Store.EnsureBucket = getEnvBool("OLIST_STORE_ENSURE_BUCKET", c.Store.EnsureBucket)
	c.Store.UseSSL = getEnvBool("OLIST_STORE_USE_SSL", c.Store.UseSSL)

	c.Paths.Queries = getEnv("OLIST_QUERIES_DIR", c.Paths.Queries)
	c.Paths.Output = getEnv("OLIST_OUTPUT_DIR", c.Paths.Output)
	c.Paths.Input = getEnv("OLIST_INPUT_DIR", c.Paths.Input)

	c.Sync.Concurrency = getEnvInt("OLIST_SYNC_CONCURRENCY", c.Sync.Concurrency)

	c.Log.Level = getEnv("OLIST_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("OLIST_LOG_FORMAT", c.Log.Format)
}

func (c *Config) normalize() {
	c.Store.Prefix = strings.Trim(c.Store.Prefix, "/")
	if c.Store.RateLimit > 0 && c.Store.RateBurst <= 0 {
		c.Store.RateBurst = 1
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
