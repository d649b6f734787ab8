package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFavoriteEndpoint is the request path of the favorites listing API.
	DefaultFavoriteEndpoint = "/aweme/v1/web/aweme/favorite/"

	// DefaultUserAgent mimics a desktop Chrome browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

	// DefaultReferer is sent with every media request.
	DefaultReferer = "https://www.douyin.com/"

	envPrefix = "DYFAV_"
)

// Config holds all configuration options for dyfav
type Config struct {
	Capture  CaptureConfig  `yaml:"capture" toml:"capture" json:"capture"`
	Output   OutputConfig   `yaml:"output" toml:"output" json:"output"`
	Download DownloadConfig `yaml:"download" toml:"download" json:"download"`
	Retry    RetryConfig    `yaml:"retry" toml:"retry" json:"retry"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage" json:"storage"`
	Redis    RedisConfig    `yaml:"redis" toml:"redis" json:"redis"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging" json:"logging"`
}

// CaptureConfig describes where the HAR capture lives and what to pull from it
type CaptureConfig struct {
	// HARFiles are candidate capture paths; the first one that exists is used.
	HARFiles     []string `yaml:"har_files" toml:"har_files" json:"har_files"`
	Endpoint     string   `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
	SnapshotFile string   `yaml:"snapshot_file" toml:"snapshot_file" json:"snapshot_file"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" toml:"base_directory" json:"base_directory"`
}

// DownloadConfig holds media download configuration
type DownloadConfig struct {
	Enabled     bool          `yaml:"enabled" toml:"enabled" json:"enabled"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	UserAgent   string        `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	Referer     string        `yaml:"referer" toml:"referer" json:"referer"`
	ItemDelay   time.Duration `yaml:"item_delay" toml:"item_delay" json:"item_delay"`
	ImageDelay  time.Duration `yaml:"image_delay" toml:"image_delay" json:"image_delay"`
	Concurrency int           `yaml:"concurrency" toml:"concurrency" json:"concurrency"`
	// LockBackend is "memory" or "redis".
	LockBackend string `yaml:"lock_backend" toml:"lock_backend" json:"lock_backend"`
}

// RetryConfig controls the bounded retry policy around media fetches
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" toml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" toml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" toml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" toml:"jitter_factor" json:"jitter_factor"`
}

// StorageConfig selects and configures the metadata storage backend
type StorageConfig struct {
	// Backend is one of none, csv, json, sqlite, postgres, mongo.
	Backend       string `yaml:"backend" toml:"backend" json:"backend"`
	Directory     string `yaml:"directory" toml:"directory" json:"directory"`
	CrawlerType   string `yaml:"crawler_type" toml:"crawler_type" json:"crawler_type"`
	SQLitePath    string `yaml:"sqlite_path" toml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn" toml:"postgres_dsn" json:"postgres_dsn"`
	MongoURI      string `yaml:"mongo_uri" toml:"mongo_uri" json:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database" toml:"mongo_database" json:"mongo_database"`
	WordFrequency bool   `yaml:"word_frequency" toml:"word_frequency" json:"word_frequency"`
}

// RedisConfig is used by the redis item lock backend
type RedisConfig struct {
	Addr     string        `yaml:"addr" toml:"addr" json:"addr"`
	Password string        `yaml:"password" toml:"password" json:"password"`
	DB       int           `yaml:"db" toml:"db" json:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl" toml:"lock_ttl" json:"lock_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

var validBackends = map[string]bool{
	"none": true, "csv": true, "json": true, "sqlite": true, "postgres": true, "mongo": true,
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			HARFiles: []string{
				filepath.Join("data", "douyin", "fav", "www.douyin.com.har"),
				filepath.Join("data", "douyin", "fav", "all.json"),
			},
			Endpoint:     DefaultFavoriteEndpoint,
			SnapshotFile: filepath.Join("data", "douyin", "fav", "fav.json"),
		},
		Output: OutputConfig{
			BaseDirectory: filepath.Join("data", "douyin", "love"),
		},
		Download: DownloadConfig{
			Enabled:     true,
			Timeout:     30 * time.Second,
			UserAgent:   DefaultUserAgent,
			Referer:     DefaultReferer,
			ItemDelay:   500 * time.Millisecond,
			ImageDelay:  500 * time.Millisecond,
			Concurrency: 1,
			LockBackend: "memory",
		},
		Retry: RetryConfig{
			MaxAttempts:  1,
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Storage: StorageConfig{
			Backend:       "json",
			Directory:     filepath.Join("data", "douyin"),
			CrawlerType:   "like",
			SQLitePath:    filepath.Join("data", "douyin", "douyin.db"),
			MongoDatabase: "dyfav",
			WordFrequency: false,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			LockTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from DYFAV_* environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(envPrefix + "HAR_FILE"); v != "" {
		c.Capture.HARFiles = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv(envPrefix + "ENDPOINT"); v != "" {
		c.Capture.Endpoint = v
	}
	if v := os.Getenv(envPrefix + "SNAPSHOT_FILE"); v != "" {
		c.Capture.SnapshotFile = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Download.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCONCURRENCY: %w", envPrefix, err)
		}
		c.Download.Concurrency = n
	}
	if v := os.Getenv(envPrefix + "DOWNLOAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sDOWNLOAD_TIMEOUT: %w", envPrefix, err)
		}
		c.Download.Timeout = d
	}
	if v := os.Getenv(envPrefix + "LOCK_BACKEND"); v != "" {
		c.Download.LockBackend = v
	}
	if v := os.Getenv(envPrefix + "MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_ATTEMPTS: %w", envPrefix, err)
		}
		c.Retry.MaxAttempts = n
	}
	if v := os.Getenv(envPrefix + "STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(envPrefix + "POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(envPrefix + "MONGO_URI"); v != "" {
		c.Storage.MongoURI = v
	}
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(envPrefix + "REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or TOML file. The format is
// picked from the extension; anything other than .toml is read as YAML.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".dyfav.yaml",
		".dyfav.yml",
		".dyfav.toml",
		filepath.Join(home, ".config", "dyfav", "config.yaml"),
		filepath.Join(home, ".config", "dyfav", "config.toml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Capture.HARFiles) == 0 {
		errs = append(errs, errors.New("at least one capture file is required"))
	}
	if c.Capture.Endpoint == "" {
		errs = append(errs, errors.New("capture endpoint is required"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Download.Concurrency > 16 {
		errs = append(errs, errors.New("concurrency should not exceed 16"))
	}
	if c.Download.ItemDelay < 0 || c.Download.ImageDelay < 0 {
		errs = append(errs, errors.New("pacing delays cannot be negative"))
	}
	switch c.Download.LockBackend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required for the redis lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid lock backend %q", c.Download.LockBackend))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be >= 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	backend := strings.ToLower(c.Storage.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Errorf("invalid storage backend %q", c.Storage.Backend))
	}
	switch backend {
	case "csv", "json":
		if c.Storage.Directory == "" {
			errs = append(errs, errors.New("storage directory is required for file backends"))
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres DSN is required"))
		}
	case "mongo":
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("mongo URI is required"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save saves the configuration to a YAML or TOML file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["har"].(string); ok && v != "" {
		c.Capture.HARFiles = []string{v}
	}
	if v, ok := flags["snapshot"].(string); ok && v != "" {
		c.Capture.SnapshotFile = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["download-timeout"].(time.Duration); ok && v > 0 {
		c.Download.Timeout = v
	}
	if v, ok := flags["no-download"].(bool); ok && v {
		c.Download.Enabled = false
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["lock"].(string); ok && v != "" {
		c.Download.LockBackend = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// ResolveHARFile returns the first configured capture file that exists
func (c *Config) ResolveHARFile() (string, error) {
	for _, p := range c.Capture.HARFiles {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no capture file found, checked: %s", strings.Join(c.Capture.HARFiles, ", "))
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dyfav.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
