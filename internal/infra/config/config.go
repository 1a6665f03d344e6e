package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

var (
	ErrMissingBaseURL    = errors.New("config: API_BASE_URL is required")
	ErrMissingProperty   = errors.New("config: PROPERTY_ID is required")
	ErrMissingMongoURI   = errors.New("config: MONGO_URI is required for mongo storage")
	ErrUnknownStorage    = errors.New("config: STORAGE_MODE must be memory or mongo")
	ErrMissingKafka      = errors.New("config: KAFKA_BROKERS is required to follow calendar changes")
	ErrInvalidBatchSize  = errors.New("config: PAGES_PER_BATCH must be positive")
	ErrInvalidPrefetch   = errors.New("config: PREFETCH_THRESHOLD must not be negative")
	ErrInvalidAPITimeout = errors.New("config: API_TIMEOUT must be positive")
)

// Config holds settings for both the console and the reference server. An
// optional YAML file named by OWNERCAL_CONFIG is applied first; environment
// variables override it.
type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	// console
	APIBaseURL        string        `yaml:"api_base_url"`
	APITimeout        time.Duration `yaml:"api_timeout"`
	PropertyID        string        `yaml:"property_id"`
	PagesPerBatch     int           `yaml:"pages_per_batch"`
	PrefetchThreshold int           `yaml:"prefetch_threshold"`
	DefaultPrice      string        `yaml:"default_price"`

	// server
	HTTPAddr           string          `yaml:"http_addr"`
	StorageMode        string          `yaml:"storage_mode"`
	MongoURI           string          `yaml:"mongo_uri"`
	MongoDB            string          `yaml:"mongo_db"`
	PropertyFixtures   string          `yaml:"property_fixtures"`
	OutboxPollInterval time.Duration   `yaml:"outbox_poll_interval"`
	RetryBackoff       []time.Duration `yaml:"retry_backoff"`

	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`
	KafkaGroupID     string   `yaml:"kafka_group_id"`
}

func Default() Config {
	return Config{
		Env:                "dev",
		LogLevel:           "info",
		APIBaseURL:         "http://localhost:8080",
		APITimeout:         10 * time.Second,
		PagesPerBatch:      3,
		PrefetchThreshold:  1,
		DefaultPrice:       "5000",
		HTTPAddr:           ":8080",
		StorageMode:        StorageMemory,
		MongoDB:            "ownercal",
		OutboxPollInterval: 500 * time.Millisecond,
		RetryBackoff:       []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		KafkaGroupID:       "ownercal-console",
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, in that order.
func Load() (Config, error) {
	return LoadPath(os.Getenv("OWNERCAL_CONFIG"))
}

// LoadPath is Load with an explicit YAML file; an empty path skips the file.
func LoadPath(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.PropertyID = getEnv("PROPERTY_ID", c.PropertyID)
	c.DefaultPrice = getEnv("DEFAULT_PRICE", c.DefaultPrice)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.StorageMode = strings.ToLower(getEnv("STORAGE_MODE", c.StorageMode))
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDB = getEnv("MONGO_DB", c.MongoDB)
	c.PropertyFixtures = getEnv("PROPERTY_FIXTURES", c.PropertyFixtures)
	c.KafkaTopicPrefix = getEnv("KAFKA_TOPIC_PREFIX", c.KafkaTopicPrefix)
	c.KafkaGroupID = getEnv("KAFKA_GROUP_ID", c.KafkaGroupID)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}

	var err error
	if c.APITimeout, err = parseDurationEnv("API_TIMEOUT", c.APITimeout); err != nil {
		return err
	}
	if c.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", c.OutboxPollInterval); err != nil {
		return err
	}
	if c.PagesPerBatch, err = parseIntEnv("PAGES_PER_BATCH", c.PagesPerBatch); err != nil {
		return err
	}
	if c.PrefetchThreshold, err = parseIntEnv("PREFETCH_THRESHOLD", c.PrefetchThreshold); err != nil {
		return err
	}
	if raw := os.Getenv("RETRY_BACKOFF"); raw != "" {
		backoff, err := parseBackoff(raw)
		if err != nil {
			return err
		}
		c.RetryBackoff = backoff
	}
	return nil
}

// ValidateConsole checks what `ownercal console` needs.
func (c Config) ValidateConsole(follow bool) error {
	var errs []error
	if strings.TrimSpace(c.APIBaseURL) == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if strings.TrimSpace(c.PropertyID) == "" {
		errs = append(errs, ErrMissingProperty)
	}
	if c.APITimeout <= 0 {
		errs = append(errs, ErrInvalidAPITimeout)
	}
	if c.PagesPerBatch <= 0 {
		errs = append(errs, ErrInvalidBatchSize)
	}
	if c.PrefetchThreshold < 0 {
		errs = append(errs, ErrInvalidPrefetch)
	}
	if follow && len(c.KafkaBrokers) == 0 {
		errs = append(errs, ErrMissingKafka)
	}
	return errors.Join(errs...)
}

// ValidateServe checks what `ownercal serve` needs.
func (c Config) ValidateServe() error {
	switch c.StorageMode {
	case StorageMemory:
		return nil
	case StorageMongo:
		if c.MongoURI == "" {
			return ErrMissingMongoURI
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.StorageMode)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBackoff(raw string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range splitList(raw) {
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", part, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
