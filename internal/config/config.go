package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Updater   UpdaterConfig   `yaml:"updater"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scraping  ScrapingConfig  `yaml:"scraping"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Debug bool   `yaml:"debug"`
	Port  int    `yaml:"port"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	// Paths below default to subdirectories of DataDir.
	CatalogDir     string `yaml:"catalog_dir"`
	StateFile      string `yaml:"state_file"`
	CheckpointDir  string `yaml:"checkpoint_dir"`
	ChangelogDir   string `yaml:"changelog_dir"`
	HistoryBackend string `yaml:"history_backend"` // memory | pebble
	HistoryDir     string `yaml:"history_dir"`
}

type PricingConfig struct {
	SARPerUSD        float64 `yaml:"sar_per_usd"`
	MarketMultiplier float64 `yaml:"market_multiplier"`
	// ReferenceYear pins the estimation age function; 0 follows the clock.
	ReferenceYear int `yaml:"reference_year"`
}

type UpdaterConfig struct {
	Brands            []string      `yaml:"brands"`
	BatchSize         int           `yaml:"batch_size"`
	InterBatchDelay   time.Duration `yaml:"inter_batch_delay"`
	FreshnessYears    int           `yaml:"freshness_years"`
	EntryConcurrency  int           `yaml:"entry_concurrency"`
	ResumeInterrupted bool          `yaml:"resume_interrupted"`
	SaveAttempts      int           `yaml:"save_attempts"`
	SaveBackoff       time.Duration `yaml:"save_backoff"`
}

type SchedulerConfig struct {
	// Disabled keeps the API up without the recurring loop.
	Disabled bool `yaml:"disabled"`
	// Interval applies until one is persisted through the API.
	Interval time.Duration `yaml:"interval"`
	WarmUp   time.Duration `yaml:"warm_up"`
}

type KafkaConfig struct {
	Bootstrap           string `yaml:"bootstrap"`
	ChangelogTopic      string `yaml:"changelog_topic"`
	CheckpointTopic     string `yaml:"checkpoint_topic"`
	CheckpointKeyPrefix string `yaml:"checkpoint_key_prefix"`
}

type ScrapingConfig struct {
	UserAgent      string                  `yaml:"user_agent"`
	AcceptLanguage string                  `yaml:"accept_language"`
	Timeout        time.Duration           `yaml:"timeout"`
	RateLimit      RateLimitConfig         `yaml:"rate_limit"`
	RetryPolicy    RetryPolicyConfig       `yaml:"retry_policy"`
	Sources        map[string]SourceConfig `yaml:"sources"`
}

type RateLimitConfig struct {
	Parallelism int           `yaml:"parallelism"`
	RandomDelay time.Duration `yaml:"random_delay"`
}

type RetryPolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// LoadConfig reads dir/app.yaml and the optional dir/scraping.yaml overlay,
// after loading .env into the environment. Environment variables override
// the files, and defaults fill whatever is left.
func LoadConfig(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := readYAML(filepath.Join(dir, "app.yaml"), cfg); err != nil {
		return nil, err
	}
	if err := readYAML(filepath.Join(dir, "scraping.yaml"), &cfg.Scraping); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.App.Port = p
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("KAFKA_BOOTSTRAP"); v != "" {
		c.Kafka.Bootstrap = v
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		c.Storage.HistoryBackend = v
	}
	if v := os.Getenv("LOG_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEBUG: %w", err)
		}
		c.App.Debug = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "phone-prices"
	}
	if c.App.Port == 0 {
		c.App.Port = 8080
	}

	s := &c.Storage
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.CatalogDir == "" {
		s.CatalogDir = filepath.Join(s.DataDir, "catalog")
	}
	if s.StateFile == "" {
		s.StateFile = filepath.Join(s.DataDir, "scheduler-state.json")
	}
	if s.CheckpointDir == "" {
		s.CheckpointDir = filepath.Join(s.DataDir, "checkpoints")
	}
	if s.ChangelogDir == "" {
		s.ChangelogDir = filepath.Join(s.DataDir, "changelog")
	}
	s.HistoryBackend = strings.ToLower(strings.TrimSpace(s.HistoryBackend))
	if s.HistoryBackend == "" {
		s.HistoryBackend = "memory"
	}
	if s.HistoryDir == "" {
		s.HistoryDir = filepath.Join(s.DataDir, "history")
	}

	if c.Pricing.SARPerUSD == 0 {
		c.Pricing.SARPerUSD = 3.75
	}
	if c.Pricing.MarketMultiplier == 0 {
		c.Pricing.MarketMultiplier = 1.10
	}

	u := &c.Updater
	if len(u.Brands) == 0 {
		u.Brands = []string{"Samsung", "Apple"}
	}
	if u.BatchSize == 0 {
		u.BatchSize = 3
	}
	if u.InterBatchDelay == 0 {
		u.InterBatchDelay = 8 * time.Second
	}
	if u.FreshnessYears == 0 {
		u.FreshnessYears = 3
	}
	if u.EntryConcurrency == 0 {
		u.EntryConcurrency = 1
	}
	if u.SaveAttempts == 0 {
		u.SaveAttempts = 3
	}
	if u.SaveBackoff == 0 {
		u.SaveBackoff = 500 * time.Millisecond
	}

	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 24 * time.Hour
	}
	if c.Scheduler.WarmUp == 0 {
		c.Scheduler.WarmUp = 5 * time.Second
	}

	k := &c.Kafka
	if k.ChangelogTopic == "" {
		k.ChangelogTopic = "phone-prices.changelog"
	}
	if k.CheckpointTopic == "" {
		k.CheckpointTopic = "phone-prices.checkpoints"
	}
	if k.CheckpointKeyPrefix == "" {
		k.CheckpointKeyPrefix = "checkpoint-"
	}

	sc := &c.Scraping
	if sc.Timeout == 0 {
		sc.Timeout = 15 * time.Second
	}
	if sc.RateLimit.Parallelism == 0 {
		sc.RateLimit.Parallelism = 2
	}
	if sc.RetryPolicy.MaxAttempts == 0 {
		sc.RetryPolicy.MaxAttempts = 2
	}
	if sc.RetryPolicy.Backoff == 0 {
		sc.RetryPolicy.Backoff = time.Second
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.Pricing.SARPerUSD <= 0 {
		errs = append(errs, errors.New("pricing.sar_per_usd must be positive"))
	}
	if c.Pricing.MarketMultiplier <= 0 {
		errs = append(errs, errors.New("pricing.market_multiplier must be positive"))
	}
	if c.Updater.BatchSize <= 0 {
		errs = append(errs, errors.New("updater.batch_size must be positive"))
	}
	if c.Updater.InterBatchDelay < 0 {
		errs = append(errs, errors.New("updater.inter_batch_delay must not be negative"))
	}
	if c.Updater.EntryConcurrency <= 0 {
		errs = append(errs, errors.New("updater.entry_concurrency must be positive"))
	}
	if c.Scheduler.Interval < time.Hour || c.Scheduler.Interval > 168*time.Hour {
		errs = append(errs, errors.New("scheduler.interval must be between 1h and 168h"))
	}
	switch c.Storage.HistoryBackend {
	case "memory", "pebble":
	default:
		errs = append(errs, fmt.Errorf("storage.history_backend %q is not memory or pebble", c.Storage.HistoryBackend))
	}
	if c.Scraping.Timeout <= 0 {
		errs = append(errs, errors.New("scraping.timeout must be positive"))
	}
	return errors.Join(errs...)
}
