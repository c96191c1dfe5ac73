package twitter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig. Credentials are never read from
// the config file.
const (
	EnvUsername = "TWITTER_USERNAME"
	EnvPassword = "TWITTER_PASSWORD"
	EnvAccount  = "TWITTER_TARGET_ACCOUNT"
	EnvProxy    = "TWITTER_PROXY"
)

// Config holds every tunable of a collection run. It is passed by value to
// component constructors.
type Config struct {
	Account      string        `yaml:"account"`
	PlatformHost string        `yaml:"platform_host"`
	RepostMarker string        `yaml:"repost_marker"`
	Links        LinksConfig   `yaml:"links"`
	Records      RecordsConfig `yaml:"records"`
	Output       OutputConfig  `yaml:"output"`
	Session      SessionConfig `yaml:"session"`
	Log          LogConfig     `yaml:"log"`
	Credentials  Credentials   `yaml:"-"`
}

// LinksConfig tunes the link collector.
type LinksConfig struct {
	MaxLinks    int           `yaml:"max_links"`
	MaxScrolls  int           `yaml:"max_scrolls"`
	MaxRetries  int           `yaml:"max_retries"`
	ScrollDelay Window        `yaml:"scroll_delay"`
	RetryDelay  Window        `yaml:"retry_delay"`
	Driver      string        `yaml:"driver"` // "rod" or "chromedp"
	ShowBrowser bool          `yaml:"show_browser"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// RecordsConfig tunes the record collector.
type RecordsConfig struct {
	BatchSize  int `yaml:"batch_size"`
	MaxRecords int `yaml:"max_records"` // 0 means no cap
	MaxBatches int `yaml:"max_batches"` // 0 means no cap
	// BatchDelay is the fixed pause between batches.
	BatchDelay time.Duration `yaml:"batch_delay"`
	// RequestInterval spaces the page requests made inside one batch.
	RequestInterval time.Duration `yaml:"request_interval"`
}

// OutputConfig locates the artifacts. Empty file names default to
// <dir>/<account>-<kind>.<ext>.
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	URLsFile       string `yaml:"urls_file"`
	RecordsFile    string `yaml:"records_file"`
	FineTuningFile string `yaml:"finetuning_file"`
	LinksFile      string `yaml:"links_file"`
}

// SessionConfig controls cookie reuse and the outbound proxy.
type SessionConfig struct {
	CookieFile string `yaml:"cookie_file"`
	Proxy      string `yaml:"proxy"`
}

// LogConfig selects the zap logger built by the CLI.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Credentials are read only from the environment.
type Credentials struct {
	Username string
	Password string
}

// Validate reports the names of the missing credential variables.
func (c Credentials) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() Config {
	return Config{
		Account:      "degenspartan",
		PlatformHost: "twitter.com",
		RepostMarker: "RT @",
		Links: LinksConfig{
			MaxLinks:    100,
			MaxScrolls:  50,
			MaxRetries:  3,
			ScrollDelay: Window{Min: 2 * time.Second, Max: 5 * time.Second},
			RetryDelay:  Window{Min: 3 * time.Second, Max: 6 * time.Second},
			Driver:      "rod",
			PageTimeout: 30 * time.Second,
		},
		Records: RecordsConfig{
			BatchSize:  2000,
			BatchDelay: time.Second,
		},
		Output: OutputConfig{
			Dir: "pipeline",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path, its
// <name>.local.<ext> sibling, a .env file and the process environment, in
// increasing order of precedence. A missing YAML or .env file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, localPath(path)); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg, os.Getenv)

	return cfg, nil
}

// mergeFile decodes the YAML file at path over cfg. Only keys present in the
// file change cfg, so explicit zero values such as `repost_marker: ""` stick.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Override applies the non-zero fields of o on top of c. It is meant for
// command-line flags, where an unset flag is the zero value.
func (c *Config) Override(o Config) error {
	if err := mergo.Merge(c, o, mergo.WithOverride); err != nil {
		return fmt.Errorf("%w: apply overrides: %v", ErrConfiguration, err)
	}
	return nil
}

// localPath turns configs/config.yml into configs/config.local.yml.
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config, getenv func(string) string) {
	cfg.Credentials = Credentials{
		Username: getenv(EnvUsername),
		Password: getenv(EnvPassword),
	}
	if v := getenv(EnvAccount); v != "" {
		cfg.Account = v
	}
	if v := getenv(EnvProxy); v != "" {
		cfg.Session.Proxy = v
	}
}

// Validate checks the numeric limits and delay windows.
func (c Config) Validate() error {
	var problems []string
	if c.Account == "" {
		problems = append(problems, "account is required")
	}
	if c.PlatformHost == "" {
		problems = append(problems, "platform_host is required")
	}
	if c.Output.Dir == "" {
		problems = append(problems, "output.dir is required")
	}
	if c.Records.BatchSize <= 0 {
		problems = append(problems, "records.batch_size must be positive")
	}
	if c.Records.MaxRecords < 0 || c.Records.MaxBatches < 0 {
		problems = append(problems, "records limits must not be negative")
	}
	if c.Links.MaxLinks <= 0 {
		problems = append(problems, "links.max_links must be positive")
	}
	if c.Links.MaxScrolls <= 0 {
		problems = append(problems, "links.max_scrolls must be positive")
	}
	if c.Links.MaxRetries <= 0 {
		problems = append(problems, "links.max_retries must be positive")
	}
	if !c.Links.ScrollDelay.valid() || !c.Links.RetryDelay.valid() {
		problems = append(problems, "links delay windows need 0 <= min <= max")
	}
	switch c.Links.Driver {
	case "rod", "chromedp":
	default:
		problems = append(problems, fmt.Sprintf("unknown links.driver %q", c.Links.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// URLsPath is the newline-separated list of post URLs.
func (c Config) URLsPath() string {
	return c.outputPath(c.Output.URLsFile, "-urls.txt")
}

// RecordsPath is the JSON array of collected records.
func (c Config) RecordsPath() string {
	return c.outputPath(c.Output.RecordsFile, "-records.json")
}

// FineTuningPath is the JSONL fine-tuning dataset.
func (c Config) FineTuningPath() string {
	return c.outputPath(c.Output.FineTuningFile, "-finetuning.jsonl")
}

// LinksPath is the output of the link collector.
func (c Config) LinksPath() string {
	return c.outputPath(c.Output.LinksFile, "-links.txt")
}

func (c Config) outputPath(explicit, suffix string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.Output.Dir, c.Account+suffix)
}
