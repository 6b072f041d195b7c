package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// ErrHelp is returned when --help was requested; the usage has already been printed.
var ErrHelp = errors.New("help requested")

type rawCfg struct {
	// Feed sources
	Feeds        []string `long:"feed" env:"RSS_FEEDS" env-delim:"," default:"https://feeds.bbci.co.uk/news/rss.xml" default:"http://rss.slashdot.org/Slashdot/slashdotMain" description:"Feed URL to poll (repeatable, comma separated in env)"`
	FeedsDir     string   `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	PollInterval int      `long:"poll-interval" env:"POLL_INTERVAL" default:"900" description:"Default poll interval per feed in seconds"`
	MaxItems     int      `long:"max-items" env:"MAX_ITEMS" default:"100" description:"Default maximum number of articles kept per feed"`

	// Scheduler
	SchedulerInterval    int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	WorkerCount          int `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed polling"`
	MaxBackoffMultiplier int `long:"max-backoff" env:"MAX_BACKOFF_MULTIPLIER" default:"8" description:"Cap on the poll interval multiplier applied after failures"`

	// Fetcher
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Default request timeout per feed in seconds"`
	FetchRetries int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries for transient fetch failures"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"News Aggregator/1.0" description:"User agent string for HTTP requests"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the admin API (admin API disabled when empty)"`

	// Attempt log
	DBPath string `long:"db-path" env:"DB_PATH" description:"SQLite file for poll attempt history (e.g., ./data/attempts.db); attempt log disabled when empty"`

	// Logging
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated by size"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Cfg{
		Feeds:                raw.Feeds,
		FeedsDir:             raw.FeedsDir,
		PollInterval:         time.Duration(raw.PollInterval) * time.Second,
		MaxItems:             raw.MaxItems,
		SchedulerInterval:    time.Duration(raw.SchedulerInterval) * time.Second,
		WorkerCount:          raw.WorkerCount,
		MaxBackoffMultiplier: raw.MaxBackoffMultiplier,
		FetchTimeout:         time.Duration(raw.FetchTimeout) * time.Second,
		FetchRetries:         raw.FetchRetries,
		UserAgent:            raw.UserAgent,
		Port:                 raw.Port,
		BaseUrl:              raw.BaseUrl,
		APIAccessKey:         raw.APIAccessKey,
		DBPath:               raw.DBPath,
		LogLevel:             raw.LogLevel,
		LogFormat:            raw.LogFormat,
		LogFile:              raw.LogFile,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validate(raw *rawCfg) error {
	positive := []struct {
		name  string
		value int
	}{
		{"poll interval", raw.PollInterval},
		{"scheduler interval", raw.SchedulerInterval},
		{"worker count", raw.WorkerCount},
		{"max backoff multiplier", raw.MaxBackoffMultiplier},
		{"fetch timeout", raw.FetchTimeout},
	}
	for _, field := range positive {
		if field.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", field.name, field.value)
		}
	}

	if raw.FetchRetries < 0 {
		return fmt.Errorf("fetch retries must be non-negative, got %d", raw.FetchRetries)
	}
	if raw.MaxItems < 0 {
		return fmt.Errorf("max items must be non-negative, got %d", raw.MaxItems)
	}

	return nil
}

// ApplyTimezone sets time.Local. Timestamps of articles stay UTC regardless.
func ApplyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	time.Local = loc
	return nil
}
