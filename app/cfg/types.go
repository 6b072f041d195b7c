package cfg

import (
	"time"
)

type Cfg struct {
	// Feed sources
	Feeds        []string
	FeedsDir     string
	PollInterval time.Duration
	MaxItems     int

	// Scheduler
	SchedulerInterval    time.Duration
	WorkerCount          int
	MaxBackoffMultiplier int

	// Fetcher
	FetchTimeout time.Duration
	FetchRetries int
	UserAgent    string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Attempt log, empty disables it
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
