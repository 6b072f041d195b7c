package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
}

// Article is the canonical entry shape produced at the parser boundary.
// SourceID and Link together identify an article.
type Article struct {
	SourceID    string
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time // UTC, fetch time when the feed omits it
	FetchedAt   time.Time
}

// Source is a configured feed origin. Sources are built once at startup and never change.
type Source struct {
	ID           string // stable hash of URL
	Name         string // yml file name, or host for env-configured feeds
	URL          string
	Title        string // configured display title, may be empty
	IconURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	MaxItems     int
	Filters      []ConfigFilter
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title"`
	IconURL  string         `yaml:"icon_url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         *bool `yaml:"enabled"`          // nil means enabled
	RefreshInterval int   `yaml:"refresh_interval"` // seconds
	MaxItems        int   `yaml:"max_items"`
	Timeout         int   `yaml:"timeout"` // seconds
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (c *Config) IsEnabled() bool {
	return c.Settings.Enabled == nil || *c.Settings.Enabled
}
