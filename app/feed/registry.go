package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Defaults struct {
	PollInterval time.Duration
	Timeout      time.Duration
	MaxItems     int
}

// Registry is the ordered, immutable set of configured sources.
type Registry struct {
	sources []*Source
	byID    map[string]*Source
}

// LoadRegistry builds sources from plain URLs followed by the *.yml files in feedsDir.
// A URL configured twice becomes a single source; the first definition wins.
func LoadRegistry(urls []string, feedsDir string, defaults Defaults) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Source)}

	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		cfg := &Config{URL: raw}
		if err := validateConfig(cfg, false); err != nil {
			return nil, fmt.Errorf("invalid feed %q: %w", raw, err)
		}
		r.add(newSource(cfg, defaults))
	}

	configs, err := loadConfigDir(feedsDir)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if !cfg.IsEnabled() {
			slog.Debug("Feed disabled, skipping", "feed", cfg.Name)
			continue
		}
		r.add(newSource(cfg, defaults))
	}

	return r, nil
}

// NewRegistry wraps prebuilt sources; sources without an ID get one from their URL.
func NewRegistry(sources ...*Source) *Registry {
	r := &Registry{byID: make(map[string]*Source)}
	for _, src := range sources {
		if src.ID == "" {
			src.ID = SourceID(src.URL)
		}
		r.add(src)
	}
	return r
}

func (r *Registry) add(src *Source) {
	if existing, ok := r.byID[src.ID]; ok {
		slog.Warn("Duplicate feed URL, keeping first definition", "url", src.URL, "kept", existing.Name, "dropped", src.Name)
		return
	}
	r.byID[src.ID] = src
	r.sources = append(r.sources, src)
}

func (r *Registry) Get(id string) (*Source, bool) {
	src, ok := r.byID[id]
	return src, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns sources in configuration order.
func (r *Registry) List() []*Source {
	sources := make([]*Source, len(r.sources))
	copy(sources, r.sources)
	return sources
}

func (r *Registry) Count() int {
	return len(r.sources)
}

// SourceID is the first 16 hex characters of the SHA-256 of the feed URL.
func SourceID(feedURL string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(feedURL)))
	return hex.EncodeToString(hash[:])[:16]
}

// FaviconURL returns an icon URL for the host serving feedURL.
func FaviconURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=32", u.Hostname())
}

func newSource(cfg *Config, defaults Defaults) *Source {
	src := &Source{
		ID:           SourceID(cfg.URL),
		Name:         cfg.Name,
		URL:          strings.TrimSpace(cfg.URL),
		Title:        cfg.Title,
		IconURL:      cfg.IconURL,
		PollInterval: defaults.PollInterval,
		Timeout:      defaults.Timeout,
		MaxItems:     defaults.MaxItems,
		Filters:      cfg.Filters,
	}

	if src.Name == "" {
		if u, err := url.Parse(src.URL); err == nil {
			src.Name = u.Hostname()
		}
	}
	if src.IconURL == "" {
		src.IconURL = FaviconURL(src.URL)
	}
	if cfg.Settings.RefreshInterval > 0 {
		src.PollInterval = time.Duration(cfg.Settings.RefreshInterval) * time.Second
	}
	if cfg.Settings.Timeout > 0 {
		src.Timeout = time.Duration(cfg.Settings.Timeout) * time.Second
	}
	if cfg.Settings.MaxItems > 0 {
		src.MaxItems = cfg.Settings.MaxItems
	}

	return src
}

func loadConfigDir(feedsDir string) ([]*Config, error) {
	if feedsDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(feedsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(feedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	configs := make([]*Config, 0, len(files))
	for _, file := range files {
		cfg, err := parseConfigFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", cfg.Name, "enabled", cfg.IsEnabled(), "refresh_interval", cfg.Settings.RefreshInterval)
		configs = append(configs, cfg)
	}

	return configs, nil
}

func parseConfigFile(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.Name = strings.TrimSuffix(filepath.Base(configFile), ".yml")

	if err := validateConfig(&cfg, true); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config, named bool) error {
	if cfg == nil {
		return fmt.Errorf("feed config is nil")
	}

	if named && cfg.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if cfg.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if !isAbsoluteHTTP(strings.TrimSpace(cfg.URL)) {
		return fmt.Errorf("feed URL must be an absolute http(s) URL: %s", cfg.URL)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": cfg.Settings.RefreshInterval,
		"max items":        cfg.Settings.MaxItems,
		"timeout":          cfg.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range cfg.Filters {
		if !FilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
