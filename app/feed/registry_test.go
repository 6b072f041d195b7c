package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testDefaults = Defaults{PollInterval: 15 * time.Minute, Timeout: 30 * time.Second, MaxItems: 100}

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRegistryFromURLs(t *testing.T) {
	urls := []string{
		"https://feeds.bbci.co.uk/news/rss.xml",
		" http://rss.slashdot.org/Slashdot/slashdotMain ",
		"",
	}

	registry, err := LoadRegistry(urls, "", testDefaults)
	if err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 2 {
		t.Fatalf("Expected 2 sources, got %d", registry.Count())
	}

	sources := registry.List()
	bbc := sources[0]
	if bbc.URL != "https://feeds.bbci.co.uk/news/rss.xml" {
		t.Errorf("Expected configuration order, got first URL %s", bbc.URL)
	}
	if bbc.ID != SourceID(bbc.URL) || len(bbc.ID) != 16 {
		t.Errorf("Expected 16 char ID derived from URL, got %s", bbc.ID)
	}
	if bbc.Name != "feeds.bbci.co.uk" {
		t.Errorf("Expected name from host, got %s", bbc.Name)
	}
	if bbc.IconURL != "https://www.google.com/s2/favicons?domain=feeds.bbci.co.uk&sz=32" {
		t.Errorf("Unexpected icon URL %s", bbc.IconURL)
	}
	if bbc.PollInterval != testDefaults.PollInterval {
		t.Errorf("Expected default poll interval, got %v", bbc.PollInterval)
	}
	if bbc.Title != "" {
		t.Errorf("Expected no configured title, got %s", bbc.Title)
	}

	if sources[1].URL != "http://rss.slashdot.org/Slashdot/slashdotMain" {
		t.Errorf("Expected trimmed URL, got %q", sources[1].URL)
	}

	if _, ok := registry.Get(bbc.ID); !ok {
		t.Error("Expected Get to find source by ID")
	}
	if registry.Has("missing") {
		t.Error("Expected Has to be false for unknown ID")
	}
}

func TestLoadRegistryInvalidURL(t *testing.T) {
	for _, raw := range []string{"not a url", "ftp://example.com/feed", "/relative/feed.xml"} {
		if _, err := LoadRegistry([]string{raw}, "", testDefaults); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
}

func TestLoadRegistryDeduplicatesURLs(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "dup.yml", `url: "https://example.com/feed.xml"
title: "From YAML"
`)

	registry, err := LoadRegistry([]string{"https://example.com/feed.xml", "https://example.com/feed.xml"}, tempDir, testDefaults)
	if err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 source, got %d", registry.Count())
	}
	if registry.List()[0].Title != "" {
		t.Errorf("Expected first definition to win, got title %s", registry.List()[0].Title)
	}
}

func TestLoadRegistryValidConfig(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "test.yml", `
url: "https://example.com/feed.xml"
title: "Example"
icon_url: "https://example.com/icon.png"

settings:
  enabled: true
  refresh_interval: 1800
  max_items: 25
  timeout: 15

filters:
  - field: "title"
    includes:
      - "technology"
    excludes:
      - "spam"
`)

	registry, err := LoadRegistry(nil, tempDir, testDefaults)
	if err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 source, got %d", registry.Count())
	}

	src := registry.List()[0]
	if src.Name != "test" {
		t.Errorf("Expected name 'test', got '%s'", src.Name)
	}
	if src.Title != "Example" {
		t.Errorf("Expected title 'Example', got '%s'", src.Title)
	}
	if src.IconURL != "https://example.com/icon.png" {
		t.Errorf("Expected configured icon URL, got '%s'", src.IconURL)
	}
	if src.PollInterval != 30*time.Minute {
		t.Errorf("Expected refresh interval 30m, got %v", src.PollInterval)
	}
	if src.MaxItems != 25 {
		t.Errorf("Expected max items 25, got %d", src.MaxItems)
	}
	if src.Timeout != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %v", src.Timeout)
	}
	if len(src.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(src.Filters))
	}
}

func TestLoadRegistryConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "minimal.yml", `url: "https://example.com/feed.xml"`)

	registry, err := LoadRegistry(nil, tempDir, testDefaults)
	if err != nil {
		t.Fatal(err)
	}

	src := registry.List()[0]
	if src.PollInterval != testDefaults.PollInterval {
		t.Errorf("Expected default poll interval, got %v", src.PollInterval)
	}
	if src.MaxItems != testDefaults.MaxItems {
		t.Errorf("Expected default max items, got %d", src.MaxItems)
	}
	if src.Timeout != testDefaults.Timeout {
		t.Errorf("Expected default timeout, got %v", src.Timeout)
	}
}

func TestLoadRegistrySkipsDisabled(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "a.yml", `url: "https://a.example.com/feed.xml"`)
	writeConfig(t, tempDir, "b.yml", `url: "https://b.example.com/feed.xml"
settings:
  enabled: false
`)
	writeConfig(t, tempDir, "ignored.yaml", `url: "https://c.example.com/feed.xml"`)

	registry, err := LoadRegistry(nil, tempDir, testDefaults)
	if err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 enabled source, got %d", registry.Count())
	}
	if registry.List()[0].Name != "a" {
		t.Errorf("Expected source 'a', got %s", registry.List()[0].Name)
	}
}

func TestLoadRegistryInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing url", `title: "No URL"`, "feed URL is required"},
		{"bad url", `url: "example.com/feed"`, "absolute http(s) URL"},
		{"negative interval", "url: \"https://example.com/feed\"\nsettings:\n  refresh_interval: -1\n", "refresh interval must be non-negative"},
		{"bad filter field", "url: \"https://example.com/feed\"\nfilters:\n  - field: \"author\"\n    includes: [\"x\"]\n", "invalid filter field"},
		{"empty filter", "url: \"https://example.com/feed\"\nfilters:\n  - field: \"title\"\n", "at least one include or exclude"},
		{"bad yaml", "url: [unterminated", "failed to parse YAML"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeConfig(t, tempDir, "feed.yml", test.content)

			_, err := LoadRegistry(nil, tempDir, testDefaults)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Expected error containing %q, got %q", test.wantErr, err.Error())
			}
		})
	}
}

func TestLoadRegistryMissingDir(t *testing.T) {
	registry, err := LoadRegistry([]string{"https://example.com/feed"}, filepath.Join(t.TempDir(), "nope"), testDefaults)
	if err != nil {
		t.Fatal(err)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 source, got %d", registry.Count())
	}
}

func TestNewRegistryFillsIDs(t *testing.T) {
	registry := NewRegistry(&Source{URL: "https://example.com/a"}, &Source{ID: "fixed", URL: "https://example.com/b"})

	sources := registry.List()
	if sources[0].ID != SourceID("https://example.com/a") {
		t.Errorf("Expected derived ID, got %s", sources[0].ID)
	}
	if sources[1].ID != "fixed" {
		t.Errorf("Expected explicit ID kept, got %s", sources[1].ID)
	}

	sources[0] = nil
	if registry.List()[0] == nil {
		t.Error("List must return a copy")
	}
}

func TestSourceIDStable(t *testing.T) {
	if SourceID("https://example.com/feed") != SourceID("https://example.com/feed") {
		t.Error("Expected stable ID")
	}
	if SourceID("https://example.com/feed") == SourceID("https://example.com/other") {
		t.Error("Expected different IDs for different URLs")
	}
}
