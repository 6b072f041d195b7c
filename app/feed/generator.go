package feed

import (
	"cmp"
	"fmt"
	"time"

	"github.com/gorilla/feeds"
)

type OutputFormat string

const (
	FormatRSS  OutputFormat = "rss"
	FormatAtom OutputFormat = "atom"
	FormatJSON OutputFormat = "json"
)

func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch OutputFormat(s) {
	case FormatRSS, FormatAtom, FormatJSON:
		return OutputFormat(s), true
	default:
		return "", false
	}
}

func (f OutputFormat) ContentType() string {
	switch f {
	case FormatAtom:
		return "application/atom+xml; charset=utf-8"
	case FormatJSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/rss+xml; charset=utf-8"
	}
}

// Channel describes the aggregated output feed itself.
type Channel struct {
	Title       string
	Link        string
	Description string
	Updated     time.Time
}

type OutputItem struct {
	Title       string
	Link        string
	Summary     string
	SourceTitle string
	PublishedAt time.Time
}

type Generator struct {
	version string
}

func NewGenerator(version string) *Generator {
	return &Generator{version: version}
}

// Run renders items in the given order. The channel update time defaults to the newest
// item, then to now.
func (g *Generator) Run(format OutputFormat, channel Channel, items []OutputItem) (string, error) {
	updated := channel.Updated
	if updated.IsZero() && len(items) > 0 {
		updated = items[0].PublishedAt
	}
	updated = cmp.Or(updated, time.Now()).UTC()

	out := &feeds.Feed{
		Title:       channel.Title,
		Link:        &feeds.Link{Href: channel.Link},
		Description: cmp.Or(channel.Description, "Aggregated news feed"),
		Author:      &feeds.Author{Name: fmt.Sprintf("news-aggregator/%s", cmp.Or(g.version, "dev"))},
		Id:          channel.Link,
		Created:     updated,
		Updated:     updated,
		Items:       make([]*feeds.Item, 0, len(items)),
	}

	for _, item := range items {
		entry := &feeds.Item{
			Id:          item.Link,
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Summary,
			Created:     item.PublishedAt.UTC(),
			Updated:     item.PublishedAt.UTC(),
		}
		if item.SourceTitle != "" {
			entry.Author = &feeds.Author{Name: item.SourceTitle}
		}
		out.Items = append(out.Items, entry)
	}

	var body string
	var err error
	switch format {
	case FormatAtom:
		body, err = out.ToAtom()
	case FormatJSON:
		body, err = out.ToJSON()
	default:
		body, err = out.ToRss()
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s feed: %w", format, err)
	}

	return body, nil
}
