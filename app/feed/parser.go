package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

type ParseResult struct {
	Metadata Metadata
	Articles []Article
	Skipped  int // malformed or duplicate entries dropped individually
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run converts a raw RSS, Atom or JSON feed document into canonical articles.
// Failures are returned as *ParseError, including panics raised inside gofeed.
func (p *Parser) Run(sourceID string, data []byte, fetchedAt time.Time) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ParseError{Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	result = &ParseResult{
		Metadata: Metadata{
			Title:       cleanText(parsed.Title),
			Link:        parsed.Link,
			Description: cleanText(parsed.Description),
			Language:    parsed.Language,
		},
		Articles: make([]Article, 0, len(parsed.Items)),
	}
	if parsed.Image != nil {
		result.Metadata.ImageURL = parsed.Image.URL
	}

	fetchedAt = fetchedAt.UTC()
	seen := make(map[string]struct{}, len(parsed.Items))
	for _, item := range parsed.Items {
		article, ok := p.normalizeItem(sourceID, item, fetchedAt)
		if !ok {
			result.Skipped++
			continue
		}
		if _, dup := seen[article.Link]; dup {
			result.Skipped++
			continue
		}
		seen[article.Link] = struct{}{}
		result.Articles = append(result.Articles, article)
	}

	return result, nil
}

func (p *Parser) normalizeItem(sourceID string, item *gofeed.Item, fetchedAt time.Time) (Article, bool) {
	if item == nil {
		return Article{}, false
	}

	link := strings.TrimSpace(item.Link)
	if !isAbsoluteHTTP(link) {
		link = strings.TrimSpace(item.GUID)
	}
	if !isAbsoluteHTTP(link) {
		return Article{}, false
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	return Article{
		SourceID:    sourceID,
		Title:       cleanText(item.Title),
		Link:        link,
		Summary:     truncateRunes(cleanText(summary), maxSummaryRunes),
		PublishedAt: publishedAt(item, fetchedAt),
		FetchedAt:   fetchedAt,
	}, true
}

func publishedAt(item *gofeed.Item, fetchedAt time.Time) time.Time {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(strings.TrimSpace(raw)); err == nil {
			return t.UTC()
		}
	}
	return fetchedAt
}

func isAbsoluteHTTP(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
