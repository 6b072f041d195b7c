package feed

import (
	"strings"
	"testing"
	"time"
)

var testFetchedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 +0200</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run("src", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	metadata := result.Metadata
	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", metadata.Link)
	}
	if metadata.Description != "Test Description" {
		t.Errorf("Expected description 'Test Description', got: %s", metadata.Description)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}
	if metadata.ImageURL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %s", metadata.ImageURL)
	}

	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got: %d", len(result.Articles))
	}
	if result.Skipped != 0 {
		t.Errorf("Expected 0 skipped, got: %d", result.Skipped)
	}

	item1 := result.Articles[0]
	if item1.SourceID != "src" {
		t.Errorf("Expected source ID 'src', got: %s", item1.SourceID)
	}
	if item1.Title != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %s", item1.Title)
	}
	if item1.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", item1.Link)
	}
	if item1.Summary != "Test Item 1 Description" {
		t.Errorf("Expected summary 'Test Item 1 Description', got: %s", item1.Summary)
	}
	if !item1.FetchedAt.Equal(testFetchedAt) {
		t.Errorf("Expected fetched at %v, got: %v", testFetchedAt, item1.FetchedAt)
	}

	expected := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if !item1.PublishedAt.Equal(expected) {
		t.Errorf("Expected published at %v, got: %v", expected, item1.PublishedAt)
	}

	item2 := result.Articles[1]
	expected = time.Date(2023, 7, 3, 9, 0, 0, 0, time.UTC)
	if !item2.PublishedAt.Equal(expected) {
		t.Errorf("Expected published at %v, got: %v", expected, item2.PublishedAt)
	}
	if item2.PublishedAt.Location() != time.UTC {
		t.Errorf("Expected UTC published time, got location: %v", item2.PublishedAt.Location())
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <entry>
    <title>Atom Entry 1</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">&lt;p&gt;Atom &lt;b&gt;content&lt;/b&gt;&lt;/p&gt;</content>
  </entry>
</feed>`

	parser := NewParser()
	result, err := parser.Run("atom", []byte(atomData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", result.Metadata.Title)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("Expected 1 article, got: %d", len(result.Articles))
	}

	article := result.Articles[0]
	if article.Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", article.Link)
	}
	if article.Summary != "Atom content" {
		t.Errorf("Expected summary from content 'Atom content', got: %s", article.Summary)
	}

	expected := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if !article.PublishedAt.Equal(expected) {
		t.Errorf("Expected updated date as published %v, got: %v", expected, article.PublishedAt)
	}
}

func TestParseJSONFeed(t *testing.T) {
	jsonData := `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "JSON Feed",
  "home_page_url": "https://example.org/",
  "items": [
    {"id": "1", "url": "https://example.org/1", "title": "First", "content_text": "Hello", "date_published": "2024-01-02T03:04:05Z"}
  ]
}`

	parser := NewParser()
	result, err := parser.Run("json", []byte(jsonData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("Expected 1 article, got: %d", len(result.Articles))
	}
	if result.Articles[0].Title != "First" {
		t.Errorf("Expected title 'First', got: %s", result.Articles[0].Title)
	}
	if result.Articles[0].Summary != "Hello" {
		t.Errorf("Expected summary 'Hello', got: %s", result.Articles[0].Summary)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()

	for _, data := range []string{"", "not a feed at all", "<html><body>nope</body></html>"} {
		result, err := parser.Run("bad", []byte(data), testFetchedAt)
		if err == nil {
			t.Errorf("Expected error for %q, got nil", data)
			continue
		}
		if !IsParseError(err) {
			t.Errorf("Expected ParseError for %q, got: %T", data, err)
		}
		if result != nil {
			t.Errorf("Expected nil result for %q", data)
		}
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sparse</title>
    <item>
      <link>https://example.com/bare</link>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run("sparse", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("Expected 1 article, got: %d", len(result.Articles))
	}

	article := result.Articles[0]
	if article.Title != "" {
		t.Errorf("Expected empty title, got: %s", article.Title)
	}
	if article.Summary != "" {
		t.Errorf("Expected empty summary, got: %s", article.Summary)
	}
	if !article.PublishedAt.Equal(testFetchedAt) {
		t.Errorf("Expected published at to fall back to fetch time %v, got: %v", testFetchedAt, article.PublishedAt)
	}
}

func TestParseSkipsMalformedEntries(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Mixed</title>
    <item><title>No link</title></item>
    <item><title>Relative</title><link>/relative/path</link></item>
    <item><title>Good</title><link>https://example.com/good</link></item>
    <item><title>Mailto</title><link>mailto:someone@example.com</link></item>
    <item><title>Duplicate</title><link>https://example.com/good</link></item>
    <item><title>Guid fallback</title><guid isPermaLink="true">https://example.com/from-guid</guid></item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run("mixed", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got: %d", len(result.Articles))
	}
	if result.Skipped != 4 {
		t.Errorf("Expected 4 skipped entries, got: %d", result.Skipped)
	}
	if result.Articles[0].Title != "Good" {
		t.Errorf("Expected first article 'Good', got: %s", result.Articles[0].Title)
	}
	if result.Articles[1].Link != "https://example.com/from-guid" {
		t.Errorf("Expected GUID fallback link, got: %s", result.Articles[1].Link)
	}
}

func TestParseRSSWithHTMLEntities(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Ben &amp; Jerry&#39;s   Feed</title>
    <item>
      <title>Caf&#233;   &amp;  Bar</title>
      <link>https://example.com/cafe</link>
      <description><![CDATA[<p>Hello <a href="https://example.com">world</a> &amp; friends</p><script>alert(1)</script>]]></description>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run("html", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Metadata.Title != "Ben & Jerry's Feed" {
		t.Errorf("Expected decoded feed title, got: %s", result.Metadata.Title)
	}

	article := result.Articles[0]
	if article.Title != "Café & Bar" {
		t.Errorf("Expected title 'Café & Bar', got: %s", article.Title)
	}
	if article.Summary != "Hello world & friends" {
		t.Errorf("Expected stripped summary 'Hello world & friends', got: %s", article.Summary)
	}
}

func TestParseTruncatesLongSummary(t *testing.T) {
	long := strings.Repeat("word ", 200)
	rssData := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Long</title>
<item><link>https://example.com/long</link><description>` + long + `</description></item>
</channel></rss>`

	parser := NewParser()
	result, err := parser.Run("long", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	summary := result.Articles[0].Summary
	if !strings.HasSuffix(summary, "...") {
		t.Errorf("Expected truncated summary to end with '...', got: %s", summary[len(summary)-10:])
	}
	if n := len([]rune(summary)); n > maxSummaryRunes {
		t.Errorf("Expected at most %d runes, got: %d", maxSummaryRunes, n)
	}
}

func TestParseDateFallbacks(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Dates</title>
<item><link>https://example.com/odd</link><pubDate>2023-07-03 12:00:00</pubDate></item>
</channel></rss>`

	parser := NewParser()
	result, err := parser.Run("dates", []byte(rssData), testFetchedAt)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := result.Articles[0].PublishedAt
	if got.Year() != 2023 || got.Month() != time.July || got.Day() != 3 {
		t.Errorf("Expected 2023-07-03, got: %v", got)
	}
	if got.Location() != time.UTC {
		t.Errorf("Expected UTC, got: %v", got.Location())
	}
}
