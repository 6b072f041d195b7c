package query

import (
	"time"

	"github.com/lysyi3m/news-aggregator/app/cache"
	"github.com/lysyi3m/news-aggregator/app/feed"
)

const UnknownSourceTitle = "Unknown Source"

type Filter struct {
	SourceID string
	Limit    int // <= 0 means no limit
}

type ArticleView struct {
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Summary       string    `json:"summary"`
	PublishedAt   time.Time `json:"published_at"`
	SourceID      string    `json:"source_id"`
	SourceTitle   string    `json:"source_title"`
	SourceIconURL string    `json:"source_icon_url"`
}

type SourceView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SourceLookup interface {
	Get(id string) (*feed.Source, bool)
	List() []*feed.Source
}

type ArticleReader interface {
	Get(sourceIDs ...string) []feed.Article
	Snapshot(sourceID string) (*cache.Snapshot, bool)
}

var _ SourceLookup = (*feed.Registry)(nil)
var _ ArticleReader = (*cache.Store)(nil)

// Service answers read requests from the cache only; it never triggers a fetch.
type Service struct {
	sources SourceLookup
	store   ArticleReader
}

func NewService(sources SourceLookup, store ArticleReader) *Service {
	return &Service{sources: sources, store: store}
}

// ResolveFilter returns the source id to filter on and whether the filter applies.
// A filter naming a source that is not configured is ignored, so callers fall back to
// the all-sources view instead of failing.
func (s *Service) ResolveFilter(sourceID string) (string, bool) {
	if sourceID == "" {
		return "", false
	}
	if _, ok := s.sources.Get(sourceID); !ok {
		return "", false
	}
	return sourceID, true
}

func (s *Service) Articles(filter Filter) []feed.Article {
	var articles []feed.Article
	if id, ok := s.ResolveFilter(filter.SourceID); ok {
		articles = s.store.Get(id)
	} else {
		articles = s.store.Get(s.configuredIDs()...)
	}

	if filter.Limit > 0 && len(articles) > filter.Limit {
		articles = articles[:filter.Limit]
	}
	return articles
}

func (s *Service) ListArticles(filter Filter) []ArticleView {
	articles := s.Articles(filter)

	titles := make(map[string]string)
	views := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		title, ok := titles[a.SourceID]
		if !ok {
			title = s.SourceTitle(a.SourceID)
			titles[a.SourceID] = title
		}

		var icon string
		if src, ok := s.sources.Get(a.SourceID); ok {
			icon = src.IconURL
		}

		views = append(views, ArticleView{
			Title:         a.Title,
			Link:          a.Link,
			Summary:       a.Summary,
			PublishedAt:   a.PublishedAt,
			SourceID:      a.SourceID,
			SourceTitle:   title,
			SourceIconURL: icon,
		})
	}
	return views
}

func (s *Service) ListSources() []SourceView {
	sources := s.sources.List()
	views := make([]SourceView, 0, len(sources))
	for _, src := range sources {
		views = append(views, SourceView{
			ID:    src.ID,
			Title: s.SourceTitle(src.ID),
			URL:   src.URL,
		})
	}
	return views
}

// SourceTitle prefers the configured title, then the title of the last parsed document.
func (s *Service) SourceTitle(sourceID string) string {
	if src, ok := s.sources.Get(sourceID); ok && src.Title != "" {
		return src.Title
	}
	if snap, ok := s.store.Snapshot(sourceID); ok && snap.FeedTitle != "" {
		return snap.FeedTitle
	}
	return UnknownSourceTitle
}

func (s *Service) configuredIDs() []string {
	sources := s.sources.List()
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	return ids
}
