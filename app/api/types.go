package api

import (
	"context"

	"github.com/lysyi3m/news-aggregator/app/cache"
	"github.com/lysyi3m/news-aggregator/app/database"
	"github.com/lysyi3m/news-aggregator/app/feed"
	"github.com/lysyi3m/news-aggregator/app/query"
	"github.com/lysyi3m/news-aggregator/app/tasks"
)

type QueryInterface interface {
	ListArticles(filter query.Filter) []query.ArticleView
	ListSources() []query.SourceView
	ResolveFilter(sourceID string) (string, bool)
}

type GeneratorInterface interface {
	Run(format feed.OutputFormat, channel feed.Channel, items []feed.OutputItem) (string, error)
}

type SourceLookup interface {
	Get(id string) (*feed.Source, bool)
}

type CacheStats interface {
	Stats() cache.Stats
}

type AttemptHistory interface {
	GetRecentAttempts(ctx context.Context, sourceID string, limit int) ([]database.Attempt, error)
	GetOutcomeCounts(ctx context.Context) ([]database.OutcomeCount, error)
}

var _ QueryInterface = (*query.Service)(nil)
var _ GeneratorInterface = (*feed.Generator)(nil)
var _ SourceLookup = (*feed.Registry)(nil)
var _ CacheStats = (*cache.Store)(nil)
var _ AttemptHistory = (*database.AttemptRepositoryImpl)(nil)

type Options struct {
	BaseURL string
	Port    string
	Version string
}

type Handler struct {
	query     QueryInterface
	sources   SourceLookup
	store     CacheStats
	scheduler tasks.TaskSchedulerInterface
	generator GeneratorInterface
	attempts  AttemptHistory // nil when the attempt log is disabled
	opts      Options
}
