package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/news-aggregator/app/cache"
	"github.com/lysyi3m/news-aggregator/app/feed"
)

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

type FeedFetcher interface {
	Fetch(ctx context.Context, req feed.FetchRequest) (*feed.FetchResult, error)
}

type FeedParser interface {
	Run(sourceID string, data []byte, fetchedAt time.Time) (*feed.ParseResult, error)
}

var _ FeedFetcher = (*feed.Fetcher)(nil)
var _ FeedParser = (*feed.Parser)(nil)

type PollResult struct {
	Outcome      Outcome
	Snapshot     *cache.Snapshot // set for OutcomeUpdated
	ETag         string
	LastModified string
	StatusCode   int
	Err          error
}

type PollSourceTask struct {
	Task
	Source       *feed.Source
	ETag         string
	LastModified string
	fetcher      FeedFetcher
	parser       FeedParser
	filterer     *feed.Filterer
}

func NewPollSourceTask(source *feed.Source, etag, lastModified string, fetcher FeedFetcher, parser FeedParser, filterer *feed.Filterer) *PollSourceTask {
	return &PollSourceTask{
		Task:         NewTask(TaskTypePollSource, source.ID),
		Source:       source,
		ETag:         etag,
		LastModified: lastModified,
		fetcher:      fetcher,
		parser:       parser,
		filterer:     filterer,
	}
}

// Execute runs fetch, parse and filter for one source. It touches no shared state; the
// scheduler stores the returned snapshot.
func (t *PollSourceTask) Execute(ctx context.Context, now func() time.Time) *PollResult {
	select {
	case <-ctx.Done():
		return &PollResult{Outcome: OutcomeFailed, Err: &feed.FetchError{Kind: feed.KindNetwork, URL: t.Source.URL, Err: ctx.Err()}}
	default:
	}

	fetched, err := t.fetcher.Fetch(ctx, feed.FetchRequest{
		URL:          t.Source.URL,
		ETag:         t.ETag,
		LastModified: t.LastModified,
		Timeout:      t.Source.Timeout,
	})
	if err != nil {
		result := &PollResult{Outcome: OutcomeFailed, Err: err}
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			result.StatusCode = fetchErr.StatusCode
		}
		return result
	}

	if fetched.Status == feed.StatusNotModified {
		return &PollResult{
			Outcome:      OutcomeUnchanged,
			ETag:         fetched.ETag,
			LastModified: fetched.LastModified,
			StatusCode:   fetched.StatusCode,
		}
	}

	fetchedAt := now().UTC()
	parsed, err := t.parser.Run(t.Source.ID, fetched.Body, fetchedAt)
	if err != nil {
		return &PollResult{Outcome: OutcomeFailed, Err: err, StatusCode: fetched.StatusCode}
	}

	articles := parsed.Articles
	filtered := 0
	if len(t.Source.Filters) > 0 {
		visible := t.filterer.Visible(t.filterer.Run(articles, t.Source.Filters))
		filtered = len(articles) - len(visible)
		articles = visible
	}
	if t.Source.MaxItems > 0 && len(articles) > t.Source.MaxItems {
		articles = articles[:t.Source.MaxItems]
	}

	return &PollResult{
		Outcome: OutcomeUpdated,
		Snapshot: &cache.Snapshot{
			SourceID:  t.Source.ID,
			FeedTitle: parsed.Metadata.Title,
			Articles:  articles,
			FetchedAt: fetchedAt,
			Skipped:   parsed.Skipped,
			Filtered:  filtered,
		},
		ETag:         fetched.ETag,
		LastModified: fetched.LastModified,
		StatusCode:   fetched.StatusCode,
	}
}
