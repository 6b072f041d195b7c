package tasks

import (
	"github.com/lysyi3m/news-aggregator/app/cache"
	"github.com/lysyi3m/news-aggregator/app/database"
	"github.com/lysyi3m/news-aggregator/app/feed"
)

// TaskSchedulerInterface is what the application and the admin API need from the
// background poller.
//
//	scheduler := NewScheduler(registry, store, fetcher, parser, filterer, opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.Trigger(sourceID)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger(sourceID string) error
	States() []SourceState
	State(sourceID string) (SourceState, bool)
	Stats() Stats
}

type SourceRegistry interface {
	Get(id string) (*feed.Source, bool)
	List() []*feed.Source
}

type SnapshotWriter interface {
	Put(snap *cache.Snapshot)
}

// AttemptRecorder receives every finished attempt. Record must not block.
type AttemptRecorder interface {
	Record(attempt database.Attempt)
}

var _ SourceRegistry = (*feed.Registry)(nil)
var _ SnapshotWriter = (*cache.Store)(nil)
var _ AttemptRecorder = (*database.AttemptLog)(nil)
