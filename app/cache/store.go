package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/news-aggregator/app/feed"
)

// Snapshot is the article set of one source from a single fetch cycle.
// It is never modified after Put.
type Snapshot struct {
	SourceID  string
	FeedTitle string
	Articles  []feed.Article
	FetchedAt time.Time
	Skipped   int
	Filtered  int
}

type Stats struct {
	Sources  int
	Articles int
}

// Store holds the latest snapshot per source. Readers load an immutable map through an
// atomic pointer and never lock; writers copy the map under mu and swap it in.
type Store struct {
	mu        sync.Mutex
	snapshots atomic.Pointer[map[string]*Snapshot]
}

func NewStore() *Store {
	s := &Store{}
	empty := make(map[string]*Snapshot)
	s.snapshots.Store(&empty)
	return s
}

// Put replaces the snapshot for snap.SourceID.
func (s *Store) Put(snap *Snapshot) {
	articles := make([]feed.Article, len(snap.Articles))
	copy(articles, snap.Articles)
	stored := *snap
	stored.Articles = articles

	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.snapshots.Load()
	next := make(map[string]*Snapshot, len(current)+1)
	for id, existing := range current {
		next[id] = existing
	}
	next[stored.SourceID] = &stored
	s.snapshots.Store(&next)
}

func (s *Store) Snapshot(sourceID string) (*Snapshot, bool) {
	snap, ok := (*s.snapshots.Load())[sourceID]
	return snap, ok
}

// Get returns the aggregate view over the given sources, or over every populated
// source when none are given. Sources without a snapshot contribute nothing.
func (s *Store) Get(sourceIDs ...string) []feed.Article {
	current := *s.snapshots.Load()

	var selected []*Snapshot
	if len(sourceIDs) == 0 {
		selected = make([]*Snapshot, 0, len(current))
		for _, snap := range current {
			selected = append(selected, snap)
		}
	} else {
		seen := make(map[string]struct{}, len(sourceIDs))
		for _, id := range sourceIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if snap, ok := current[id]; ok {
				selected = append(selected, snap)
			}
		}
	}

	return buildView(selected)
}

func (s *Store) Stats() Stats {
	current := *s.snapshots.Load()
	stats := Stats{Sources: len(current)}
	for _, snap := range current {
		stats.Articles += len(snap.Articles)
	}
	return stats
}

type dedupKey struct {
	sourceID string
	link     string
}

func buildView(snapshots []*Snapshot) []feed.Article {
	// Fixed snapshot order makes "first occurrence wins" independent of map iteration.
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SourceID < snapshots[j].SourceID
	})

	total := 0
	for _, snap := range snapshots {
		total += len(snap.Articles)
	}

	view := make([]feed.Article, 0, total)
	seen := make(map[dedupKey]struct{}, total)
	for _, snap := range snapshots {
		for _, article := range snap.Articles {
			key := dedupKey{sourceID: article.SourceID, link: article.Link}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			view = append(view, article)
		}
	}

	sort.SliceStable(view, func(i, j int) bool {
		return Less(view[i], view[j])
	})

	return view
}

// Less orders articles newest first, then by source id, title and link.
func Less(a, b feed.Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.Link < b.Link
}
