package database

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AttemptLog writes attempts on its own goroutine so recording never blocks a poll.
// When the buffer is full the attempt is dropped.
type AttemptLog struct {
	repo      AttemptRepository
	queue     chan Attempt
	keep      int
	pruneEach time.Duration

	wg   sync.WaitGroup
	once sync.Once
}

type AttemptLogOptions struct {
	BufferSize    int
	KeepPerSource int
	PruneInterval time.Duration
}

func NewAttemptLog(repo AttemptRepository, opts AttemptLogOptions) *AttemptLog {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = time.Hour
	}
	return &AttemptLog{
		repo:      repo,
		queue:     make(chan Attempt, opts.BufferSize),
		keep:      opts.KeepPerSource,
		pruneEach: opts.PruneInterval,
	}
}

func (l *AttemptLog) Start() {
	l.wg.Add(1)
	go l.run()
}

// Stop flushes buffered attempts and waits for the writer to exit.
// Record must not be called after Stop.
func (l *AttemptLog) Stop() {
	l.once.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
}

func (l *AttemptLog) Record(a Attempt) {
	select {
	case l.queue <- a:
	default:
		slog.Warn("Attempt log full, dropping attempt", "feed", a.SourceID, "outcome", a.Outcome)
	}
}

func (l *AttemptLog) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pruneEach)
	defer ticker.Stop()

	for {
		select {
		case a, ok := <-l.queue:
			if !ok {
				return
			}
			l.write(a)
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *AttemptLog) write(a Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.repo.InsertAttempt(ctx, a); err != nil {
		slog.Error("Failed to record attempt", "feed", a.SourceID, "error", err)
	}
}

func (l *AttemptLog) prune() {
	if l.keep <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := l.repo.PruneAttempts(ctx, l.keep)
	if err != nil {
		slog.Error("Failed to prune attempts", "error", err)
		return
	}
	if deleted > 0 {
		slog.Debug("Pruned attempts", "deleted", deleted)
	}
}
