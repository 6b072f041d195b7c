package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/news-aggregator/app/database"
	"github.com/lysyi3m/news-aggregator/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrAlreadyFetching = errors.New("source is already being fetched")
	ErrQueueFull       = errors.New("task queue is full")
	ErrStopped         = errors.New("scheduler is stopped")
)

const (
	defaultPollInterval      = 15 * time.Minute
	defaultSchedulerInterval = 30 * time.Second
	defaultWorkerCount       = 5
	defaultMaxBackoff        = 8
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
)

// SourceState is the scheduler's view of one source. Copies are handed out.
type SourceState struct {
	SourceID            string     `json:"source_id"`
	Status              Status     `json:"status"`
	LastOutcome         Outcome    `json:"last_outcome,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ErrorKind           string     `json:"error_kind,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	ETag                string     `json:"etag,omitempty"`
	LastModified        string     `json:"last_modified,omitempty"`
	NextDueAt           time.Time  `json:"next_due_at"`
}

type Stats struct {
	Processed     int64 `json:"processed"`
	Updated       int64 `json:"updated"`
	Unchanged     int64 `json:"unchanged"`
	Failed        int64 `json:"failed"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Workers       int   `json:"workers"`
}

type Options struct {
	WorkerCount          int
	Interval             time.Duration // how often due sources are dispatched
	MaxBackoffMultiplier int
	Recorder             AttemptRecorder

	// Now and Jitter are replaced in tests. Jitter returns u in [-0.1, 0.1].
	Now    func() time.Time
	Jitter func() float64
}

type Scheduler struct {
	sources  SourceRegistry
	store    SnapshotWriter
	fetcher  FeedFetcher
	parser   FeedParser
	filterer *feed.Filterer
	recorder AttemptRecorder

	interval    time.Duration
	workerCount int
	maxBackoff  int
	now         func() time.Time
	jitter      func() float64

	mu     sync.Mutex
	states map[string]*SourceState

	processed atomic.Int64
	updated   atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan *PollSourceTask
}

func NewScheduler(sources SourceRegistry, store SnapshotWriter, fetcher FeedFetcher, parser FeedParser,
	filterer *feed.Filterer, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSchedulerInterval
	}
	if opts.MaxBackoffMultiplier <= 0 {
		opts.MaxBackoffMultiplier = defaultMaxBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Jitter == nil {
		opts.Jitter = randomJitter
	}
	if filterer == nil {
		filterer = feed.NewFilterer()
	}

	list := sources.List()
	states := make(map[string]*SourceState, len(list))
	for _, src := range list {
		states[src.ID] = &SourceState{SourceID: src.ID, Status: StatusIdle}
	}

	return &Scheduler{
		sources:     sources,
		store:       store,
		fetcher:     fetcher,
		parser:      parser,
		filterer:    filterer,
		recorder:    opts.Recorder,
		interval:    opts.Interval,
		workerCount: opts.WorkerCount,
		maxBackoff:  opts.MaxBackoffMultiplier,
		now:         opts.Now,
		jitter:      opts.Jitter,
		states:      states,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan *PollSourceTask, max(len(list), 1)),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Cold cache: every source starts with a zero NextDueAt and is due now.
		s.dispatchDue(s.now())

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.dispatchDue(s.now())
			}
		}
	}()

	slog.Info("Scheduler started", "workers", s.workerCount, "sources", len(s.states), "interval", s.interval.String())
}

// Stop cancels in-flight fetches and waits for every worker to exit. The queue is left
// open so a late Trigger cannot panic.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// Trigger makes an idle source due immediately and queues it.
func (s *Scheduler) Trigger(sourceID string) error {
	src, ok := s.sources.Get(sourceID)
	if !ok {
		return ErrUnknownSource
	}
	if s.ctx.Err() != nil {
		return ErrStopped
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(sourceID)
	if state.Status == StatusFetching {
		return ErrAlreadyFetching
	}

	state.NextDueAt = s.now()
	task := NewPollSourceTask(src, state.ETag, state.LastModified, s.fetcher, s.parser, s.filterer)
	task.Manual = true
	if !s.enqueueLocked(state, task) {
		return ErrQueueFull
	}

	slog.Debug("Manual refresh queued", "feed", sourceID, "id", task.GetID())
	return nil
}

func (s *Scheduler) States() []SourceState {
	list := s.sources.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]SourceState, 0, len(list))
	for _, src := range list {
		states = append(states, *s.stateLocked(src.ID))
	}
	return states
}

func (s *Scheduler) State(sourceID string) (SourceState, bool) {
	if _, ok := s.sources.Get(sourceID); !ok {
		return SourceState{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.stateLocked(sourceID), true
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Processed:     s.processed.Load(),
		Updated:       s.updated.Load(),
		Unchanged:     s.unchanged.Load(),
		Failed:        s.failed.Load(),
		QueueLength:   len(s.taskQueue),
		QueueCapacity: cap(s.taskQueue),
		Workers:       s.workerCount,
	}
}

func (s *Scheduler) dispatchDue(now time.Time) {
	sources := s.sources.List()
	if len(sources) == 0 {
		slog.Debug("No sources configured")
		return
	}

	queued := 0
	for _, src := range sources {
		s.mu.Lock()
		state := s.stateLocked(src.ID)
		if state.Status == StatusFetching || now.Before(state.NextDueAt) {
			s.mu.Unlock()
			continue
		}

		task := NewPollSourceTask(src, state.ETag, state.LastModified, s.fetcher, s.parser, s.filterer)
		ok := s.enqueueLocked(state, task)
		s.mu.Unlock()

		if !ok {
			slog.Warn("Task queue full, source stays due", "feed", src.ID)
			continue
		}
		queued++
	}

	if queued > 0 {
		slog.Debug("Dispatched due sources", "count", queued)
	}
}

// enqueueLocked marks the source fetching and queues the task without blocking.
// On a full queue the state is left idle.
func (s *Scheduler) enqueueLocked(state *SourceState, task *PollSourceTask) bool {
	state.Status = StatusFetching
	select {
	case s.taskQueue <- task:
		return true
	default:
		state.Status = StatusIdle
		return false
	}
}

func (s *Scheduler) stateLocked(sourceID string) *SourceState {
	state, ok := s.states[sourceID]
	if !ok {
		state = &SourceState{SourceID: sourceID, Status: StatusIdle}
		s.states[sourceID] = state
	}
	return state
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task *PollSourceTask) {
	task.Start(s.now())

	result := task.Execute(s.ctx, s.now)

	if s.ctx.Err() != nil {
		s.mu.Lock()
		s.stateLocked(task.GetSourceID()).Status = StatusIdle
		s.mu.Unlock()
		slog.Debug("Scheduler stopped, discarding task result", "worker_id", workerID, "feed", task.GetSourceID(), "id", task.GetID())
		return
	}

	s.complete(workerID, task, result)
}

// complete applies one finished poll. The snapshot is stored before the state update so
// a reader that sees the new state also sees the new snapshot.
func (s *Scheduler) complete(workerID int, task *PollSourceTask, result *PollResult) {
	finishedAt := s.now()
	source := task.Source

	if result.Outcome == OutcomeUpdated && result.Snapshot != nil {
		s.store.Put(result.Snapshot)
	}

	interval := source.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	s.mu.Lock()
	state := s.stateLocked(source.ID)
	state.Status = StatusIdle
	state.LastOutcome = result.Outcome
	state.LastAttemptAt = &finishedAt

	switch result.Outcome {
	case OutcomeUpdated:
		state.ConsecutiveFailures = 0
		state.LastSuccessAt = &finishedAt
		state.LastError = ""
		state.ErrorKind = ""
		state.ETag = result.ETag
		state.LastModified = result.LastModified
	case OutcomeUnchanged:
		state.ConsecutiveFailures = 0
		state.LastSuccessAt = &finishedAt
		state.LastError = ""
		state.ErrorKind = ""
		if result.ETag != "" {
			state.ETag = result.ETag
		}
		if result.LastModified != "" {
			state.LastModified = result.LastModified
		}
	default:
		state.ConsecutiveFailures++
		state.LastError = errorString(result.Err)
		state.ErrorKind = feed.ErrorKind(result.Err)
	}

	delay := nextDelay(interval, state.ConsecutiveFailures, s.maxBackoff, s.jitter())
	state.NextDueAt = finishedAt.Add(delay)
	failures := state.ConsecutiveFailures
	s.mu.Unlock()

	s.processed.Add(1)
	switch result.Outcome {
	case OutcomeUpdated:
		s.updated.Add(1)
		slog.Info("Task completed", "type", string(task.GetType()), "feed", source.ID, "outcome", string(result.Outcome),
			"articles", len(result.Snapshot.Articles), "skipped", result.Snapshot.Skipped, "filtered", result.Snapshot.Filtered,
			"duration", task.GetDuration(finishedAt).String())
	case OutcomeUnchanged:
		s.unchanged.Add(1)
		slog.Debug("Task completed", "type", string(task.GetType()), "feed", source.ID, "outcome", string(result.Outcome),
			"duration", task.GetDuration(finishedAt).String())
	default:
		s.failed.Add(1)
		slog.Warn("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "feed", source.ID,
			"consecutive_failures", failures, "next_delay", delay.String(), "error", result.Err)
	}

	if s.recorder != nil {
		s.recorder.Record(s.attempt(task, result, finishedAt))
	}
}

func (s *Scheduler) attempt(task *PollSourceTask, result *PollResult, finishedAt time.Time) database.Attempt {
	a := database.Attempt{
		ID:         task.GetID(),
		SourceID:   task.Source.ID,
		SourceURL:  task.Source.URL,
		Manual:     task.Manual,
		FinishedAt: finishedAt,
		Outcome:    string(result.Outcome),
		StatusCode: result.StatusCode,
	}
	if task.StartedAt != nil {
		a.StartedAt = *task.StartedAt
	} else {
		a.StartedAt = finishedAt
	}
	if result.Snapshot != nil {
		a.Articles = len(result.Snapshot.Articles)
		a.Skipped = result.Snapshot.Skipped
		a.Filtered = result.Snapshot.Filtered
	}
	if result.Err != nil {
		a.ErrorKind = feed.ErrorKind(result.Err)
		a.Error = result.Err.Error()
	}
	return a
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
