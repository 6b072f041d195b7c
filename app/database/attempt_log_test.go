package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	mu       sync.Mutex
	attempts []Attempt
	block    chan struct{}
}

func (m *memoryRepository) InsertAttempt(ctx context.Context, a Attempt) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryRepository) GetRecentAttempts(ctx context.Context, sourceID string, limit int) ([]Attempt, error) {
	return nil, nil
}

func (m *memoryRepository) GetOutcomeCounts(ctx context.Context) ([]OutcomeCount, error) {
	return nil, nil
}

func (m *memoryRepository) PruneAttempts(ctx context.Context, keepPerSource int) (int64, error) {
	return 0, nil
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func TestAttemptLog_FlushesOnStop(t *testing.T) {
	repo := &memoryRepository{}
	log := NewAttemptLog(repo, AttemptLogOptions{BufferSize: 16})
	log.Start()

	for i := 0; i < 10; i++ {
		log.Record(attemptAt("id", "a", "updated", int64(i)))
	}
	log.Stop()

	assert.Equal(t, 10, repo.count())
}

func TestAttemptLog_DropsWhenFull(t *testing.T) {
	repo := &memoryRepository{block: make(chan struct{})}
	log := NewAttemptLog(repo, AttemptLogOptions{BufferSize: 2})

	// Not started: nothing drains the buffer.
	for i := 0; i < 5; i++ {
		log.Record(attemptAt("id", "a", "updated", int64(i)))
	}
	require.Len(t, log.queue, 2)

	close(repo.block)
	log.Start()
	log.Stop()

	assert.Equal(t, 2, repo.count())
}

func TestAttemptLog_WritesToSqlite(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	log := NewAttemptLog(repo, AttemptLogOptions{})
	log.Start()

	log.Record(attemptAt("1", "a", "updated", 1))
	log.Record(attemptAt("2", "a", "failed", 2))
	log.Stop()

	recent, err := repo.GetRecentAttempts(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
