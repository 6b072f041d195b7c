package database

import (
	"context"
)

type AttemptRepository interface {
	InsertAttempt(ctx context.Context, attempt Attempt) error
	GetRecentAttempts(ctx context.Context, sourceID string, limit int) ([]Attempt, error)
	GetOutcomeCounts(ctx context.Context) ([]OutcomeCount, error)
	PruneAttempts(ctx context.Context, keepPerSource int) (int64, error)
}
