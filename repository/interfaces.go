// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/tally/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// CounterRepository owns the singleton counter row. It never exposes a
// collection: every method addresses the one counter.
type CounterRepository interface {
	// Current returns the counter, or nil when it has not been created yet.
	// Without a row under the default name, the oldest row is the counter.
	Current(ctx context.Context) (*models.Counter, error)
	// GetOrCreate returns the counter, creating it with count 0 if absent.
	GetOrCreate(ctx context.Context) (*models.Counter, error)
	// Increment adds exactly one to the counter and returns the persisted row.
	Increment(ctx context.Context) (*models.Counter, error)
}
