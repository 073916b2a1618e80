// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/etk18/portfolio/internal/domain"
)

// Repository defines the interface for persisting visitors and their usage.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. Returns nil, nil when absent.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// GetUsage returns the usage state for a visitor and feature. A visitor
	// with no recorded usage gets a zero state, never nil.
	GetUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)

	// IncrementUsage atomically adds one to the question count.
	IncrementUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)

	// SetPremium marks the feature as unlocked for the visitor.
	SetPremium(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)

	// CleanupIdleVisitors removes visitors idle longer than ttl that never
	// recorded any usage.
	CleanupIdleVisitors(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ConversationStore persists the admin conversation log.
type ConversationStore interface {
	// InsertConversation appends a row and returns it with ID and timestamp set.
	InsertConversation(ctx context.Context, role domain.Role, content string) (*domain.ConversationRow, error)

	// ListConversations returns rows in ascending creation order. When
	// limit > 0 only the most recent limit rows are returned.
	ListConversations(ctx context.Context, limit int) ([]domain.ConversationRow, error)

	Ping(ctx context.Context) error
	Close() error
}
