package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements ConversationStore on a hosted Postgres database.
type PostgresStore struct {
	db *sql.DB
}

var _ ConversationStore = (*PostgresStore)(nil)

// NewPostgres connects to databaseURL and ensures the conversation table exists.
func NewPostgres(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS admin_conversations (
			id UUID PRIMARY KEY,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_conversations_created ON admin_conversations(created_at)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

// InsertConversation appends an admin conversation row.
func (s *PostgresStore) InsertConversation(ctx context.Context, role domain.Role, content string) (*domain.ConversationRow, error) {
	row := &domain.ConversationRow{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO admin_conversations (id, role, content) VALUES ($1, $2, $3) RETURNING created_at`,
		row.ID, string(role), content,
	).Scan(&row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return row, nil
}

// ListConversations returns admin conversation rows oldest first.
func (s *PostgresStore) ListConversations(ctx context.Context, limit int) ([]domain.ConversationRow, error) {
	query := `SELECT id, role, content, created_at FROM admin_conversations ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		query = `
		SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at FROM admin_conversations
			ORDER BY created_at DESC LIMIT $1
		) recent ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	out := []domain.ConversationRow{}
	for rows.Next() {
		var row domain.ConversationRow
		var role string
		if err := rows.Scan(&row.ID, &role, &row.Content, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		row.Role = domain.Role(role)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

// OpenConversations returns the Postgres conversation store when databaseURL
// is set, and fallback otherwise.
func OpenConversations(databaseURL string, fallback ConversationStore) (ConversationStore, error) {
	if databaseURL == "" {
		return fallback, nil
	}
	return NewPostgres(databaseURL)
}
