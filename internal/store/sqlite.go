package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/shared"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository and ConversationStore using SQLite.
type SQLiteStore struct {
	db *sql.DB

	idMu    sync.Mutex
	entropy io.Reader
}

var (
	_ Repository        = (*SQLiteStore)(nil)
	_ ConversationStore = (*SQLiteStore)(nil)
)

// NewSQLite opens (creating if needed) the SQLite database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc.org/sqlite applies pragmas per connection through _pragma.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at);

	CREATE TABLE IF NOT EXISTS feature_usage (
		visitor_id TEXT NOT NULL,
		feature TEXT NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0,
		premium INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (visitor_id, feature)
	);

	CREATE TABLE IF NOT EXISTS admin_conversations (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_admin_conversations_created ON admin_conversations(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) newID(now time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, label, last_seen_at, created_at, updated_at
		FROM visitors WHERE visitor_id = ?`

	var v domain.Visitor
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(
		&v.VisitorID, &v.Label, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, label, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		label = excluded.label,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "upsert visitor", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			v.VisitorID, v.Label, v.LastSeenAt.Unix(), v.CreatedAt.Unix(), v.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert visitor: %w", err)
		}
		return nil
	})
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET last_seen_at = ?, updated_at = ? WHERE visitor_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), visitorID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "visitor_id", visitorID)
	}
	return nil
}

// GetUsage returns the visitor's usage for feature, or a zero state.
func (s *SQLiteStore) GetUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	query := `
		SELECT question_count, premium, updated_at
		FROM feature_usage WHERE visitor_id = ? AND feature = ?`

	state := &domain.UsageState{VisitorID: visitorID, Feature: feature}
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, visitorID, string(feature)).Scan(
		&state.QuestionCount, &state.Premium, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan usage row: %w", err)
	}
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return state, nil
}

// IncrementUsage atomically adds one to the visitor's question count.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	query := `
	INSERT INTO feature_usage (visitor_id, feature, question_count, premium, updated_at)
	VALUES (?, ?, 1, 0, ?)
	ON CONFLICT(visitor_id, feature) DO UPDATE SET
		question_count = feature_usage.question_count + 1,
		updated_at = excluded.updated_at
	RETURNING question_count, premium, updated_at`

	return s.upsertUsage(ctx, "increment usage", query, visitorID, feature)
}

// SetPremium marks the feature as unlocked for the visitor.
func (s *SQLiteStore) SetPremium(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	query := `
	INSERT INTO feature_usage (visitor_id, feature, question_count, premium, updated_at)
	VALUES (?, ?, 0, 1, ?)
	ON CONFLICT(visitor_id, feature) DO UPDATE SET
		premium = 1,
		updated_at = excluded.updated_at
	RETURNING question_count, premium, updated_at`

	return s.upsertUsage(ctx, "set premium", query, visitorID, feature)
}

func (s *SQLiteStore) upsertUsage(ctx context.Context, name, query, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	state := &domain.UsageState{VisitorID: visitorID, Feature: feature}
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, name, func(ctx context.Context) error {
		var updatedAt int64
		if err := s.db.QueryRowContext(ctx, query, visitorID, string(feature), time.Now().Unix()).Scan(
			&state.QuestionCount, &state.Premium, &updatedAt,
		); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		state.UpdatedAt = time.Unix(updatedAt, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CleanupIdleVisitors removes idle visitors that never recorded usage.
func (s *SQLiteStore) CleanupIdleVisitors(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
	DELETE FROM visitors
	WHERE last_seen_at < ?
	  AND NOT EXISTS (SELECT 1 FROM feature_usage u WHERE u.visitor_id = visitors.visitor_id)`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup idle visitors: %w", err)
	}
	return result.RowsAffected()
}

// InsertConversation appends an admin conversation row.
func (s *SQLiteStore) InsertConversation(ctx context.Context, role domain.Role, content string) (*domain.ConversationRow, error) {
	now := time.Now()
	row := &domain.ConversationRow{
		ID:        s.newID(now),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}

	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "insert conversation", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO admin_conversations (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			row.ID, string(row.Role), row.Content, now.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListConversations returns admin conversation rows oldest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]domain.ConversationRow, error) {
	query := `SELECT id, role, content, created_at FROM admin_conversations ORDER BY created_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query = `
		SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at FROM admin_conversations
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`
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
		var createdAt int64
		if err := rows.Scan(&row.ID, &role, &row.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		row.Role = domain.Role(role)
		row.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}
