package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/etk18/portfolio/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVisitorUpsertAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetVisitor(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil visitor, got %v, %v", got, err)
	}

	now := time.Now()
	if err := s.UpsertVisitor(ctx, &domain.Visitor{
		VisitorID: "anon_1", Label: "visitor-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertVisitor failed: %v", err)
	}

	got, err = s.GetVisitor(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if got == nil || got.Label != "visitor-1" {
		t.Fatalf("unexpected visitor: %+v", got)
	}
}

func TestUsageStartsAtZero(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	state, err := s.GetUsage(context.Background(), "anon_1", domain.FeatureAssistant)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if state.QuestionCount != 0 || state.Premium {
		t.Fatalf("expected zero state, got %+v", state)
	}
}

func TestIncrementUsageIsPerFeature(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		state, err := s.IncrementUsage(ctx, "anon_1", domain.FeatureAssistant)
		if err != nil {
			t.Fatalf("IncrementUsage failed: %v", err)
		}
		if state.QuestionCount != i {
			t.Fatalf("expected count %d, got %d", i, state.QuestionCount)
		}
	}

	ats, err := s.GetUsage(ctx, "anon_1", domain.FeatureATS)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if ats.QuestionCount != 0 {
		t.Fatalf("expected ats usage untouched, got %d", ats.QuestionCount)
	}
}

func TestSetPremiumKeepsCount(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.IncrementUsage(ctx, "anon_1", domain.FeatureAssistant); err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}
	state, err := s.SetPremium(ctx, "anon_1", domain.FeatureAssistant)
	if err != nil {
		t.Fatalf("SetPremium failed: %v", err)
	}
	if !state.Premium || state.QuestionCount != 1 {
		t.Fatalf("unexpected state after unlock: %+v", state)
	}

	reloaded, err := s.GetUsage(ctx, "anon_1", domain.FeatureAssistant)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if !reloaded.Premium {
		t.Fatal("expected premium to persist")
	}
}

func TestIncrementUsageConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementUsage(ctx, "anon_1", domain.FeatureAssistant); err != nil {
				t.Errorf("IncrementUsage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := s.GetUsage(ctx, "anon_1", domain.FeatureAssistant)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if state.QuestionCount != 10 {
		t.Fatalf("expected 10, got %d", state.QuestionCount)
	}
}

func TestCleanupIdleVisitorsKeepsVisitorsWithUsage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{"anon_idle", "anon_used"} {
		if err := s.UpsertVisitor(ctx, &domain.Visitor{VisitorID: id, Label: id, LastSeenAt: old, CreatedAt: old, UpdatedAt: old}); err != nil {
			t.Fatalf("UpsertVisitor failed: %v", err)
		}
	}
	if _, err := s.IncrementUsage(ctx, "anon_used", domain.FeatureAssistant); err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}

	deleted, err := s.CleanupIdleVisitors(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupIdleVisitors failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if v, _ := s.GetVisitor(ctx, "anon_used"); v == nil {
		t.Fatal("expected visitor with usage to survive")
	}
}

func TestConversationsListAscendingWithLimit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if _, err := s.InsertConversation(ctx, role, c); err != nil {
			t.Fatalf("InsertConversation failed: %v", err)
		}
	}

	all, err := s.ListConversations(ctx, 0)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(all) != 4 || all[0].Content != "one" || all[3].Content != "four" {
		t.Fatalf("unexpected order: %+v", all)
	}

	recent, err := s.ListConversations(ctx, 2)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "three" || recent[1].Content != "four" {
		t.Fatalf("expected last two rows ascending, got %+v", recent)
	}
	if recent[1].Role != domain.RoleAssistant {
		t.Fatalf("expected assistant role, got %q", recent[1].Role)
	}
}

func TestPostgresConversations(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	row, err := s.InsertConversation(context.Background(), domain.RoleUser, "hello from test")
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}
	if row.ID == "" || row.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at, got %+v", row)
	}

	rows, err := s.ListConversations(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
}

func TestOpenConversationsFallsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := OpenConversations("", s)
	if err != nil {
		t.Fatalf("OpenConversations failed: %v", err)
	}
	if got != ConversationStore(s) {
		t.Fatal("expected fallback store")
	}
}
