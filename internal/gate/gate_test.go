package gate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/etk18/portfolio/internal/domain"
)

type fakeUsage struct {
	mu     sync.Mutex
	states map[string]*domain.UsageState
	err    error
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{states: make(map[string]*domain.UsageState)}
}

func (f *fakeUsage) get(visitorID string, feature domain.Feature) *domain.UsageState {
	key := visitorID + "/" + string(feature)
	s, ok := f.states[key]
	if !ok {
		s = &domain.UsageState{VisitorID: visitorID, Feature: feature}
		f.states[key] = s
	}
	return s
}

func (f *fakeUsage) GetUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	copy := *f.get(visitorID, feature)
	return &copy, nil
}

func (f *fakeUsage) IncrementUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.get(visitorID, feature)
	s.QuestionCount++
	copy := *s
	return &copy, nil
}

func (f *fakeUsage) SetPremium(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.get(visitorID, feature)
	s.Premium = true
	copy := *s
	return &copy, nil
}

func TestGateBlocksAtLimit(t *testing.T) {
	t.Parallel()
	g := New(newFakeUsage(), domain.FeatureAssistant, 2, "eesh2025")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := g.Check(ctx, "v1")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected use %d to be allowed", i+1)
		}
		if _, err := g.Consume(ctx, "v1"); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
	}

	d, err := g.Check(ctx, "v1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third use to be blocked")
	}
	if d.State.QuestionCount != 2 {
		t.Fatalf("expected count 2, got %d", d.State.QuestionCount)
	}
	if got := g.Remaining(d.State); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestUnlockAllowsForever(t *testing.T) {
	t.Parallel()
	usage := newFakeUsage()
	g := New(usage, domain.FeatureAssistant, 0, "eesh2025")
	ctx := context.Background()

	state, err := g.Unlock(ctx, "v1", "eesh2025")
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !state.Premium {
		t.Fatal("expected premium")
	}
	if g.Remaining(state) != Unlimited {
		t.Fatalf("expected unlimited, got %d", g.Remaining(state))
	}

	for i := 0; i < 5; i++ {
		d, _ := g.Check(ctx, "v1")
		if !d.Allowed {
			t.Fatalf("premium visitor blocked on use %d", i+1)
		}
		after, _ := g.Consume(ctx, "v1")
		if after.QuestionCount != 0 {
			t.Fatalf("premium use should not be counted, got %d", after.QuestionCount)
		}
	}
}

func TestUnlockRejectsWrongPasskey(t *testing.T) {
	t.Parallel()
	g := New(newFakeUsage(), domain.FeatureAssistant, 2, "eesh2025")

	for _, attempt := range []string{"", "eesh2024", "EESH2025", "eesh2025 "} {
		if _, err := g.Unlock(context.Background(), "v1", attempt); !errors.Is(err, ErrInvalidPasskey) {
			t.Fatalf("attempt %q: expected ErrInvalidPasskey, got %v", attempt, err)
		}
	}
	state, _ := g.State(context.Background(), "v1")
	if state.Premium {
		t.Fatal("premium must not be set by a failed unlock")
	}
}

func TestGateFeaturesAreIndependent(t *testing.T) {
	t.Parallel()
	usage := newFakeUsage()
	assistant := New(usage, domain.FeatureAssistant, 1, "k")
	ats := New(usage, domain.FeatureATS, 1, "k")
	ctx := context.Background()

	if _, err := assistant.Consume(ctx, "v1"); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	d, _ := ats.Check(ctx, "v1")
	if !d.Allowed {
		t.Fatal("ats gate should not see assistant usage")
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	t.Parallel()
	usage := newFakeUsage()
	usage.err = errors.New("boom")
	g := New(usage, domain.FeatureAssistant, 2, "k")

	if _, err := g.Check(context.Background(), "v1"); err == nil {
		t.Fatal("expected error")
	}
}
