package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/gate"
)

type memUsage struct {
	mu     sync.Mutex
	states map[string]*domain.UsageState
}

func newMemUsage() *memUsage {
	return &memUsage{states: make(map[string]*domain.UsageState)}
}

func (m *memUsage) state(visitorID string, feature domain.Feature) *domain.UsageState {
	key := visitorID + "/" + string(feature)
	if s, ok := m.states[key]; ok {
		return s
	}
	s := &domain.UsageState{VisitorID: visitorID, Feature: feature}
	m.states[key] = s
	return s
}

func (m *memUsage) GetUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *m.state(visitorID, feature)
	return &copy, nil
}

func (m *memUsage) IncrementUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(visitorID, feature)
	s.QuestionCount++
	copy := *s
	return &copy, nil
}

func (m *memUsage) SetPremium(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(visitorID, feature)
	s.Premium = true
	copy := *s
	return &copy, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingCompleter struct {
	calls atomic.Int32
	reply string
	err   error
	last  Request
	mu    sync.Mutex
}

func (c *countingCompleter) Complete(_ context.Context, req Request) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = req
	c.mu.Unlock()
	return c.reply, c.err
}

type fixture struct {
	usage     *memUsage
	clock     *fakeClock
	completer *countingCompleter
	session   *Session
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	f := &fixture{
		usage:     newMemUsage(),
		clock:     newFakeClock(),
		completer: &countingCompleter{reply: "Eesh builds ML systems."},
	}
	g := gate.New(f.usage, domain.FeatureAssistant, limit, "eesh2025")
	cfg := DefaultConfig()
	cfg.Now = f.clock.Now
	f.session = NewSession("anon_1", "tab-1", g, f.completer, cfg)
	return f
}

// send submits text and skips past the cooldown afterwards.
func (f *fixture) send(t *testing.T, text string) Outcome {
	t.Helper()
	out, err := f.session.Submit(context.Background(), text)
	if err != nil {
		t.Fatalf("Submit(%q) failed: %v", text, err)
	}
	f.clock.Advance(6 * time.Second)
	return out
}

func TestNewSessionStartsWithGreeting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	snap, err := f.session.State(context.Background())
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if len(snap.Turns) != 1 || snap.Turns[0].Content != Greeting || snap.Turns[0].Role != domain.RoleAssistant {
		t.Fatalf("unexpected initial turns: %+v", snap.Turns)
	}
	if snap.Remaining != 2 || snap.FreeLimit != 2 {
		t.Fatalf("unexpected remaining/limit: %d/%d", snap.Remaining, snap.FreeLimit)
	}
}

func TestSubmitCountsOnlySuccessfulSendsAndBlocksAtLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	for i, q := range []string{"a", "b"} {
		out := f.send(t, q)
		if out.Status != StatusAnswered {
			t.Fatalf("send %d: expected answered, got %s", i+1, out.Status)
		}
		if out.State.QuestionCount != i+1 {
			t.Fatalf("send %d: expected count %d, got %d", i+1, i+1, out.State.QuestionCount)
		}
	}

	out := f.send(t, "c")
	if out.Status != StatusPaywall {
		t.Fatalf("expected paywall, got %s", out.Status)
	}
	if !out.State.Paywall {
		t.Fatal("expected paywall flag in state")
	}
	if out.State.QuestionCount != 2 {
		t.Fatalf("blocked send must not increment, got %d", out.State.QuestionCount)
	}
	if got := len(out.State.Turns); got != 5 {
		t.Fatalf("blocked send must not append a turn, got %d turns", got)
	}
	if calls := f.completer.calls.Load(); calls != 2 {
		t.Fatalf("expected 2 remote calls, got %d", calls)
	}
}

func TestUnlockedSessionIsNeverGated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	if _, err := f.session.Unlock(context.Background(), "eesh2025"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		out := f.send(t, "question")
		if out.Status != StatusAnswered {
			t.Fatalf("send %d: expected answered, got %s", i+1, out.Status)
		}
		if out.State.QuestionCount != 0 {
			t.Fatalf("premium sends must not be counted, got %d", out.State.QuestionCount)
		}
		if out.State.Remaining != gate.Unlimited {
			t.Fatalf("expected unlimited remaining, got %d", out.State.Remaining)
		}
	}
}

func TestUnlockRejectsWrongPasskey(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	snap, err := f.session.Unlock(context.Background(), "letmein")
	if !errors.Is(err, gate.ErrInvalidPasskey) {
		t.Fatalf("expected ErrInvalidPasskey, got %v", err)
	}
	if snap.Premium {
		t.Fatal("premium must stay false")
	}
}

func TestResetKeepsUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	f.send(t, "a")
	f.send(t, "b")
	f.send(t, "c") // paywall

	snap, err := f.session.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(snap.Turns) != 1 || snap.Turns[0].Content != Greeting {
		t.Fatalf("expected greeting only, got %+v", snap.Turns)
	}
	if snap.QuestionCount != 2 {
		t.Fatalf("reset must not touch usage, got %d", snap.QuestionCount)
	}
	if snap.Paywall {
		t.Fatal("reset should clear the paywall flag")
	}
	if snap.CooldownSeconds != 0 {
		t.Fatalf("reset should clear cooldown, got %d", snap.CooldownSeconds)
	}
}

func TestCooldownMakesSubmitANoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)
	ctx := context.Background()

	if _, err := f.session.Submit(ctx, "first"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	f.clock.Advance(500 * time.Millisecond)

	out, err := f.session.Submit(ctx, "second")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.Status != StatusCoolingDown {
		t.Fatalf("expected cooling_down, got %s", out.Status)
	}
	if out.State.CooldownSeconds != 5 {
		t.Fatalf("expected 5s remaining (ceil of 4.5s), got %d", out.State.CooldownSeconds)
	}
	if len(out.State.Turns) != 3 {
		t.Fatalf("cooldown send must not append, got %d turns", len(out.State.Turns))
	}
	if calls := f.completer.calls.Load(); calls != 1 {
		t.Fatalf("cooldown send must not call remote, got %d calls", calls)
	}

	f.clock.Advance(4500 * time.Millisecond)
	if got := f.session.CooldownSeconds(); got != 0 {
		t.Fatalf("expected cooldown elapsed, got %d", got)
	}
}

func TestFailedCompletionAppendsCannedReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.completer.err = errors.New("upstream 500")

	out, err := f.session.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	turns := out.State.Turns
	if len(turns) != 3 || turns[2].Content != FailureReply {
		t.Fatalf("expected single canned reply, got %+v", turns)
	}
	if out.State.QuestionCount != 0 {
		t.Fatalf("failed send must not count, got %d", out.State.QuestionCount)
	}
	if out.State.CooldownSeconds != 0 {
		t.Fatalf("failed send must not start cooldown, got %d", out.State.CooldownSeconds)
	}
	if calls := f.completer.calls.Load(); calls != 1 {
		t.Fatalf("expected no retry, got %d calls", calls)
	}
}

func TestEmptyCompletionCountsAsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.completer.reply = "   "

	out, err := f.session.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.Status != StatusFailed || out.Reply == nil || out.Reply.Content != FailureReply {
		t.Fatalf("expected failure reply, got %+v", out)
	}
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	if _, err := f.session.Submit(context.Background(), "  \n "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestScenarioPaywallThenUnlock(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()

	f.send(t, "a")
	f.send(t, "b")
	if out := f.send(t, "c"); out.Status != StatusPaywall {
		t.Fatalf("expected paywall for c, got %s", out.Status)
	}

	snap, err := f.session.Unlock(ctx, "eesh2025")
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !snap.Premium || snap.Paywall {
		t.Fatalf("expected premium without paywall, got %+v", snap)
	}

	out := f.send(t, "c")
	if out.Status != StatusAnswered {
		t.Fatalf("expected c answered after unlock, got %s", out.Status)
	}
	if out.State.QuestionCount != 2 {
		t.Fatalf("expected count to stay 2, got %d", out.State.QuestionCount)
	}
}

type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCompleter) Complete(ctx context.Context, _ Request) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return "late reply", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSecondSubmitWhileInFlightIsBusy(t *testing.T) {
	t.Parallel()
	usage := newMemUsage()
	bc := &blockingCompleter{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession("anon_1", "tab-1", gate.New(usage, domain.FeatureAssistant, 5, "k"), bc, DefaultConfig())

	done := make(chan Outcome, 1)
	go func() {
		out, _ := s.Submit(context.Background(), "first")
		done <- out
	}()
	<-bc.started

	out, err := s.Submit(context.Background(), "second")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.Status != StatusBusy {
		t.Fatalf("expected busy, got %s", out.Status)
	}
	if !out.State.Busy {
		t.Fatal("expected busy flag in state")
	}

	close(bc.release)
	first := <-done
	if first.Status != StatusAnswered {
		t.Fatalf("expected first answered, got %s", first.Status)
	}
	if len(first.State.Turns) != 3 {
		t.Fatalf("expected greeting + one exchange, got %d turns", len(first.State.Turns))
	}
}

func TestResetDuringFlightDiscardsReply(t *testing.T) {
	t.Parallel()
	usage := newMemUsage()
	bc := &blockingCompleter{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession("anon_1", "tab-1", gate.New(usage, domain.FeatureAssistant, 5, "k"), bc, DefaultConfig())

	done := make(chan Outcome, 1)
	go func() {
		out, _ := s.Submit(context.Background(), "first")
		done <- out
	}()
	<-bc.started

	if _, err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	close(bc.release)
	out := <-done

	if out.Reply != nil {
		t.Fatalf("stale reply must not be reported as appended, got %+v", out.Reply)
	}
	if len(out.State.Turns) != 1 || out.State.Turns[0].Content != Greeting {
		t.Fatalf("expected greeting only after reset, got %+v", out.State.Turns)
	}
	if out.State.QuestionCount != 1 {
		t.Fatalf("answered request still consumes quota, got %d", out.State.QuestionCount)
	}
}

func TestCompleterReceivesPriorTurnsAndExchanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)

	f.send(t, "a")
	f.completer.err = errors.New("down")
	f.send(t, "b")
	f.completer.err = nil
	f.send(t, "c")

	f.completer.mu.Lock()
	last := f.completer.last
	f.completer.mu.Unlock()

	if last.Message != "c" {
		t.Fatalf("expected message c, got %q", last.Message)
	}
	if len(last.Turns) != 5 || last.Turns[0].Content != Greeting {
		t.Fatalf("expected full transcript of 5 turns, got %+v", last.Turns)
	}
	if len(last.Exchanges) != 2 || last.Exchanges[0].Content != "a" {
		t.Fatalf("expected only the answered exchange, got %+v", last.Exchanges)
	}
}

func TestExchangesAreCapped(t *testing.T) {
	t.Parallel()
	usage := newMemUsage()
	clock := newFakeClock()
	cc := &countingCompleter{reply: "ok"}
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.MaxExchanges = 4
	s := NewSession("anon_1", "tab-1", gate.New(usage, domain.FeatureAssistant, 100, "k"), cc, cfg)

	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		if _, err := s.Submit(context.Background(), q); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		clock.Advance(10 * time.Second)
	}

	cc.mu.Lock()
	last := cc.last
	cc.mu.Unlock()
	if len(last.Exchanges) != 4 || last.Exchanges[0].Content != "q2" {
		t.Fatalf("expected last 4 exchange turns starting at q2, got %+v", last.Exchanges)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	turns []domain.Turn
}

func (r *recordingObserver) ObserveTurn(_, _ string, turn domain.Turn, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
}

func TestObserverSeesUserAndAssistantTurns(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.Observer = obs
	s := NewSession("anon_1", "tab-1", gate.New(newMemUsage(), domain.FeatureAssistant, 2, "k"),
		&countingCompleter{reply: "hi"}, cfg)

	if _, err := s.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.turns) != 2 || obs.turns[0].Role != domain.RoleUser || obs.turns[1].Content != "hi" {
		t.Fatalf("unexpected observed turns: %+v", obs.turns)
	}
}
