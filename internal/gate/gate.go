// Package gate implements the free-usage counter and premium passkey unlock
// shared by the assistant and the resume checker.
package gate

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/etk18/portfolio/internal/domain"
)

// ErrInvalidPasskey is returned by Unlock when the attempt does not match.
var ErrInvalidPasskey = errors.New("invalid passkey")

// Unlimited is reported by Remaining for premium visitors.
const Unlimited = -1

// UsageStore is the subset of store.Repository a Gate needs.
type UsageStore interface {
	GetUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)
	IncrementUsage(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)
	SetPremium(ctx context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error)
}

// Gate enforces the free limit for one feature.
type Gate struct {
	store   UsageStore
	feature domain.Feature
	limit   int
	passkey string
}

// New creates a Gate for feature with the given free limit and passkey.
func New(store UsageStore, feature domain.Feature, limit int, passkey string) *Gate {
	if limit < 0 {
		limit = 0
	}
	return &Gate{store: store, feature: feature, limit: limit, passkey: passkey}
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	State   domain.UsageState
}

// Feature returns the gated feature.
func (g *Gate) Feature() domain.Feature { return g.feature }

// Limit returns the number of free uses.
func (g *Gate) Limit() int { return g.limit }

// Check reports whether visitorID may use the feature now.
func (g *Gate) Check(ctx context.Context, visitorID string) (Decision, error) {
	state, err := g.store.GetUsage(ctx, visitorID, g.feature)
	if err != nil {
		return Decision{}, fmt.Errorf("load %s usage: %w", g.feature, err)
	}
	return Decision{Allowed: g.allows(*state), State: *state}, nil
}

// State returns the current usage state.
func (g *Gate) State(ctx context.Context, visitorID string) (domain.UsageState, error) {
	d, err := g.Check(ctx, visitorID)
	return d.State, err
}

// Consume records one successful use. Premium visitors are not counted.
func (g *Gate) Consume(ctx context.Context, visitorID string) (domain.UsageState, error) {
	state, err := g.store.GetUsage(ctx, visitorID, g.feature)
	if err != nil {
		return domain.UsageState{}, fmt.Errorf("load %s usage: %w", g.feature, err)
	}
	if state.Premium {
		return *state, nil
	}
	state, err = g.store.IncrementUsage(ctx, visitorID, g.feature)
	if err != nil {
		return domain.UsageState{}, fmt.Errorf("increment %s usage: %w", g.feature, err)
	}
	return *state, nil
}

// Unlock sets the premium flag when attempt equals the configured passkey.
func (g *Gate) Unlock(ctx context.Context, visitorID, attempt string) (domain.UsageState, error) {
	if g.passkey == "" || subtle.ConstantTimeCompare([]byte(attempt), []byte(g.passkey)) != 1 {
		return domain.UsageState{}, ErrInvalidPasskey
	}
	state, err := g.store.SetPremium(ctx, visitorID, g.feature)
	if err != nil {
		return domain.UsageState{}, fmt.Errorf("unlock %s: %w", g.feature, err)
	}
	return *state, nil
}

// Remaining returns the free uses left, or Unlimited for premium.
func (g *Gate) Remaining(state domain.UsageState) int {
	if state.Premium {
		return Unlimited
	}
	return max(0, g.limit-state.QuestionCount)
}

func (g *Gate) allows(state domain.UsageState) bool {
	return state.Premium || state.QuestionCount < g.limit
}
