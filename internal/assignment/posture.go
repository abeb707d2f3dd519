package assignment

import (
	"context"

	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
)

// PostureSource reports the current roster posture.
type PostureSource interface {
	Snapshot() rebalance.State
}

// WithPosture wraps a Service so every assignment inherits the roster
// posture: the fairness dampening factor and the new-interpreter grace set.
// Explicitly set options on the input win over the posture defaults.
func WithPosture(next Service, source PostureSource) Service {
	if source == nil {
		return next
	}
	return &postured{next: next, source: source}
}

type postured struct {
	next   Service
	source PostureSource
}

func (p *postured) Assign(ctx context.Context, input AssignInput) (*Result, error) {
	return p.next.Assign(ctx, p.apply(input))
}

func (p *postured) Preview(ctx context.Context, input AssignInput) (*Result, error) {
	return p.next.Preview(ctx, p.apply(input))
}

func (p *postured) apply(input AssignInput) AssignInput {
	state := p.source.Snapshot()
	if input.Options.FairnessAdjust == 0 {
		input.Options.FairnessAdjust = state.FairnessAdjust
	}
	if input.Options.GraceInterpreters == nil {
		input.Options.GraceInterpreters = state.GraceInterpreters
	}
	return input
}
