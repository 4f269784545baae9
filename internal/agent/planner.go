package agent

import (
	"context"

	"leadflow/internal/llm"
)

// Planner decides the next action given the directive prompt and the
// transcript so far.
type Planner interface {
	Plan(ctx context.Context, system, user string) (string, error)
}

type PlannerFunc func(ctx context.Context, system, user string) (string, error)

func (f PlannerFunc) Plan(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// NewLLMPlanner plans with a language model.
func NewLLMPlanner(inferer llm.Inferer) Planner {
	return PlannerFunc(inferer.Infer)
}
