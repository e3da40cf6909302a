package identity

import (
	"context"

	"github.com/rs/zerolog"
)

// undoStep reverses one completed step of a multi-step registration.
type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

// compensator collects undo steps as a registration progresses and runs
// them in reverse order when a later step fails.
type compensator struct {
	steps  []undoStep
	logger zerolog.Logger
}

func newCompensator(logger zerolog.Logger) *compensator {
	return &compensator{logger: logger}
}

func (c *compensator) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, undo: undo})
}

// rollback runs every undo step, even after one fails. It ignores
// cancellation of ctx so a dropped request still cleans up.
func (c *compensator) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			c.logger.Error().Err(err).Str("step", step.name).Msg("registration compensation failed")
			continue
		}
		c.logger.Warn().Str("step", step.name).Msg("registration step compensated")
	}
	c.steps = nil
}
