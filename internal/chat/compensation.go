package chat

import (
	"context"
	"log"
)

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

// compensation collects undo steps for a multi-store operation. Steps run in
// reverse order of registration; their failures are logged and never
// returned, so the error that triggered the rollback reaches the caller.
type compensation struct {
	steps []compensationStep
	log   *log.Logger
}

func newCompensation(logger *log.Logger) *compensation {
	return &compensation{log: logger}
}

func (c *compensation) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

func (c *compensation) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			c.log.Printf("compensation %q failed: %v", step.name, err)
		}
	}
	c.steps = nil
}
