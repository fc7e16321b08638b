package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/zhihuops/zhihu-mcp/pkg/logging"
)

// Step is one state of a publish flow's fixed state machine.
type Step struct {
	Name string

	// Required marks steps whose definite failure aborts the sequence:
	// navigation and the structurally required fill steps. Everything else
	// degrades to a warning.
	Required bool

	// Settle is slept after the step to let asynchronous rendering and
	// auto-save catch up before the next step reads page state.
	Settle time.Duration

	// Run performs the step. A returned error is a hard transport failure
	// and aborts regardless of Required.
	Run func(ctx context.Context) (StepOutcome, error)
}

// Sequencer executes a flow's steps strictly in order, each exactly once.
// A step without a definitive success signal does not abort the sequence:
// the host page frequently re-renders mid-step, so a readback can come
// back stale or empty even though the action landed.
type Sequencer struct {
	log *logging.Logger
}

// NewSequencer builds a sequencer.
func NewSequencer(log *logging.Logger) *Sequencer {
	return &Sequencer{log: log}
}

// Run executes steps in order and returns the first hard failure, if any.
func (s *Sequencer) Run(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Debugf("step %s: starting", step.Name)
		outcome, err := step.Run(ctx)
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}

		switch outcome.Status {
		case StepOK:
			s.log.Debugf("step %s: done", step.Name)
		case StepUnknown:
			s.log.Warnf("step %s: no definitive signal: %s", step.Name, outcome.Diagnostic)
		case StepFailed:
			if step.Required {
				return fmt.Errorf("step %s: %s", step.Name, outcome.Diagnostic)
			}
			s.log.Warnf("step %s: failed, continuing: %s", step.Name, outcome.Diagnostic)
		}

		if step.Settle > 0 {
			s.log.Debugf("step %s: settling for %s", step.Name, step.Settle)
			if err := settle(ctx, step.Settle); err != nil {
				return err
			}
		}
	}
	return nil
}

func settle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
