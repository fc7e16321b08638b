package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhihuops/zhihu-mcp/pkg/logging"
)

func recordingStep(name string, ran *[]string, outcome StepOutcome, err error) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context) (StepOutcome, error) {
			*ran = append(*ran, name)
			return outcome, err
		},
	}
}

func TestSequencerRunsStepsInOrderExactlyOnce(t *testing.T) {
	var ran []string
	steps := []Step{
		recordingStep("first", &ran, okOutcome(), nil),
		recordingStep("second", &ran, okOutcome(), nil),
		recordingStep("third", &ran, okOutcome(), nil),
	}

	err := NewSequencer(logging.Nop()).Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)
}

func TestSequencerRequiredFailureAborts(t *testing.T) {
	var ran []string
	failing := recordingStep("locate title", &ran, failedOutcome(false, "element not found"), nil)
	failing.Required = true
	steps := []Step{
		recordingStep("navigate", &ran, okOutcome(), nil),
		failing,
		recordingStep("publish", &ran, okOutcome(), nil),
	}

	err := NewSequencer(logging.Nop()).Run(context.Background(), steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locate title")
	assert.Contains(t, err.Error(), "element not found")
	assert.Equal(t, []string{"navigate", "locate title"}, ran, "no step after a hard failure may run")
}

func TestSequencerOptionalFailureContinues(t *testing.T) {
	var ran []string
	steps := []Step{
		recordingStep("open composer", &ran, failedOutcome(false, "button not found"), nil),
		recordingStep("fill", &ran, okOutcome(), nil),
	}

	err := NewSequencer(logging.Nop()).Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"open composer", "fill"}, ran)
}

func TestSequencerUnknownOutcomeContinues(t *testing.T) {
	var ran []string
	ambiguous := recordingStep("fill", &ran, unknownOutcome("no readback"), nil)
	ambiguous.Required = true
	steps := []Step{
		ambiguous,
		recordingStep("publish", &ran, okOutcome(), nil),
	}

	err := NewSequencer(logging.Nop()).Run(context.Background(), steps)
	require.NoError(t, err, "ambiguity is not failure, even on required steps")
	assert.Equal(t, []string{"fill", "publish"}, ran)
}

func TestSequencerTransportErrorAlwaysAborts(t *testing.T) {
	transportErr := errors.New("websocket closed")
	var ran []string
	steps := []Step{
		recordingStep("click", &ran, StepOutcome{}, transportErr),
		recordingStep("verify", &ran, okOutcome(), nil),
	}

	err := NewSequencer(logging.Nop()).Run(context.Background(), steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, []string{"click"}, ran)
}

func TestSequencerSettleHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	steps := []Step{
		{
			Name:   "navigate",
			Settle: time.Hour,
			Run: func(ctx context.Context) (StepOutcome, error) {
				cancel()
				return okOutcome(), nil
			},
		},
	}

	start := time.Now()
	err := NewSequencer(logging.Nop()).Run(ctx, steps)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSequencerStopsBeforeStepOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran []string
	err := NewSequencer(logging.Nop()).Run(ctx, []Step{
		recordingStep("navigate", &ran, okOutcome(), nil),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ran)
}
