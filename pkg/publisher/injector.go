package publisher

import (
	"context"
	"time"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
	"github.com/zhihuops/zhihu-mcp/pkg/logging"
)

// fillPollInterval paces retries while waiting for a slow-loading field to
// appear, within the single long fill deadline.
const fillPollInterval = 2 * time.Second

// Injector writes values into located elements so the host page's own
// state management observes them. The mechanism is bound to the target
// field, not chosen per call. Event dispatch is fire-and-forget: the
// injector never waits for the page's internal state to converge, that is
// the sequencer's job via settle waits.
type Injector struct {
	ch          browser.Channel
	log         *logging.Logger
	fillTimeout time.Duration
}

// NewInjector builds an injector over ch. fillTimeout is the long upper
// bound shared by all fill operations.
func NewInjector(ch browser.Channel, log *logging.Logger, fillTimeout time.Duration) *Injector {
	return &Injector{ch: ch, log: log, fillTimeout: fillTimeout}
}

// FillNative fills a plain form field through the channel's native fill
// capability, which waits for the element up to the fill deadline.
func (in *Injector) FillNative(ctx context.Context, ref browser.ElementRef, value string) (StepOutcome, error) {
	if err := in.ch.Fill(ctx, ref, value, in.fillTimeout); err != nil {
		return failedOutcome(false, err.Error()), err
	}
	return okOutcome(), nil
}

// FillScripted fills a plain form field by assigning the value property
// and dispatching a bubbling input event, for fields whose framework
// listens for standard input events.
func (in *Injector) FillScripted(ctx context.Context, ref browser.ElementRef, value string) (StepOutcome, error) {
	if ref.Kind == browser.RefSnapshot {
		// Snapshot refs have no selector to hand a script; the channel's
		// native fill types into the focused node instead.
		return in.FillNative(ctx, ref, value)
	}
	return in.evalFill(ctx, browser.OpFillField, browser.FieldArgs{
		Selector: ref.Selector,
		Value:    value,
	})
}

// FillRichText fills a contenteditable editing surface by focusing it and
// inserting text through the editing command, then dispatching input and
// change events. The editor framework backing the surface ignores direct
// property writes.
func (in *Injector) FillRichText(ctx context.Context, ref browser.ElementRef, value string) (StepOutcome, error) {
	if ref.Kind == browser.RefSnapshot {
		return in.FillNative(ctx, ref, value)
	}
	return in.evalFill(ctx, browser.OpInsertEditorText, browser.FieldArgs{
		Selector: ref.Selector,
		Value:    value,
	})
}

// evalFill runs a fill script, retrying "not found" until the fill
// deadline so a slow-loading editor is tolerated. Transport errors
// propagate; a lost readback is an unknown outcome, not a failure.
func (in *Injector) evalFill(ctx context.Context, op browser.Op, args browser.FieldArgs) (StepOutcome, error) {
	deadline := time.Now().Add(in.fillTimeout)

	for {
		res, err := in.ch.Evaluate(ctx, op, args)
		if err != nil {
			return failedOutcome(false, err.Error()), err
		}
		if res == nil {
			return unknownOutcome("fill returned no readback; the page may have re-rendered"), nil
		}
		if res.Success {
			return okOutcome(), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return failedOutcome(false, res.Error), nil
		}

		in.log.Debugf("fill %s pending (%s), retrying", op, res.Error)
		wait := fillPollInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return failedOutcome(false, ctx.Err().Error()), ctx.Err()
		case <-time.After(wait):
		}
	}
}
