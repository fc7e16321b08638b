package browser

import (
	"context"
	"time"
)

// Channel is the control channel used to drive an already-running browser.
// Implementations connect to a shared browser instance they do not own:
// Close disconnects the channel only and must leave the browser running.
//
// All blocking operations take a context; a call suspends the caller until
// the remote browser responds.
type Channel interface {
	// Navigate loads url in the channel's page.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a named script operation with a structured argument
	// bag. Values are serialized once inside the channel; call sites never
	// concatenate user text into script source. A (nil, nil) return means
	// the page yielded no value (re-render or navigation mid-call).
	Evaluate(ctx context.Context, op Op, args interface{}) (*EvalResult, error)

	// Snapshot takes a structured accessibility snapshot of the page.
	// Taking a snapshot invalidates every ref issued by prior snapshots.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Fill writes value into the referenced element. timeout is the long
	// fill upper bound, not a settle wait.
	Fill(ctx context.Context, ref ElementRef, value string, timeout time.Duration) error

	// Click clicks the referenced element.
	Click(ctx context.Context, ref ElementRef) error

	// PageText returns the visible text of the page body.
	PageText(ctx context.Context) (string, error)

	// PageURL returns the page's current URL.
	PageURL(ctx context.Context) (string, error)

	// Close disconnects the control channel, leaving the shared browser
	// and its pages untouched.
	Close() error
}

// Dialer opens a control channel to the remote browser. The engine dials
// once per publish call and closes the channel when the call completes.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}
