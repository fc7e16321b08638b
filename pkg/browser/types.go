package browser

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors callers branch on.
var (
	// ErrNoPage means the remote browser has no usable context or page.
	ErrNoPage = errors.New("no open page available in remote browser")

	// ErrNotFound means an element lookup produced no match.
	ErrNotFound = errors.New("element not found")

	// ErrStaleRef means a snapshot-scoped ref was used after a newer
	// snapshot invalidated it.
	ErrStaleRef = errors.New("element ref is stale: a newer snapshot was taken")
)

// RefKind identifies the concrete form of an ElementRef.
type RefKind int

const (
	// RefSelector addresses an element by CSS selector. Stable for as long
	// as the node persists in the DOM.
	RefSelector RefKind = iota

	// RefLabel addresses a button-like element by its exact trimmed visible
	// text, optionally excluding candidates carrying a qualifier substring.
	RefLabel

	// RefSnapshot addresses an element by an accessibility snapshot ref.
	// Valid only until the next snapshot is taken.
	RefSnapshot
)

// ElementRef is an opaque handle to one located element. It is created by a
// locate step, consumed by the immediately following action, and discarded;
// refs must never be cached across steps.
type ElementRef struct {
	Kind RefKind

	// Selector is set for RefSelector refs.
	Selector string

	// Label and Exclude are set for RefLabel refs.
	Label   string
	Exclude string

	// SnapshotID and Generation are set for RefSnapshot refs. Generation is
	// the snapshot generation that issued the ref; channels reject refs
	// whose generation is no longer current.
	SnapshotID string
	Generation uint64

	// Disabled reports the control's disabled state as observed at locate
	// time. Advisory: the page may have changed since.
	Disabled bool
}

// SelectorRef builds a CSS selector ref.
func SelectorRef(selector string) ElementRef {
	return ElementRef{Kind: RefSelector, Selector: selector}
}

// LabelRef builds an exact-label button ref.
func LabelRef(label, exclude string) ElementRef {
	return ElementRef{Kind: RefLabel, Label: label, Exclude: exclude}
}

// EvalResult is the single typed envelope returned by script evaluation.
// Both channels collapse their native result shapes into this envelope, so
// the engine never inspects transport-specific structures.
//
// A nil *EvalResult with a nil error is a real state: the page re-rendered
// or navigated before a value came back. That is ambiguity, not failure.
type EvalResult struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the envelope's data payload into out.
func (r *EvalResult) Decode(out interface{}) error {
	if r == nil || len(r.Data) == 0 {
		return errors.New("eval result has no data")
	}
	return json.Unmarshal(r.Data, out)
}

// Defaults for channel operations.
const (
	// DefaultNavTimeout bounds page navigation.
	DefaultNavTimeout = 30 * time.Second

	// DefaultFillTimeout is the long upper bound for fill operations,
	// sized to tolerate a slow-loading editor.
	DefaultFillTimeout = 5 * time.Minute
)
