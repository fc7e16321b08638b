package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
)

// Locator finds the element a step targets and returns zero-or-one ref.
// A miss is browser.ErrNotFound, never a panic or an abort; the caller
// decides whether the miss is fatal for its step.
//
// The two implementations are interchangeable per deployment and satisfy
// the same contract over different channels.
type Locator interface {
	// Title locates the title input field.
	Title(ctx context.Context) (browser.ElementRef, error)

	// Content locates the rich-text content editor.
	Content(ctx context.Context) (browser.ElementRef, error)

	// Button locates a button by exact trimmed label, skipping candidates
	// whose text carries the exclude qualifier. The returned ref's
	// Disabled flag reflects the control's state at locate time.
	Button(ctx context.Context, label, exclude string) (browser.ElementRef, error)
}

// FieldSelectors are the per-flow CSS selectors for the selector strategy.
type FieldSelectors struct {
	Title   string
	Content string
}

// SelectorLocator queries the live DOM through CSS selectors. Field refs
// are issued without probing: the following fill reports the miss, which
// keeps locate-then-act a single remote round-trip per field.
type SelectorLocator struct {
	ch     browser.Channel
	fields FieldSelectors
}

// NewSelectorLocator builds a selector-strategy locator for one flow.
func NewSelectorLocator(ch browser.Channel, fields FieldSelectors) *SelectorLocator {
	return &SelectorLocator{ch: ch, fields: fields}
}

// Title implements Locator.
func (l *SelectorLocator) Title(ctx context.Context) (browser.ElementRef, error) {
	return browser.SelectorRef(l.fields.Title), nil
}

// Content implements Locator.
func (l *SelectorLocator) Content(ctx context.Context) (browser.ElementRef, error) {
	return browser.SelectorRef(l.fields.Content), nil
}

// Button implements Locator. Buttons are probed eagerly because the caller
// must see the disabled state before deciding to click.
func (l *SelectorLocator) Button(ctx context.Context, label, exclude string) (browser.ElementRef, error) {
	ref := browser.LabelRef(label, exclude)

	res, err := l.ch.Evaluate(ctx, browser.OpProbeButton, browser.ButtonArgs{Label: label, Exclude: exclude})
	if err != nil {
		return browser.ElementRef{}, err
	}
	if res == nil {
		// The probe was lost to a re-render. Hand back the ref anyway and
		// let the click attempt decide; the button is usually there.
		return ref, nil
	}

	var probe browser.ProbeData
	if err := res.Decode(&probe); err != nil {
		return browser.ElementRef{}, fmt.Errorf("probe for %q returned malformed data: %w", label, err)
	}
	if !probe.Found {
		return browser.ElementRef{}, fmt.Errorf("button %q: %w", label, browser.ErrNotFound)
	}

	ref.Disabled = probe.Disabled
	return ref, nil
}

// SnapshotHints disambiguate snapshot candidates by their description
// attribute. When no candidate matches a hint the locator falls back to
// position: first textbox for the title, second for the content.
type SnapshotHints struct {
	Title   string
	Content string
}

// SnapshotLocator pattern-matches accessibility snapshots. A fresh
// snapshot is taken immediately before each locate: refs from earlier
// snapshots are already invalid by the time an action would use them.
type SnapshotLocator struct {
	ch    browser.Channel
	hints SnapshotHints
}

// NewSnapshotLocator builds a snapshot-strategy locator.
func NewSnapshotLocator(ch browser.Channel, hints SnapshotHints) *SnapshotLocator {
	return &SnapshotLocator{ch: ch, hints: hints}
}

// Title implements Locator.
func (l *SnapshotLocator) Title(ctx context.Context) (browser.ElementRef, error) {
	return l.textbox(ctx, l.hints.Title, 0)
}

// Content implements Locator.
func (l *SnapshotLocator) Content(ctx context.Context) (browser.ElementRef, error) {
	return l.textbox(ctx, l.hints.Content, 1)
}

// textbox finds the multiline textbox matching the description hint, or
// the one at fallback position when no description matches.
func (l *SnapshotLocator) textbox(ctx context.Context, hint string, position int) (browser.ElementRef, error) {
	snap, err := l.ch.Snapshot(ctx)
	if err != nil {
		return browser.ElementRef{}, err
	}

	candidates := multilineTextboxes(snap)
	if len(candidates) == 0 {
		return browser.ElementRef{}, fmt.Errorf("no textboxes in snapshot: %w", browser.ErrNotFound)
	}

	if hint != "" {
		for _, n := range candidates {
			if strings.Contains(n.Description, hint) {
				ref, _ := snap.Ref(n.Ref)
				return ref, nil
			}
		}
	}

	if position >= len(candidates) {
		return browser.ElementRef{}, fmt.Errorf("no textbox at position %d: %w", position, browser.ErrNotFound)
	}
	ref, _ := snap.Ref(candidates[position].Ref)
	return ref, nil
}

// Button implements Locator.
func (l *SnapshotLocator) Button(ctx context.Context, label, exclude string) (browser.ElementRef, error) {
	snap, err := l.ch.Snapshot(ctx)
	if err != nil {
		return browser.ElementRef{}, err
	}

	for _, n := range snap.ByRole("button") {
		if strings.TrimSpace(n.Name) != label {
			continue
		}
		if exclude != "" && strings.Contains(n.Name, exclude) {
			continue
		}
		ref, ok := snap.Ref(n.Ref)
		if !ok {
			continue
		}
		return ref, nil
	}
	return browser.ElementRef{}, fmt.Errorf("button %q: %w", label, browser.ErrNotFound)
}

// multilineTextboxes prefers textboxes the accessibility tree marks as
// multiline, falling back to every textbox when it marks none.
func multilineTextboxes(snap *browser.Snapshot) []browser.AXNode {
	all := snap.ByRole("textbox")
	var multiline []browser.AXNode
	for _, n := range all {
		if n.Multiline {
			multiline = append(multiline, n)
		}
	}
	if len(multiline) > 0 {
		return multiline
	}
	return all
}
