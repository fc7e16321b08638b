package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/mailru/easyjson"
)

// CDPDialer connects to the shared browser's DevTools endpoint with
// chromedp. This is the channel behind the snapshot locator strategy.
type CDPDialer struct {
	// Endpoint is the CDP endpoint URL of the already-running browser.
	Endpoint string
}

// Dial attaches to the browser's first existing page tab. It never opens a
// tab of its own: the page is a shared resource owned by whoever started
// the browser.
func (d *CDPDialer) Dial(ctx context.Context) (Channel, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), d.Endpoint)

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to list browser targets at %s: %w", d.Endpoint, err)
	}

	var pageID target.ID
	for _, t := range targets {
		if t.Type == "page" && !t.Attached {
			pageID = t.TargetID
			break
		}
	}
	if pageID == "" {
		// Fall back to any page target before giving up.
		for _, t := range targets {
			if t.Type == "page" {
				pageID = t.TargetID
				break
			}
		}
	}
	if pageID == "" {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("no page targets in remote browser: %w", ErrNoPage)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(pageID))
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to attach to page: %w", err)
	}

	return &CDPChannel{
		ctx: tabCtx,
		cancels: []context.CancelFunc{
			cancelTab,
			cancelBrowser,
			cancelAlloc,
		},
	}, nil
}

// CDPChannel drives the attached tab over raw DevTools commands. Element
// refs come from accessibility snapshots; actions resolve them to backend
// DOM nodes.
type CDPChannel struct {
	ctx     context.Context
	cancels []context.CancelFunc
	refs    refTable
}

// run executes chromedp actions against the attached tab, honoring the
// caller's context deadline.
func (c *CDPChannel) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.ctx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate implements Channel.
func (c *CDPChannel) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, DefaultNavTimeout)
	defer cancel()

	err := c.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Evaluate implements Channel. The argument bag is serialized once by the
// script catalog; no call site ever splices text into script source.
func (c *CDPChannel) Evaluate(ctx context.Context, op Op, args interface{}) (*EvalResult, error) {
	// Coalesce "no value" into null so an undefined readback surfaces as
	// ambiguity rather than a protocol error.
	expr, err := Expression(op, args)
	if err != nil {
		return nil, err
	}
	expr = fmt.Sprintf("(%s) ?? null", expr)

	var raw json.RawMessage
	if err := c.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return nil, fmt.Errorf("script %s failed: %w", op, err)
	}
	return DecodeResult(raw)
}

// Snapshot implements Channel. The full accessibility tree is fetched as a
// raw protocol message and parsed by hand (see snapshot.go).
func (c *CDPChannel) Snapshot(ctx context.Context) (*Snapshot, error) {
	var raw easyjson.RawMessage
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, "Accessibility.getFullAXTree", nil, &raw)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to take accessibility snapshot: %w", err)
	}

	nodes, refs, err := parseAXTree(raw)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Generation: c.refs.install(refs), Nodes: nodes}, nil
}

// Fill implements Channel. Snapshot refs are filled by focusing the backend
// node and inserting text through the input domain, which the page observes
// as real typing.
func (c *CDPChannel) Fill(ctx context.Context, ref ElementRef, value string, timeout time.Duration) error {
	fillCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch ref.Kind {
	case RefSnapshot:
		id, err := c.refs.resolve(ref)
		if err != nil {
			return err
		}
		err = c.run(fillCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := dom.Focus().WithBackendNodeID(cdp.BackendNodeID(id)).Do(ctx); err != nil {
				return fmt.Errorf("failed to focus node %s: %w", ref.SnapshotID, err)
			}
			return input.InsertText(value).Do(ctx)
		}))
		if err != nil {
			return fmt.Errorf("fill %s failed: %w", ref.SnapshotID, err)
		}
		return nil

	case RefSelector:
		res, err := c.Evaluate(fillCtx, OpFillField, FieldArgs{Selector: ref.Selector, Value: value})
		if err != nil {
			return err
		}
		if res != nil && !res.Success {
			return fmt.Errorf("fill %s: %s", ref.Selector, res.Error)
		}
		return nil

	default:
		return fmt.Errorf("ref kind %d is not a fill target", ref.Kind)
	}
}

// Click implements Channel.
func (c *CDPChannel) Click(ctx context.Context, ref ElementRef) error {
	switch ref.Kind {
	case RefSnapshot:
		id, err := c.refs.resolve(ref)
		if err != nil {
			return err
		}
		err = c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			obj, err := dom.ResolveNode().WithBackendNodeID(cdp.BackendNodeID(id)).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to resolve node %s: %w", ref.SnapshotID, err)
			}
			_, exc, err := runtime.CallFunctionOn("function() { this.click(); }").
				WithObjectID(obj.ObjectID).
				Do(ctx)
			if err != nil {
				return err
			}
			if exc != nil {
				return fmt.Errorf("click raised: %s", exc.Text)
			}
			return nil
		}))
		if err != nil {
			return fmt.Errorf("click %s failed: %w", ref.SnapshotID, err)
		}
		return nil

	case RefLabel:
		res, err := c.Evaluate(ctx, OpClickButton, ButtonArgs{Label: ref.Label, Exclude: ref.Exclude})
		if err != nil {
			return err
		}
		if res != nil && !res.Success {
			return fmt.Errorf("click %q: %s", ref.Label, res.Error)
		}
		return nil

	default:
		return fmt.Errorf("unsupported ref kind %d", ref.Kind)
	}
}

// PageText implements Channel.
func (c *CDPChannel) PageText(ctx context.Context) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Evaluate("document.body ? document.body.textContent : ''", &text))
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// PageURL implements Channel.
func (c *CDPChannel) PageURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page URL: %w", err)
	}
	return url, nil
}

// Close implements Channel. Canceling the contexts drops the websocket to
// the remote browser; the browser and its tabs stay up.
func (c *CDPChannel) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	return nil
}
