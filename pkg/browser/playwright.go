package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDialer connects to the shared browser over its DevTools
// endpoint using Playwright. This is the channel behind the selector
// locator strategy.
type PlaywrightDialer struct {
	// Endpoint is the CDP endpoint URL of the already-running browser.
	Endpoint string
}

// Dial connects over CDP and adopts the browser's first existing context
// and page. The browser is a shared external resource: the channel never
// creates or destroys contexts or pages.
func (d *PlaywrightDialer) Dial(ctx context.Context) (Channel, error) {
	opts := &playwright.RunOptions{
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
		SkipInstallBrowsers: true,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright driver: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.ConnectOverCDP(d.Endpoint)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", d.Endpoint, err)
	}

	contexts := browser.Contexts()
	if len(contexts) == 0 {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("no browser contexts found: %w", ErrNoPage)
	}

	pages := contexts[0].Pages()
	if len(pages) == 0 {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("no pages found in browser context: %w", ErrNoPage)
	}

	return &PlaywrightChannel{
		pw:      pw,
		browser: browser,
		page:    pages[0],
	}, nil
}

// PlaywrightChannel drives the adopted page through Playwright. Snapshot
// support and snapshot-ref actions go through a raw CDP session on the
// same page, so both locator strategies see the same capability set.
type PlaywrightChannel struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	session playwright.CDPSession
	refs    refTable
}

// Navigate implements Channel.
func (c *PlaywrightChannel) Navigate(ctx context.Context, url string) error {
	_, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(DefaultNavTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Evaluate implements Channel. The argument bag goes through one JSON
// round-trip so only plain serializable data crosses into the page.
func (c *PlaywrightChannel) Evaluate(ctx context.Context, op Op, args interface{}) (*EvalResult, error) {
	src, err := Source(op)
	if err != nil {
		return nil, err
	}

	argJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal script args: %w", err)
	}
	var plain interface{}
	if err := json.Unmarshal(argJSON, &plain); err != nil {
		return nil, fmt.Errorf("failed to normalize script args: %w", err)
	}

	value, err := c.page.Evaluate(src, plain)
	if err != nil {
		return nil, fmt.Errorf("script %s failed: %w", op, err)
	}
	if value == nil {
		// The page re-rendered before a value came back.
		return nil, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("script %s returned unserializable value: %w", op, err)
	}
	return DecodeResult(raw)
}

// Snapshot implements Channel.
func (c *PlaywrightChannel) Snapshot(ctx context.Context) (*Snapshot, error) {
	session, err := c.cdpSession()
	if err != nil {
		return nil, err
	}

	result, err := session.Send("Accessibility.getFullAXTree", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to take accessibility snapshot: %w", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to read accessibility snapshot: %w", err)
	}

	nodes, refs, err := parseAXTree(raw)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Generation: c.refs.install(refs), Nodes: nodes}, nil
}

// Fill implements Channel.
func (c *PlaywrightChannel) Fill(ctx context.Context, ref ElementRef, value string, timeout time.Duration) error {
	switch ref.Kind {
	case RefSelector:
		locator := c.page.Locator(ref.Selector).First()
		err := locator.Fill(value, playwright.LocatorFillOptions{
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		})
		if err != nil {
			return fmt.Errorf("fill %s failed: %w", ref.Selector, err)
		}
		return nil

	case RefSnapshot:
		id, err := c.refs.resolve(ref)
		if err != nil {
			return err
		}
		session, err := c.cdpSession()
		if err != nil {
			return err
		}
		if _, err := session.Send("DOM.focus", map[string]interface{}{"backendNodeId": id}); err != nil {
			return fmt.Errorf("failed to focus node %s: %w", ref.SnapshotID, err)
		}
		if _, err := session.Send("Input.insertText", map[string]interface{}{"text": value}); err != nil {
			return fmt.Errorf("failed to insert text into node %s: %w", ref.SnapshotID, err)
		}
		return nil

	default:
		return fmt.Errorf("ref kind %d is not a fill target", ref.Kind)
	}
}

// Click implements Channel.
func (c *PlaywrightChannel) Click(ctx context.Context, ref ElementRef) error {
	switch ref.Kind {
	case RefSelector:
		if err := c.page.Click(ref.Selector); err != nil {
			return fmt.Errorf("click %s failed: %w", ref.Selector, err)
		}
		return nil

	case RefLabel:
		res, err := c.Evaluate(ctx, OpClickButton, ButtonArgs{Label: ref.Label, Exclude: ref.Exclude})
		if err != nil {
			return err
		}
		// A nil result means the page updated before reporting back; the
		// click itself may well have landed.
		if res != nil && !res.Success {
			return fmt.Errorf("click %q: %s", ref.Label, res.Error)
		}
		return nil

	case RefSnapshot:
		id, err := c.refs.resolve(ref)
		if err != nil {
			return err
		}
		return c.clickBackendNode(id)

	default:
		return fmt.Errorf("unsupported ref kind %d", ref.Kind)
	}
}

func (c *PlaywrightChannel) clickBackendNode(id int64) error {
	session, err := c.cdpSession()
	if err != nil {
		return err
	}

	resolved, err := session.Send("DOM.resolveNode", map[string]interface{}{"backendNodeId": id})
	if err != nil {
		return fmt.Errorf("failed to resolve node: %w", err)
	}

	objectID, err := remoteObjectID(resolved)
	if err != nil {
		return err
	}

	_, err = session.Send("Runtime.callFunctionOn", map[string]interface{}{
		"functionDeclaration": "function() { this.click(); }",
		"objectId":            objectID,
	})
	if err != nil {
		return fmt.Errorf("failed to click node: %w", err)
	}
	return nil
}

// remoteObjectID digs the remote object ID out of a DOM.resolveNode reply.
func remoteObjectID(resolved interface{}) (string, error) {
	reply, ok := resolved.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected resolveNode reply shape %T", resolved)
	}
	object, ok := reply["object"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("resolveNode reply has no object")
	}
	objectID, ok := object["objectId"].(string)
	if !ok || objectID == "" {
		return "", fmt.Errorf("resolveNode reply has no objectId")
	}
	return objectID, nil
}

// PageText implements Channel.
func (c *PlaywrightChannel) PageText(ctx context.Context) (string, error) {
	text, err := c.page.Locator("body").TextContent()
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// PageURL implements Channel.
func (c *PlaywrightChannel) PageURL(ctx context.Context) (string, error) {
	return c.page.URL(), nil
}

// Close implements Channel. Closing a CDP-connected browser object only
// disconnects the client; the shared browser keeps running.
func (c *PlaywrightChannel) Close() error {
	var errs []error
	if c.session != nil {
		if err := c.session.Detach(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors disconnecting channel: %v", errs)
	}
	return nil
}

func (c *PlaywrightChannel) cdpSession() (playwright.CDPSession, error) {
	if c.session != nil {
		return c.session, nil
	}
	session, err := c.page.Context().NewCDPSession(c.page)
	if err != nil {
		return nil, fmt.Errorf("failed to open CDP session: %w", err)
	}
	c.session = session
	return session, nil
}
