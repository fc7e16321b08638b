package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
	"github.com/zhihuops/zhihu-mcp/pkg/config"
	"github.com/zhihuops/zhihu-mcp/pkg/logging"
)

// Publisher executes the two publish flows against a shared remote
// browser. The browser is an external resource: a flow dials its own
// control channel per call and disconnects when done, leaving the browser
// and its pages running.
type Publisher struct {
	dialer     browser.Dialer
	cfg        *config.Config
	classifier *Classifier
	sequencer  *Sequencer
	log        *logging.Logger
}

// New builds a publisher. The dialer decides which concrete control
// channel (and with it which locator strategy) serves the calls.
func New(dialer browser.Dialer, cfg *config.Config, log *logging.Logger) (*Publisher, error) {
	classifier, err := NewClassifier(cfg.Verify)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		dialer:     dialer,
		cfg:        cfg,
		classifier: classifier,
		sequencer:  NewSequencer(log),
		log:        log,
	}, nil
}

// DialerFor returns the control-channel dialer matching the configured
// locator strategy: Playwright for selectors, chromedp for snapshots.
func DialerFor(cfg *config.Config) browser.Dialer {
	if cfg.Strategy == config.StrategySnapshot {
		return &browser.CDPDialer{Endpoint: cfg.CDPEndpoint}
	}
	return &browser.PlaywrightDialer{Endpoint: cfg.CDPEndpoint}
}

// locator builds the flow's locator for the configured strategy.
func (p *Publisher) locator(ch browser.Channel, fields FieldSelectors) Locator {
	if p.cfg.Strategy == config.StrategySnapshot {
		return NewSnapshotLocator(ch, SnapshotHints{
			Title:   p.cfg.Snapshot.TitleHint,
			Content: p.cfg.Snapshot.ContentHint,
		})
	}
	return NewSelectorLocator(ch, fields)
}

func (p *Publisher) dial(ctx context.Context) (browser.Channel, error) {
	ch, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open control channel: %w", err)
	}
	return ch, nil
}

func (p *Publisher) disconnect(ch browser.Channel) {
	if err := ch.Close(); err != nil {
		p.log.Warnf("error disconnecting control channel: %v", err)
	}
}

// navigateStep builds a navigation step. Navigation failure is always
// hard: without the page nothing downstream can work.
func navigateStep(ch browser.Channel, url string) func(context.Context) (StepOutcome, error) {
	return func(ctx context.Context) (StepOutcome, error) {
		if err := ch.Navigate(ctx, url); err != nil {
			return failedOutcome(false, err.Error()), err
		}
		return okOutcome(), nil
	}
}

// fillStep builds a locate+inject step. The ref is consumed immediately
// by the injection and discarded, never cached across steps.
func fillStep(
	locate func(context.Context) (browser.ElementRef, error),
	inject func(context.Context, browser.ElementRef, string) (StepOutcome, error),
	value string,
) func(context.Context) (StepOutcome, error) {
	return func(ctx context.Context) (StepOutcome, error) {
		ref, err := locate(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrNotFound) {
				return failedOutcome(false, err.Error()), nil
			}
			return failedOutcome(false, err.Error()), err
		}
		return inject(ctx, ref, value)
	}
}

// clickButtonStep builds a locate+click step for a labeled trigger. The
// click is skipped when the control is disabled, and a click that cannot
// be confirmed is non-fatal: the page often replaces the node mid-action
// even though the click landed.
func (p *Publisher) clickButtonStep(ch browser.Channel, loc Locator, label, exclude string) func(context.Context) (StepOutcome, error) {
	return func(ctx context.Context) (StepOutcome, error) {
		ref, err := loc.Button(ctx, label, exclude)
		if err != nil {
			if errors.Is(err, browser.ErrNotFound) {
				return failedOutcome(false, fmt.Sprintf("button %q not found", label)), nil
			}
			return failedOutcome(false, err.Error()), err
		}

		if ref.Disabled {
			return StepOutcome{
				Status:     StepFailed,
				Matched:    true,
				Diagnostic: fmt.Sprintf("button %q is disabled, click skipped", label),
			}, nil
		}

		if err := ch.Click(ctx, ref); err != nil {
			return StepOutcome{
				Status:     StepFailed,
				Matched:    true,
				Diagnostic: err.Error(),
			}, nil
		}
		return okOutcome(), nil
	}
}
