package publisher

import (
	"context"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
)

// PublishIdea posts a short "idea" through the site home page: open the
// composer, inject title and content, trigger publish, then read back the
// success marker from the page.
func (p *Publisher) PublishIdea(ctx context.Context, req Request) (Result, error) {
	p.log.Infof("publishing idea (title %d chars, content %d chars)", len(req.Title), len(req.Content))

	ch, err := p.dial(ctx)
	if err != nil {
		return Result{}, err
	}
	defer p.disconnect(ch)

	cfg := p.cfg.Idea
	loc := p.locator(ch, FieldSelectors{Title: cfg.TitleSelector, Content: cfg.ContentSelector})
	inj := NewInjector(ch, p.log, p.cfg.FillTimeout.Std())

	steps := []Step{
		{
			Name:     "navigate to home",
			Required: true,
			Settle:   cfg.Waits.Navigate.Std(),
			Run:      navigateStep(ch, cfg.HomeURL),
		},
		{
			// The composer is often already open from a previous attempt;
			// a missed trigger here is recoverable.
			Name:   "open idea composer",
			Settle: cfg.Waits.OpenForm.Std(),
			Run:    p.clickButtonStep(ch, loc, cfg.OpenLabel, ""),
		},
		{
			Name:     "fill title",
			Required: true,
			Run:      fillStep(loc.Title, inj.FillScripted, req.Title),
		},
		{
			Name:     "fill content",
			Required: true,
			Settle:   cfg.Waits.Validate.Std(),
			Run:      fillStep(loc.Content, inj.FillRichText, req.Content),
		},
		{
			Name:   "click publish",
			Settle: cfg.Waits.Publish.Std(),
			Run:    p.clickButtonStep(ch, loc, cfg.PublishLabel, ""),
		},
	}

	if err := p.sequencer.Run(ctx, steps); err != nil {
		return Result{}, err
	}

	obs, err := p.verifyMarker(ctx, ch)
	if err != nil {
		return Result{}, err
	}

	result := p.classifier.Classify(obs, false)
	p.log.Infof("idea publish verdict: %s (%s)", result.Verdict, result.Message)
	return result, nil
}

// verifyMarker reads the success marker through the evaluation channel. A
// transport error is hard; an empty readback only degrades the verdict.
func (p *Publisher) verifyMarker(ctx context.Context, ch browser.Channel) (Observation, error) {
	res, err := ch.Evaluate(ctx, browser.OpReadVerification, browser.VerifyArgs{
		Marker: p.cfg.Verify.SuccessMarker,
	})
	if err != nil {
		return Observation{}, err
	}
	if res == nil {
		p.log.Warnf("verification returned no readback; the page may have navigated away")
		return Observation{ReadbackMissing: true}, nil
	}

	var data browser.VerifyData
	if err := res.Decode(&data); err != nil {
		p.log.Warnf("verification readback was malformed: %v", err)
		return Observation{ReadbackMissing: true}, nil
	}
	return Observation{MarkerSeen: data.Confirmed}, nil
}
