package publisher

import (
	"context"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
)

// PublishArticle posts a long-form article through the dedicated editor
// page. Verification accepts either the on-page success marker or a
// redirect to the published article's permalink.
func (p *Publisher) PublishArticle(ctx context.Context, req Request) (Result, error) {
	p.log.Infof("publishing article (title %d chars, content %d chars)", len(req.Title), len(req.Content))

	ch, err := p.dial(ctx)
	if err != nil {
		return Result{}, err
	}
	defer p.disconnect(ch)

	cfg := p.cfg.Article
	loc := p.locator(ch, FieldSelectors{Title: cfg.TitleSelector, Content: cfg.ContentSelector})
	inj := NewInjector(ch, p.log, p.cfg.FillTimeout.Std())

	steps := []Step{
		{
			Name:     "navigate to editor",
			Required: true,
			Settle:   cfg.Waits.Navigate.Std(),
			Run:      navigateStep(ch, cfg.WriteURL),
		},
		{
			Name:     "fill title",
			Required: true,
			Settle:   cfg.Waits.Fill.Std(),
			Run:      fillStep(loc.Title, inj.FillNative, req.Title),
		},
		{
			// The auto-save settle lets the draft persist before publishing;
			// publishing an unsaved draft loses the content body.
			Name:     "fill content",
			Required: true,
			Settle:   cfg.Waits.AutoSave.Std(),
			Run:      fillStep(loc.Content, inj.FillRichText, req.Content),
		},
		{
			Name:   "click publish",
			Settle: cfg.Waits.Publish.Std(),
			Run:    p.clickButtonStep(ch, loc, cfg.PublishLabel, cfg.ExcludeLabel),
		},
	}

	if err := p.sequencer.Run(ctx, steps); err != nil {
		return Result{}, err
	}

	obs := p.observePage(ctx, ch)
	result := p.classifier.Classify(obs, true)
	if result.URL != "" {
		p.log.Infof("article publish verdict: %s (%s) at %s", result.Verdict, result.Message, result.URL)
	} else {
		p.log.Infof("article publish verdict: %s (%s)", result.Verdict, result.Message)
	}
	return result, nil
}

// observePage reads the post-publish page text and URL. Readback failures
// after the publish click are never hard errors: the publish may very well
// have gone through, so the classifier scores the uncertainty instead.
func (p *Publisher) observePage(ctx context.Context, ch browser.Channel) Observation {
	text, textErr := ch.PageText(ctx)
	url, urlErr := ch.PageURL(ctx)

	if textErr != nil && urlErr != nil {
		p.log.Warnf("verification readback failed (%v); the publish may still have succeeded", textErr)
		return Observation{ReadbackMissing: true}
	}
	if textErr != nil {
		p.log.Warnf("page text readback failed: %v", textErr)
	}
	if urlErr != nil {
		p.log.Warnf("page URL readback failed: %v", urlErr)
	}
	return p.classifier.Observe(text, url)
}
