package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhihuops/zhihu-mcp/pkg/browser"
	"github.com/zhihuops/zhihu-mcp/pkg/config"
	"github.com/zhihuops/zhihu-mcp/pkg/logging"
)

// fakeChannel is a scriptable in-memory control channel. Hook functions
// override behavior per test; unset hooks succeed with benign defaults.
type fakeChannel struct {
	evaluate func(op browser.Op, args interface{}) (*browser.EvalResult, error)
	snapshot func() (*browser.Snapshot, error)
	fillErr  func(ref browser.ElementRef) error
	clickErr func(ref browser.ElementRef) error

	pageText    string
	pageTextErr error
	pageURL     string
	pageURLErr  error

	navigated []string
	fills     []fakeFill
	clicks    []browser.ElementRef
	closed    bool
}

type fakeFill struct {
	ref   browser.ElementRef
	value string
}

func (f *fakeChannel) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeChannel) Evaluate(ctx context.Context, op browser.Op, args interface{}) (*browser.EvalResult, error) {
	if f.evaluate != nil {
		return f.evaluate(op, args)
	}
	return okEnvelope(nil), nil
}

func (f *fakeChannel) Snapshot(ctx context.Context) (*browser.Snapshot, error) {
	if f.snapshot != nil {
		return f.snapshot()
	}
	return &browser.Snapshot{}, nil
}

func (f *fakeChannel) Fill(ctx context.Context, ref browser.ElementRef, value string, timeout time.Duration) error {
	if f.fillErr != nil {
		if err := f.fillErr(ref); err != nil {
			return err
		}
	}
	f.fills = append(f.fills, fakeFill{ref: ref, value: value})
	return nil
}

func (f *fakeChannel) Click(ctx context.Context, ref browser.ElementRef) error {
	if f.clickErr != nil {
		if err := f.clickErr(ref); err != nil {
			return err
		}
	}
	f.clicks = append(f.clicks, ref)
	return nil
}

func (f *fakeChannel) PageText(ctx context.Context) (string, error) {
	return f.pageText, f.pageTextErr
}

func (f *fakeChannel) PageURL(ctx context.Context) (string, error) {
	return f.pageURL, f.pageURLErr
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	ch      *fakeChannel
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context) (browser.Channel, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.ch, nil
}

func okEnvelope(data interface{}) *browser.EvalResult {
	res := &browser.EvalResult{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		res.Data = raw
	}
	return res
}

func failEnvelope(msg string) *browser.EvalResult {
	return &browser.EvalResult{Success: false, Error: msg}
}

// fastConfig returns defaults with the waits zeroed and the fill deadline
// shortened so retry loops terminate within a test run.
func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.FillTimeout = config.Duration(30 * time.Millisecond)
	cfg.Idea.Waits = config.IdeaWaits{}
	cfg.Article.Waits = config.ArticleWaits{}
	return cfg
}

func newTestPublisher(t *testing.T, ch *fakeChannel, cfg *config.Config) *Publisher {
	t.Helper()
	p, err := New(&fakeDialer{ch: ch}, cfg, logging.Nop())
	require.NoError(t, err)
	return p
}

// scriptedEvaluate routes evaluation by operation: probes report every
// button found and enabled, fills succeed, verification returns confirmed.
func scriptedEvaluate(confirmed bool) func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
	return func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
		switch op {
		case browser.OpProbeButton:
			return okEnvelope(browser.ProbeData{Found: true}), nil
		case browser.OpFillField, browser.OpInsertEditorText:
			return okEnvelope(nil), nil
		case browser.OpReadVerification:
			return okEnvelope(browser.VerifyData{Confirmed: confirmed}), nil
		case browser.OpClickButton:
			return okEnvelope(nil), nil
		}
		return nil, errors.New("unexpected op")
	}
}

func TestPublishIdeaConfirmedSuccess(t *testing.T) {
	cfg := fastConfig()
	ch := &fakeChannel{evaluate: scriptedEvaluate(true)}
	p := newTestPublisher(t, ch, cfg)

	result, err := p.PublishIdea(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictConfirmedSuccess, result.Verdict)
	assert.True(t, result.Success)
	assert.Equal(t, "Published successfully", result.Message)
	assert.Empty(t, result.URL)
	assert.Equal(t, []string{cfg.Idea.HomeURL}, ch.navigated)
	assert.True(t, ch.closed)
}

func TestPublishIdeaMarkerAbsentIsFailure(t *testing.T) {
	ch := &fakeChannel{evaluate: scriptedEvaluate(false)}
	p := newTestPublisher(t, ch, fastConfig())

	result, err := p.PublishIdea(context.Background(), Request{Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictFailure, result.Verdict)
	assert.False(t, result.Success)
	assert.Equal(t, "Publishing status unknown", result.Message)
}

func TestPublishIdeaLostReadback(t *testing.T) {
	lostVerification := func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
		if op == browser.OpReadVerification {
			return nil, nil
		}
		return scriptedEvaluate(false)(op, args)
	}

	t.Run("optimistic policy scores likely success", func(t *testing.T) {
		ch := &fakeChannel{evaluate: lostVerification}
		p := newTestPublisher(t, ch, fastConfig())

		result, err := p.PublishIdea(context.Background(), Request{Content: "c"})
		require.NoError(t, err)
		assert.Equal(t, VerdictLikelySuccess, result.Verdict)
		assert.True(t, result.Success)
		assert.Equal(t, "Publishing completed, but unable to verify result", result.Message)
	})

	t.Run("pessimistic policy scores failure", func(t *testing.T) {
		cfg := fastConfig()
		cfg.Verify.Optimistic = false
		ch := &fakeChannel{evaluate: lostVerification}
		p := newTestPublisher(t, ch, cfg)

		result, err := p.PublishIdea(context.Background(), Request{Content: "c"})
		require.NoError(t, err)
		assert.Equal(t, VerdictFailure, result.Verdict)
		assert.False(t, result.Success)
	})
}

func TestPublishIdeaContentFieldNeverAppears(t *testing.T) {
	ch := &fakeChannel{
		evaluate: func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
			switch op {
			case browser.OpInsertEditorText:
				return failEnvelope("Editor not found"), nil
			default:
				return scriptedEvaluate(false)(op, args)
			}
		},
	}
	p := newTestPublisher(t, ch, fastConfig())

	_, err := p.PublishIdea(context.Background(), Request{Content: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill content")
	assert.True(t, ch.closed, "the channel must be released on failure too")
}

func TestPublishIdeaDisabledPublishButtonSkipsClick(t *testing.T) {
	ch := &fakeChannel{
		evaluate: func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
			if op == browser.OpProbeButton {
				probe := args.(browser.ButtonArgs)
				if probe.Label == "发布" {
					return okEnvelope(browser.ProbeData{Found: true, Disabled: true}), nil
				}
			}
			return scriptedEvaluate(false)(op, args)
		},
	}
	p := newTestPublisher(t, ch, fastConfig())

	result, err := p.PublishIdea(context.Background(), Request{Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictFailure, result.Verdict)
	for _, click := range ch.clicks {
		assert.NotEqual(t, "发布", click.Label, "a disabled publish button must not be clicked")
	}
}

func TestPublishIdeaNavigationFailureIsHard(t *testing.T) {
	cfg := fastConfig()
	ch := &fakeChannel{evaluate: scriptedEvaluate(true)}
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	p, err := New(dialer, cfg, logging.Nop())
	require.NoError(t, err)

	_, err = p.PublishIdea(context.Background(), Request{Content: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control channel")
	assert.Empty(t, ch.navigated)
}

func TestPublishArticleConfirmedByMarker(t *testing.T) {
	cfg := fastConfig()
	ch := &fakeChannel{
		evaluate: scriptedEvaluate(false),
		pageText: "草稿已保存 发布成功",
		pageURL:  "https://zhuanlan.zhihu.com/write",
	}
	p := newTestPublisher(t, ch, cfg)

	result, err := p.PublishArticle(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictConfirmedSuccess, result.Verdict)
	assert.Equal(t, "Published successfully", result.Message)
	assert.Equal(t, []string{cfg.Article.WriteURL}, ch.navigated)
}

func TestPublishArticlePermalinkRedirect(t *testing.T) {
	ch := &fakeChannel{
		evaluate: scriptedEvaluate(false),
		pageText: "正在跳转",
		pageURL:  "https://zhuanlan.zhihu.com/p/712345678",
	}
	p := newTestPublisher(t, ch, fastConfig())

	result, err := p.PublishArticle(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictLikelySuccess, result.Verdict)
	assert.Equal(t, "Redirected to article page", result.Message)
	assert.Equal(t, "https://zhuanlan.zhihu.com/p/712345678", result.URL)
}

func TestPublishArticleEditorURLIsNotSuccess(t *testing.T) {
	ch := &fakeChannel{
		evaluate: scriptedEvaluate(false),
		pageText: "发布文章",
		pageURL:  "https://zhuanlan.zhihu.com/write",
	}
	p := newTestPublisher(t, ch, fastConfig())

	result, err := p.PublishArticle(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err)

	assert.Equal(t, VerdictFailure, result.Verdict)
	assert.False(t, result.Success)
}

func TestPublishArticleReadbackFailureDegrades(t *testing.T) {
	ch := &fakeChannel{
		evaluate:    scriptedEvaluate(false),
		pageTextErr: errors.New("target closed"),
		pageURLErr:  errors.New("target closed"),
	}
	p := newTestPublisher(t, ch, fastConfig())

	result, err := p.PublishArticle(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err, "a lost verification readback is not a transport failure")

	assert.Equal(t, VerdictLikelySuccess, result.Verdict)
	assert.Equal(t, "Publishing completed, but unable to verify result", result.Message)
}

func TestPublishArticleExcludesSettingsVariant(t *testing.T) {
	var probed []browser.ButtonArgs
	ch := &fakeChannel{
		evaluate: func(op browser.Op, args interface{}) (*browser.EvalResult, error) {
			if op == browser.OpProbeButton {
				probed = append(probed, args.(browser.ButtonArgs))
			}
			return scriptedEvaluate(false)(op, args)
		},
	}
	p := newTestPublisher(t, ch, fastConfig())

	_, err := p.PublishArticle(context.Background(), Request{Title: "t", Content: "c"})
	require.NoError(t, err)

	require.Len(t, probed, 1)
	assert.Equal(t, "发布", probed[0].Label)
	assert.Equal(t, "设置", probed[0].Exclude)
}

func TestPublishFlowsUseNativeTitleFillForArticle(t *testing.T) {
	cfg := fastConfig()
	ch := &fakeChannel{evaluate: scriptedEvaluate(false)}
	p := newTestPublisher(t, ch, cfg)

	_, err := p.PublishArticle(context.Background(), Request{Title: "标题", Content: "正文"})
	require.NoError(t, err)

	require.Len(t, ch.fills, 1)
	assert.Equal(t, cfg.Article.TitleSelector, ch.fills[0].ref.Selector)
	assert.Equal(t, "标题", ch.fills[0].value)
}
