package publisher

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/zhihuops/zhihu-mcp/pkg/config"
)

// Observation is what the verify step managed to read back from the page
// after a publish sequence completed.
type Observation struct {
	// MarkerSeen reports whether the success marker was visible in the
	// page body.
	MarkerSeen bool

	// URL is the page's final location, when it could be read.
	URL string

	// ReadbackMissing marks a verify step that returned nothing at all,
	// typically because the page navigated away before the check ran.
	ReadbackMissing bool
}

// Classifier turns an observation into a confidence-ranked publish result.
// Classification is pure: identical observations always produce identical
// results.
type Classifier struct {
	marker     string
	permalink  glob.Glob
	editViews  []string
	optimistic bool
}

// NewClassifier compiles a classifier from the verification config.
func NewClassifier(cfg config.VerifyConfig) (*Classifier, error) {
	pattern, err := glob.Compile(cfg.PermalinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid permalink pattern %q: %w", cfg.PermalinkPattern, err)
	}
	return &Classifier{
		marker:     cfg.SuccessMarker,
		permalink:  pattern,
		editViews:  cfg.EditViews,
		optimistic: cfg.Optimistic,
	}, nil
}

// Observe derives an observation from raw page text and URL.
func (c *Classifier) Observe(pageText, url string) Observation {
	return Observation{
		MarkerSeen: strings.Contains(pageText, c.marker),
		URL:        url,
	}
}

// Classify maps an observation to a result. wantURL enables the permalink
// redirect signal and the URL field of the result (article flow only).
//
// The missing-readback branch is deliberately optimistic by default:
// verification loss is more often caused by a successful navigation than
// by an actual failure on the target page. The policy is configurable
// because that reasoning is tuned to one site's rendering behavior.
func (c *Classifier) Classify(obs Observation, wantURL bool) Result {
	url := ""
	if wantURL {
		url = obs.URL
	}

	if obs.ReadbackMissing {
		message := "Publishing completed, but unable to verify result"
		if c.optimistic {
			return newResult(VerdictLikelySuccess, message, url)
		}
		return newResult(VerdictFailure, message, url)
	}

	if obs.MarkerSeen {
		return newResult(VerdictConfirmedSuccess, "Published successfully", url)
	}

	if wantURL && c.isPermalink(obs.URL) {
		return newResult(VerdictLikelySuccess, "Redirected to article page", url)
	}

	return newResult(VerdictFailure, "Publishing status unknown", url)
}

// isPermalink reports whether url looks like a published-article permalink
// rather than an authoring view.
func (c *Classifier) isPermalink(url string) bool {
	if url == "" || !c.permalink.Match(url) {
		return false
	}
	for _, edit := range c.editViews {
		if strings.Contains(url, edit) {
			return false
		}
	}
	return true
}
