// Package config loads zhihu-mcp configuration from a YAML file, with
// complete built-in defaults so the server runs with no file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy selects how the engine locates elements on the page.
type Strategy string

const (
	// StrategySelector queries the live DOM with CSS selectors through the
	// Playwright channel.
	StrategySelector Strategy = "selector"

	// StrategySnapshot pattern-matches accessibility snapshots taken
	// through the chromedp channel.
	StrategySnapshot Strategy = "snapshot"
)

// Duration wraps time.Duration so YAML values like "2s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full zhihu-mcp configuration.
type Config struct {
	// CDPEndpoint is the DevTools endpoint of the already-running browser.
	CDPEndpoint string `yaml:"cdp_endpoint"`

	// Strategy selects the element locator strategy (and with it the
	// concrete control channel).
	Strategy Strategy `yaml:"strategy"`

	// FillTimeout is the single long upper bound for fill operations. It is
	// deliberately much larger than the settle waits: a slow-loading editor
	// is tolerated, slow network on every micro-step is not.
	FillTimeout Duration `yaml:"fill_timeout"`

	Idea     IdeaConfig     `yaml:"idea"`
	Article  ArticleConfig  `yaml:"article"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Verify   VerifyConfig   `yaml:"verify"`
}

// IdeaConfig drives the short-post publishing flow.
type IdeaConfig struct {
	HomeURL         string    `yaml:"home_url"`
	OpenLabel       string    `yaml:"open_label"`
	PublishLabel    string    `yaml:"publish_label"`
	TitleSelector   string    `yaml:"title_selector"`
	ContentSelector string    `yaml:"content_selector"`
	Waits           IdeaWaits `yaml:"waits"`
}

// IdeaWaits are the settle waits between idea flow steps.
type IdeaWaits struct {
	Navigate Duration `yaml:"navigate"`
	OpenForm Duration `yaml:"open_form"`
	Validate Duration `yaml:"validate"`
	Publish  Duration `yaml:"publish"`
}

// ArticleConfig drives the long-form article publishing flow.
type ArticleConfig struct {
	WriteURL        string       `yaml:"write_url"`
	PublishLabel    string       `yaml:"publish_label"`
	ExcludeLabel    string       `yaml:"exclude_label"`
	TitleSelector   string       `yaml:"title_selector"`
	ContentSelector string       `yaml:"content_selector"`
	Waits           ArticleWaits `yaml:"waits"`
}

// ArticleWaits are the settle waits between article flow steps. Publish is
// the longest: the publish click triggers server round-trips.
type ArticleWaits struct {
	Navigate Duration `yaml:"navigate"`
	Fill     Duration `yaml:"fill"`
	AutoSave Duration `yaml:"auto_save"`
	Publish  Duration `yaml:"publish"`
}

// SnapshotConfig disambiguates accessibility snapshot candidates when the
// snapshot strategy is active. Hints are matched against the node
// description; when absent the locator falls back to positional order.
type SnapshotConfig struct {
	TitleHint   string `yaml:"title_hint"`
	ContentHint string `yaml:"content_hint"`
}

// VerifyConfig controls result classification after a publish sequence.
type VerifyConfig struct {
	// SuccessMarker is the page-visible text confirming a publish.
	SuccessMarker string `yaml:"success_marker"`

	// PermalinkPattern is a glob matched against the final URL; a match
	// counts as an alternate success signal for the article flow.
	PermalinkPattern string `yaml:"permalink_pattern"`

	// EditViews are URL fragments identifying authoring views, which must
	// never be classified as published-article permalinks.
	EditViews []string `yaml:"edit_views"`

	// Optimistic controls how a missing verification readback is scored.
	// When true (the default), a lost readback is treated as likely success:
	// the page navigating away before the check ran is more often caused by
	// a successful publish than by a failure. This is a heuristic tuned
	// against the target site's observed rendering.
	Optimistic bool `yaml:"optimistic"`
}

// Default returns the built-in configuration.
func Default() *Config {
	const editorSelector = `div[contenteditable="true"][role="textbox"]`

	return &Config{
		CDPEndpoint: "http://127.0.0.1:9222",
		Strategy:    StrategySelector,
		FillTimeout: Duration(5 * time.Minute),
		Idea: IdeaConfig{
			HomeURL:         "https://www.zhihu.com/",
			OpenLabel:       "发想法",
			PublishLabel:    "发布",
			TitleSelector:   `textarea[name="title"]`,
			ContentSelector: editorSelector,
			Waits: IdeaWaits{
				Navigate: Duration(2 * time.Second),
				OpenForm: Duration(2 * time.Second),
				Validate: Duration(1 * time.Second),
				Publish:  Duration(1 * time.Second),
			},
		},
		Article: ArticleConfig{
			WriteURL:        "https://zhuanlan.zhihu.com/write",
			PublishLabel:    "发布",
			ExcludeLabel:    "设置",
			TitleSelector:   `textarea[placeholder]`,
			ContentSelector: editorSelector,
			Waits: ArticleWaits{
				Navigate: Duration(3 * time.Second),
				Fill:     Duration(1 * time.Second),
				AutoSave: Duration(3 * time.Second),
				Publish:  Duration(5 * time.Second),
			},
		},
		Snapshot: SnapshotConfig{
			TitleHint:   "标题",
			ContentHint: "想法",
		},
		Verify: VerifyConfig{
			SuccessMarker:    "发布成功",
			PermalinkPattern: "*zhuanlan.zhihu.com/p/*",
			EditViews:        []string{"/write", "/edit"},
			Optimistic:       true,
		},
	}
}

// DefaultPath returns the default config file location,
// ~/.zhihu-mcp/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".zhihu-mcp", "config.yaml"), nil
}

// Load reads the config file at path and overlays it on the defaults.
// An empty path means "use the default location if a file exists there".
func Load(path string) (*Config, error) {
	cfg := Default()

	optional := false
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
		optional = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.CDPEndpoint == "" {
		return fmt.Errorf("cdp_endpoint must not be empty")
	}
	switch c.Strategy {
	case StrategySelector, StrategySnapshot:
	default:
		return fmt.Errorf("unknown strategy %q (must be %q or %q)", c.Strategy, StrategySelector, StrategySnapshot)
	}
	if c.FillTimeout <= 0 {
		return fmt.Errorf("fill_timeout must be positive")
	}
	if c.Verify.SuccessMarker == "" {
		return fmt.Errorf("verify.success_marker must not be empty")
	}
	if c.Verify.PermalinkPattern == "" {
		return fmt.Errorf("verify.permalink_pattern must not be empty")
	}
	return nil
}
