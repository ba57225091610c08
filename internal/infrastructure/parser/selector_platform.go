package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/scanner"
)

const (
	// PlatformX is the built-in preset for x.com / twitter.com timelines.
	PlatformX = "x"
	// PlatformCustom is the preset assembled from configuration.
	PlatformCustom = "custom"

	defaultPermalinkPattern = `/status/(\d+)`
)

// PlatformSpec describes a feed layout with CSS selectors.
type PlatformSpec struct {
	Name             string
	Posts            []string
	Texts            []string
	PermalinkPattern string
	IDAttributes     []string
}

// SelectorPlatform implements scanner.Platform from a PlatformSpec.
type SelectorPlatform struct {
	name         string
	posts        []string
	texts        []string
	permalink    *regexp.Regexp
	idAttributes []string
}

var _ scanner.Platform = (*SelectorPlatform)(nil)

// NewSelectorPlatform validates spec; the permalink pattern needs one capture group.
func NewSelectorPlatform(spec PlatformSpec) (*SelectorPlatform, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("platform name is required")
	}
	if len(spec.Posts) == 0 {
		return nil, fmt.Errorf("platform %s: at least one post selector is required", spec.Name)
	}

	pattern := spec.PermalinkPattern
	if pattern == "" {
		pattern = defaultPermalinkPattern
	}
	permalink, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("platform %s: permalink pattern: %w", spec.Name, err)
	}
	if permalink.NumSubexp() < 1 {
		return nil, fmt.Errorf("platform %s: permalink pattern %q has no capture group", spec.Name, pattern)
	}

	return &SelectorPlatform{
		name:         spec.Name,
		posts:        append([]string(nil), spec.Posts...),
		texts:        append([]string(nil), spec.Texts...),
		permalink:    permalink,
		idAttributes: append([]string(nil), spec.IDAttributes...),
	}, nil
}

// XSpec is the selector set for X timelines.
func XSpec() PlatformSpec {
	return PlatformSpec{
		Name:             PlatformX,
		Posts:            []string{`article[data-testid="tweet"]`, `article[role="article"]`},
		Texts:            []string{`div[data-testid="tweetText"]`, `div[lang]`},
		PermalinkPattern: defaultPermalinkPattern,
		IDAttributes:     []string{"data-tweet-id", "data-item-id"},
	}
}

// Name identifies the platform inside the registry.
func (p *SelectorPlatform) Name() string {
	return p.name
}

// PostSelectors lists post container selectors in priority order.
func (p *SelectorPlatform) PostSelectors() []string {
	return p.posts
}

// TextSelectors lists dedicated text container selectors.
func (p *SelectorPlatform) TextSelectors() []string {
	return p.texts
}

// ExtractID looks for a numeric permalink id, then a DOM identifier attribute.
func (p *SelectorPlatform) ExtractID(post *goquery.Selection) (domain.PostIdentity, bool) {
	var id string
	post.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if match := p.permalink.FindStringSubmatch(href); len(match) > 1 && match[1] != "" {
			id = match[1]
			return false
		}
		return true
	})
	if id != "" {
		return domain.PostIdentity("id:" + id), true
	}

	for _, attr := range p.idAttributes {
		if value, ok := post.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return domain.PostIdentity("attr:" + strings.TrimSpace(value)), true
		}
	}
	return "", false
}

// RegisterDefaults adds the X preset and, when custom is non-empty, the
// configured custom platform.
func RegisterDefaults(reg *scanner.Registry, custom PlatformSpec) error {
	x, err := NewSelectorPlatform(XSpec())
	if err != nil {
		return err
	}
	reg.Register(x)

	if len(custom.Posts) == 0 {
		return nil
	}
	if custom.Name == "" {
		custom.Name = PlatformCustom
	}
	platform, err := NewSelectorPlatform(custom)
	if err != nil {
		return err
	}
	reg.Register(platform)
	return nil
}
