package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/page"
)

// SummaryClass marks the block the annotator appends to a post. Text
// extraction ignores it so annotated posts keep their text identity.
const SummaryClass = "sentiment-summary"

// DefaultKeyLength is the rune length of text-prefix identities.
const DefaultKeyLength = 50

// Platform captures how one social feed lays out its posts.
type Platform interface {
	Name() string
	PostSelectors() []string
	TextSelectors() []string
	ExtractID(post *goquery.Selection) (domain.PostIdentity, bool)
}

// Registry keeps a mapping from platform names to their implementations.
type Registry struct {
	platforms map[string]Platform
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{platforms: map[string]Platform{}}
}

// Register adds or replaces a platform implementation.
func (r *Registry) Register(platform Platform) {
	if r.platforms == nil {
		r.platforms = map[string]Platform{}
	}
	r.platforms[platform.Name()] = platform
}

// Resolve returns a platform by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Platform, error) {
	if platform, ok := r.platforms[name]; ok {
		return platform, nil
	}
	return nil, fmt.Errorf("platform %s is not registered", name)
}

// Names lists registered platforms in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action is what the pipeline should do with a discovered post.
type Action int

const (
	ActionSkip Action = iota
	ActionReapply
	ActionRequest
)

func (a Action) String() string {
	switch a {
	case ActionReapply:
		return "reapply"
	case ActionRequest:
		return "request"
	default:
		return "skip"
	}
}

// Decision is the result of Decide for one post element.
type Decision struct {
	Action Action
	Key    domain.PostIdentity
	Text   string
	Entry  domain.ClassificationEntry
}

// Lookup reads the page cache.
type Lookup func(key domain.PostIdentity) (domain.ClassificationEntry, bool)

// FeedScanner discovers posts, extracts their text and identity, and
// decides whether each needs classification.
type FeedScanner struct {
	platform  Platform
	keyLength int
}

// New builds a scanner for platform; keyLength <= 0 uses DefaultKeyLength.
func New(platform Platform, keyLength int) *FeedScanner {
	if keyLength <= 0 {
		keyLength = DefaultKeyLength
	}
	return &FeedScanner{platform: platform, keyLength: keyLength}
}

// Platform reports the active platform.
func (s *FeedScanner) Platform() Platform {
	return s.platform
}

// DiscoverPosts returns the elements matched by the first selector that
// matches anything in doc.
func (s *FeedScanner) DiscoverPosts(doc *page.Document) []*goquery.Selection {
	for _, selector := range s.platform.PostSelectors() {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		posts := make([]*goquery.Selection, 0, matches.Length())
		matches.Each(func(_ int, post *goquery.Selection) {
			posts = append(posts, post)
		})
		return posts
	}
	return nil
}

// ExtractText prefers the platform text container and falls back to the
// visible text of the whole post. It returns "" when nothing is extractable.
func (s *FeedScanner) ExtractText(post *goquery.Selection) string {
	for _, selector := range s.platform.TextSelectors() {
		container := post.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		if text := visibleText(container); text != "" {
			return text
		}
	}
	return visibleText(post)
}

// ExtractIdentity returns the platform-provided id of a post, if any.
func (s *FeedScanner) ExtractIdentity(post *goquery.Selection) (domain.PostIdentity, bool) {
	return s.platform.ExtractID(post)
}

// Identity applies the text-prefix fallback when the post carries no id.
func (s *FeedScanner) Identity(post *goquery.Selection, text string) domain.PostIdentity {
	if key, ok := s.ExtractIdentity(post); ok {
		return key
	}
	return TextKey(text, s.keyLength)
}

// Decide chooses between skip, reapply and request for one post.
func (s *FeedScanner) Decide(post *goquery.Selection, lookup Lookup) Decision {
	text := s.ExtractText(post)
	if text == "" {
		return Decision{Action: ActionSkip}
	}

	key := s.Identity(post, text)
	decision := Decision{Action: ActionSkip, Key: key, Text: text}

	state := page.StateOf(post)
	entry, hit := lookup(key)
	switch {
	case state == domain.StateDone && !hit:
		return decision
	case hit:
		decision.Action = ActionReapply
		decision.Entry = entry
		return decision
	case state == domain.StatePending:
		return decision
	default:
		decision.Action = ActionRequest
		return decision
	}
}

// TextKey builds a text-prefix identity from the first n runes of the NFC form.
func TextKey(text string, n int) domain.PostIdentity {
	normalized := []rune(norm.NFC.String(text))
	if len(normalized) > n {
		normalized = normalized[:n]
	}
	return domain.PostIdentity("text:" + string(normalized))
}

func visibleText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
		if hasClass(n, SummaryClass) || hidden(n) {
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

func hidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(attr.Val), "true") {
				return true
			}
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, field := range strings.Fields(attr.Val) {
			if field == class {
				return true
			}
		}
	}
	return false
}
