package scanner

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/page"
)

type stubPlatform struct {
	posts []string
	texts []string
}

func (p stubPlatform) Name() string            { return "stub" }
func (p stubPlatform) PostSelectors() []string { return p.posts }
func (p stubPlatform) TextSelectors() []string { return p.texts }
func (p stubPlatform) ExtractID(post *goquery.Selection) (domain.PostIdentity, bool) {
	if id, ok := post.Attr("data-id"); ok {
		return domain.PostIdentity("id:" + id), true
	}
	return "", false
}

func newStubScanner() *FeedScanner {
	return New(stubPlatform{
		posts: []string{"article.post", "div[role=article]"},
		texts: []string{"div.text"},
	}, 0)
}

func mustParse(t *testing.T, markup string) *page.Document {
	t.Helper()
	doc, err := page.ParseString(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func noCache(domain.PostIdentity) (domain.ClassificationEntry, bool) {
	return domain.ClassificationEntry{}, false
}

func TestDiscoverPostsFirstMatchingSelectorWins(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	doc := mustParse(t, `<div role="article">fallback</div><article class="post">a</article><article class="post">b</article>`)
	if got := len(s.DiscoverPosts(doc)); got != 2 {
		t.Fatalf("expected primary selector matches only, got %d", got)
	}

	doc = mustParse(t, `<div role="article">fallback</div>`)
	if got := len(s.DiscoverPosts(doc)); got != 1 {
		t.Fatalf("expected fallback selector match, got %d", got)
	}

	doc = mustParse(t, `<p>nothing</p>`)
	if got := len(s.DiscoverPosts(doc)); got != 0 {
		t.Fatalf("expected no posts, got %d", got)
	}
}

func TestExtractTextPrefersTextContainer(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	doc := mustParse(t, `<article class="post"><span>@user</span><div class="text">I love this</div></article>`)
	post := s.DiscoverPosts(doc)[0]
	if got := s.ExtractText(post); got != "I love this" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextFallsBackToVisibleText(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	doc := mustParse(t, `<article class="post"><p> line one </p><script>var x;</script><style>p{}</style>`+
		`<p>line two</p><div class="sentiment-summary">POSITIVE 95%</div></article>`)
	post := s.DiscoverPosts(doc)[0]
	if got := s.ExtractText(post); got != "line one\nline two" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextSkipsHiddenElements(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	doc := mustParse(t, `<article class="post"><p>shown</p><p hidden>hidden attr</p>`+
		`<span aria-hidden="true">icon label</span><span aria-hidden="false">also shown</span></article>`)
	post := s.DiscoverPosts(doc)[0]
	if got := s.ExtractText(post); got != "shown\nalso shown" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextEmpty(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	doc := mustParse(t, `<article class="post"><img src="x.png"></article>`)
	post := s.DiscoverPosts(doc)[0]
	if got := s.ExtractText(post); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	if d := s.Decide(post, noCache); d.Action != ActionSkip {
		t.Fatalf("empty post must be skipped, got %s", d.Action)
	}
}

func TestIdentityFallsBackToTextPrefix(t *testing.T) {
	t.Parallel()

	s := New(stubPlatform{posts: []string{"article"}}, 5)
	doc := mustParse(t, `<article data-id="42">hello world</article><article>hello world</article><article>hello there</article>`)
	posts := s.DiscoverPosts(doc)

	if key := s.Identity(posts[0], s.ExtractText(posts[0])); key != "id:42" {
		t.Fatalf("expected permalink identity, got %q", key)
	}
	second := s.Identity(posts[1], s.ExtractText(posts[1]))
	third := s.Identity(posts[2], s.ExtractText(posts[2]))
	if second != "text:hello" {
		t.Fatalf("unexpected text key %q", second)
	}
	if second != third {
		t.Fatalf("truncated keys with equal prefix are expected to collide")
	}
}

func TestTextKeyNormalizesUnicode(t *testing.T) {
	t.Parallel()

	composed := "caf\u00e9 " + strings.Repeat("x", 60)
	decomposed := "cafe\u0301 " + strings.Repeat("x", 60)
	if TextKey(composed, 50) != TextKey(decomposed, 50) {
		t.Fatalf("NFC forms must share a key")
	}
	if got := len([]rune(strings.TrimPrefix(string(TextKey(composed, 50)), "text:"))); got != 50 {
		t.Fatalf("expected 50 runes, got %d", got)
	}
}

func TestDecideOrder(t *testing.T) {
	t.Parallel()

	s := newStubScanner()
	entry := domain.ClassificationEntry{Key: "id:7", Scores: domain.ScoreList{{Label: domain.LabelPositive, Score: 1}}}
	cached := func(key domain.PostIdentity) (domain.ClassificationEntry, bool) {
		if key == entry.Key {
			return entry, true
		}
		return domain.ClassificationEntry{}, false
	}

	cases := []struct {
		name   string
		state  domain.ProcessingState
		lookup Lookup
		want   Action
	}{
		{name: "unmarked without cache requests", state: domain.StateUnmarked, lookup: noCache, want: ActionRequest},
		{name: "done without cache skips", state: domain.StateDone, lookup: noCache, want: ActionSkip},
		{name: "pending without cache skips", state: domain.StatePending, lookup: noCache, want: ActionSkip},
		{name: "done with cache reapplies", state: domain.StateDone, lookup: cached, want: ActionReapply},
		{name: "pending with cache reapplies", state: domain.StatePending, lookup: cached, want: ActionReapply},
		{name: "unmarked with cache reapplies", state: domain.StateUnmarked, lookup: cached, want: ActionReapply},
	}

	for _, tc := range cases {
		doc := mustParse(t, `<article class="post" data-id="7"><div class="text">great</div></article>`)
		post := s.DiscoverPosts(doc)[0]
		page.SetState(post, tc.state)

		got := s.Decide(post, tc.lookup)
		if got.Action != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got.Action)
		}
		if got.Key != "id:7" || got.Text != "great" {
			t.Fatalf("%s: unexpected decision %+v", tc.name, got)
		}
		if tc.want == ActionReapply && len(got.Entry.Scores) != 1 {
			t.Fatalf("%s: reapply must carry the cached entry", tc.name)
		}
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubPlatform{})
	if _, err := reg.Resolve("stub"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := reg.Resolve("missing"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "stub" {
		t.Fatalf("unexpected names %v", names)
	}
}
