package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"FeedSentiment/internal/domain"
)

// AttrState carries the processing state on a post element.
const AttrState = "data-sentiment-state"

// Observer receives the element nodes inserted by one host mutation.
type Observer func(added []*html.Node)

// Document is a parsed feed page plus mutation notifications for nodes the
// host inserts. It is not safe for concurrent mutation; the page session owns it.
type Document struct {
	doc *goquery.Document

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc, observers: map[int]Observer{}}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Head returns the <head> element, which the HTML parser always creates.
func (d *Document) Head() *goquery.Selection {
	return d.doc.Find("head").First()
}

// Observe registers fn for future host mutations and returns a cancel func.
func (d *Document) Observe(fn Observer) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// AppendHTML appends markup to the first node of container, the way an
// infinite-scroll feed grows, and notifies observers about the new elements.
func (d *Document) AppendHTML(container *goquery.Selection, markup string) ([]*html.Node, error) {
	if container.Length() == 0 {
		return nil, fmt.Errorf("append: container not found")
	}
	parent := container.Nodes[0]
	last := parent.LastChild

	container.First().AppendHtml(markup)

	start := parent.FirstChild
	if last != nil {
		start = last.NextSibling
	}
	added := collectElements(start, nil)
	d.notify(added)
	return added, nil
}

// ReplaceHTML swaps the first node of target for markup, the way a host
// re-renders a post and drops any attributes we set on it.
func (d *Document) ReplaceHTML(target *goquery.Selection, markup string) ([]*html.Node, error) {
	if target.Length() == 0 {
		return nil, fmt.Errorf("replace: target not found")
	}
	node := target.Nodes[0]
	parent := node.Parent
	if parent == nil {
		return nil, fmt.Errorf("replace: target has no parent")
	}
	prev, next := node.PrevSibling, node.NextSibling

	target.First().ReplaceWithHtml(markup)

	start := parent.FirstChild
	if prev != nil {
		start = prev.NextSibling
	}
	added := collectElements(start, next)
	d.notify(added)
	return added, nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	for _, node := range d.doc.Nodes {
		if err := html.Render(w, node); err != nil {
			return fmt.Errorf("render document: %w", err)
		}
	}
	return nil
}

// HTML renders the document into a string.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Document) notify(added []*html.Node) {
	if len(added) == 0 {
		return
	}
	d.mu.Lock()
	observers := make([]Observer, 0, len(d.observers))
	for _, fn := range d.observers {
		observers = append(observers, fn)
	}
	d.mu.Unlock()

	for _, fn := range observers {
		fn(added)
	}
}

func collectElements(start, stop *html.Node) []*html.Node {
	var added []*html.Node
	for n := start; n != nil && n != stop; n = n.NextSibling {
		if n.Type == html.ElementNode {
			added = append(added, n)
		}
	}
	return added
}

// StateOf reads the processing state of a post element.
func StateOf(post *goquery.Selection) domain.ProcessingState {
	value, _ := post.Attr(AttrState)
	return domain.ProcessingState(value)
}

// SetState tags a post element; StateUnmarked removes the tag.
func SetState(post *goquery.Selection, state domain.ProcessingState) {
	if state == domain.StateUnmarked {
		post.RemoveAttr(AttrState)
		return
	}
	post.SetAttr(AttrState, string(state))
}
