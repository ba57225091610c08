package annotator

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/page"
	"FeedSentiment/internal/scanner"
)

const (
	// StyleID is the id of the injected <style> element.
	StyleID = "feed-sentiment-style"
	// AttrLabel carries the winning label on an annotated post.
	AttrLabel = "data-sentiment"
	// ErrorClass marks posts whose classification failed.
	ErrorClass = "sentiment-error"

	classPrefix = "sentiment-"
)

//go:embed styles.css
var stylesheet string

// Annotator writes classification results onto post elements.
type Annotator struct {
	logger *slog.Logger
}

// New builds an annotator; log may be nil.
func New(log *slog.Logger) *Annotator {
	return &Annotator{logger: log}
}

// Render marks post with the winning label and a summary block. Rendering
// the same scores twice leaves the post unchanged.
func (a *Annotator) Render(post *goquery.Selection, scores domain.ScoreList) {
	best, ok := scores.Best()
	if !ok {
		a.MarkDone(post)
		return
	}

	winner := scores[best]
	class := a.classFor(winner.Label)
	reset(post, class)
	post.AddClass(class)
	post.SetAttr(AttrLabel, string(winner.Label))

	summary := fmt.Sprintf(`<div class="%s"></div>`, scanner.SummaryClass)
	post.AppendHtml(summary)
	block := post.ChildrenFiltered("div." + scanner.SummaryClass).Last()
	block.SetText(SummaryText(scores))
	block.SetAttr("title", Tooltip(scores))

	page.SetState(post, domain.StateDone)
}

// RenderError marks post as failed. It is not retried.
func (a *Annotator) RenderError(post *goquery.Selection) {
	reset(post, ErrorClass)
	post.RemoveAttr(AttrLabel)
	post.AddClass(ErrorClass)
	page.SetState(post, domain.StateDone)
}

// MarkPending tags post as awaiting a classification.
func (a *Annotator) MarkPending(post *goquery.Selection) {
	page.SetState(post, domain.StatePending)
}

// MarkDone tags post as finished without annotating it.
func (a *Annotator) MarkDone(post *goquery.Selection) {
	page.SetState(post, domain.StateDone)
}

// InjectStylesheet adds the annotation styles to <head> once.
func InjectStylesheet(doc *page.Document) bool {
	if doc.Find("style#" + StyleID).Length() > 0 {
		return false
	}
	head := doc.Head()
	if head.Length() == 0 {
		return false
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: StyleID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: stylesheet})
	head.Nodes[0].AppendChild(style)
	return true
}

// SummaryText is "<WINNER> <p>%" followed by the remaining labels, highest first.
func SummaryText(scores domain.ScoreList) string {
	best, ok := scores.Best()
	if !ok {
		return ""
	}
	winner := scores[best]
	head := fmt.Sprintf("%s %d%%", strings.ToUpper(string(winner.Label)), winner.Percent())

	rest := scores.Remainder(best)
	if len(rest) == 0 {
		return head
	}
	parts := make([]string, 0, len(rest))
	for _, s := range rest {
		parts = append(parts, fmt.Sprintf("%s %d%%", strings.ToUpper(string(s.Label)), s.Percent()))
	}
	return head + "\n" + strings.Join(parts, " • ")
}

// Tooltip lists every label with its percentage in classifier order.
func Tooltip(scores domain.ScoreList) string {
	caser := cases.Title(language.English)
	lines := make([]string, 0, len(scores))
	for _, s := range scores {
		lines = append(lines, fmt.Sprintf("%s: %d%%", caser.String(string(s.Label)), s.Percent()))
	}
	return strings.Join(lines, "\n")
}

func (a *Annotator) classFor(label domain.Label) string {
	if label.Known() {
		return classPrefix + string(label)
	}
	if a.logger != nil {
		a.logger.Warn("unknown sentiment label, styling as neutral", "label", label)
	}
	return classPrefix + string(domain.LabelNeutral)
}

// reset drops the summary block and every annotation class except keep, so
// re-rendering the same label leaves attribute order untouched.
func reset(post *goquery.Selection, keep string) {
	for _, class := range []string{
		classPrefix + string(domain.LabelPositive),
		classPrefix + string(domain.LabelNeutral),
		classPrefix + string(domain.LabelNegative),
		ErrorClass,
	} {
		if class != keep && post.HasClass(class) {
			post.RemoveClass(class)
		}
	}
	post.ChildrenFiltered("div." + scanner.SummaryClass).Remove()
}
