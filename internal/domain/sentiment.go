package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Label is a sentiment class reported by the classifier.
type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// ParseLabel lower-cases raw classifier labels and maps LABEL_n aliases.
func ParseLabel(raw string) Label {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "label_0":
		return LabelNegative
	case "label_1":
		return LabelNeutral
	case "label_2":
		return LabelPositive
	}
	return Label(value)
}

// Known reports whether the label is one of the three sentiment classes.
func (l Label) Known() bool {
	return l == LabelNegative || l == LabelNeutral || l == LabelPositive
}

// Score is a single (label, probability) pair.
type Score struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}

// Percent renders the score as a rounded integer percentage.
func (s Score) Percent() int {
	return int(math.Round(s.Score * 100))
}

// ScoreList is the ordered classifier output for one post.
type ScoreList []Score

// Best returns the index of the highest score. Ties keep the first one seen.
func (l ScoreList) Best() (int, bool) {
	if len(l) == 0 {
		return -1, false
	}
	best := 0
	for i := 1; i < len(l); i++ {
		if l[i].Score > l[best].Score {
			best = i
		}
	}
	return best, true
}

// Remainder lists every score except the one at index skip, highest first.
func (l ScoreList) Remainder(skip int) ScoreList {
	rest := make(ScoreList, 0, len(l))
	for i, s := range l {
		if i != skip {
			rest = append(rest, s)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Score > rest[j].Score
	})
	return rest
}

// Clone returns an independent copy of the list.
func (l ScoreList) Clone() ScoreList {
	if l == nil {
		return nil
	}
	out := make(ScoreList, len(l))
	copy(out, l)
	return out
}

// PostIdentity keys a post across DOM re-renders.
type PostIdentity string

// ClassificationEntry is a stored classification for one post identity.
type ClassificationEntry struct {
	Key        PostIdentity
	Scores     ScoreList
	InsertedAt time.Time
}

// Clone detaches the entry from the caller's score slice.
func (e ClassificationEntry) Clone() ClassificationEntry {
	e.Scores = e.Scores.Clone()
	return e
}

// ProcessingState tracks a post element through annotation.
type ProcessingState string

const (
	StateUnmarked ProcessingState = ""
	StatePending  ProcessingState = "pending"
	StateDone     ProcessingState = "done"
)

// Outcome classifies what happened to one outbound classification.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeEmpty          Outcome = "empty"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeTransportError Outcome = "transport_error"
)

// ClassificationRecord is an audit row describing one classifier call.
type ClassificationRecord struct {
	Key       string    `json:"key"`
	Outcome   Outcome   `json:"outcome"`
	Label     Label     `json:"label,omitempty"`
	Scores    ScoreList `json:"scores,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
