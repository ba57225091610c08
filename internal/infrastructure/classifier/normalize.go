package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"

	"FeedSentiment/internal/domain"
)

type rawScore struct {
	Label string          `json:"label"`
	Score json.RawMessage `json:"score"`
}

// Normalize flattens [{label,score}] or [[{label,score}]] into a score list.
// Items without a numeric score in [0,1] are dropped. Shapes it cannot read are
// reported as warnings and contribute nothing.
func Normalize(raw json.RawMessage) (domain.ScoreList, []string) {
	var warnings []string

	var top []json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, []string{fmt.Sprintf("expected a JSON array, got %s", kindOf(raw))}
	}

	scores := make(domain.ScoreList, 0, len(top))
	for i, item := range top {
		switch kindOf(item) {
		case "object":
			if score, problem := decodeScore(item); problem == "" {
				scores = append(scores, score)
			} else {
				warnings = append(warnings, fmt.Sprintf("item %d %s", i, problem))
			}
		case "array":
			var nested []json.RawMessage
			if err := json.Unmarshal(item, &nested); err != nil {
				warnings = append(warnings, fmt.Sprintf("item %d: %v", i, err))
				continue
			}
			for j, inner := range nested {
				if kindOf(inner) != "object" {
					warnings = append(warnings, fmt.Sprintf("item %d.%d is %s, nesting deeper than one level is ignored", i, j, kindOf(inner)))
					continue
				}
				if score, problem := decodeScore(inner); problem == "" {
					scores = append(scores, score)
				} else {
					warnings = append(warnings, fmt.Sprintf("item %d.%d %s", i, j, problem))
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("item %d is %s", i, kindOf(item)))
		}
	}

	return scores, warnings
}

// decodeScore returns the score or a reason why the item was dropped.
func decodeScore(item json.RawMessage) (domain.Score, string) {
	const noScore = "has no numeric score"

	var rs rawScore
	if err := json.Unmarshal(item, &rs); err != nil {
		return domain.Score{}, noScore
	}
	if kindOf(rs.Score) != "number" {
		return domain.Score{}, noScore
	}
	var value float64
	if err := json.Unmarshal(rs.Score, &value); err != nil {
		return domain.Score{}, noScore
	}
	if value < 0 || value > 1 {
		return domain.Score{}, fmt.Sprintf("score %g is outside [0,1]", value)
	}
	return domain.Score{Label: domain.ParseLabel(rs.Label), Score: value}, ""
}

func kindOf(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
