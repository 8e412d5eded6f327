package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is the structured two-field summary returned in JSON mode.
type Summary struct {
	OneLine string `json:"summary_one_line"`
	Long    string `json:"summary_long"`
}

// ParseSummary decodes a JSON-mode completion. Fenced code blocks around the
// object are tolerated. Both fields must be present; anything else is a parse
// failure and the caller falls back to storing the raw text.
func ParseSummary(raw string) (Summary, error) {
	var summary Summary

	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &summary); err != nil {
		return Summary{}, fmt.Errorf("parse summary json: %w", err)
	}

	if summary.OneLine == "" && summary.Long == "" {
		return Summary{}, fmt.Errorf("parse summary json: missing %s and %s", fieldSummaryOneLine, fieldSummaryLong)
	}

	return summary, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
