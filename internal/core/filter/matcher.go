// Package filter implements the rule engine deciding feed membership and
// summarization eligibility. Rules are evaluated against both freshly fetched
// entries and stored articles through the domain.Entry interface.
package filter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/feedbrew/feedbrew/internal/core/domain"
	"github.com/feedbrew/feedbrew/internal/platform/htmlutils"
)

// Match evaluates one filter rule against one entry.
//
// Field resolution follows the untitled fallback chain for titles and runs
// content through the text normalizer before matching; the link field uses the
// raw entry link. An entry whose resolved content is empty or whitespace-only
// never matches, regardless of match type: an absent field must not satisfy
// any rule, including does_not_contain.
func Match(entry domain.Entry, f domain.Filter, caseSensitive bool) bool {
	content := resolveContent(entry, f.Field)
	if strings.TrimSpace(content) == "" {
		return false
	}

	value := f.Value
	if !caseSensitive {
		content = strings.ToLower(content)
		value = strings.ToLower(value)
	}

	switch f.MatchType {
	case domain.MatchContains:
		return strings.Contains(content, value)
	case domain.MatchDoesNotContain:
		return !strings.Contains(content, value)
	case domain.MatchRegex:
		return matchRegex(f.Value, content, caseSensitive)
	case domain.MatchNotRegex:
		return !matchRegex(f.Value, content, caseSensitive)
	case domain.MatchShorterThan:
		limit, err := strconv.Atoi(f.Value)
		return err == nil && utf8.RuneCountInString(content) < limit
	case domain.MatchLongerThan:
		limit, err := strconv.Atoi(f.Value)
		return err == nil && utf8.RuneCountInString(content) > limit
	}

	return false
}

// resolveContent builds the text a rule is matched against. Title fields use
// the generated title; content fields use normalized text; both contribute
// when the field is title_or_content. The link field replaces the accumulator
// with the raw link.
func resolveContent(entry domain.Entry, field domain.MatchField) string {
	if field == domain.FieldLink {
		return entry.RawLink()
	}

	var sb strings.Builder

	if field == domain.FieldTitle || field == domain.FieldTitleOrContent {
		sb.WriteString(domain.GeneratedTitle(entry))
		sb.WriteString(" ")
	}

	if field == domain.FieldContent || field == domain.FieldTitleOrContent {
		if raw := entry.RawContent(); raw != "" {
			sb.WriteString(htmlutils.CleanText(raw))
			sb.WriteString(" ")
		}
	}

	return sb.String()
}

// matchRegex applies a search (not fullmatch) semantic. Patterns are validated
// at write time; a pattern that fails to compile here simply does not match.
func matchRegex(pattern, content string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	return re.MatchString(content)
}
