// Package llm wraps the external text-generation service used for article
// summaries, title translation, and digest overviews.
package llm

import "context"

// OutputMode selects the shape of the completion.
type OutputMode string

const (
	// ModeJSON requests a structured two-field summary.
	ModeJSON OutputMode = "json"
	// ModeHTML requests free-form HTML-safe text without fenced code blocks.
	ModeHTML OutputMode = "html"
	// ModeTranslate requests a plain-text translation of the title only.
	ModeTranslate OutputMode = "translate"
)

// Request describes one summarization call.
type Request struct {
	Model   string
	Mode    OutputMode
	Title   string
	Content string
	Prompt  string
}

// Client is the summarization service. Implementations must never let a
// transport failure escape as anything other than an error return; callers
// degrade to "no summary".
type Client interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Settings is the explicitly injected summarization configuration. The zero
// value means disabled: no global lookup happens at call time.
type Settings struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Enabled      bool
}

// Disabled reports whether every summarization call should be a no-op.
func (s Settings) Disabled() bool {
	return !s.Enabled || s.APIKey == ""
}
