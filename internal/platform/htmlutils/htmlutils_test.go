package htmlutils

import (
	"strings"
	"testing"
)

func TestCleanTextRemovesComments(t *testing.T) {
	markup := `<p>visible text</p><!-- SC_OFF hidden keyword SC_ON -->`

	text := CleanText(markup)

	if !strings.Contains(text, "visible text") {
		t.Fatalf("expected visible text to survive, got %q", text)
	}

	if strings.Contains(text, "hidden keyword") {
		t.Fatalf("comment content leaked into output: %q", text)
	}
}

func TestCleanTextRemovesCommentsAfterEntityDecoding(t *testing.T) {
	// Reddit-style entity-encoded markup: comments only appear after decoding.
	markup := `&lt;!-- SC_OFF --&gt;&lt;div&gt;body text&lt;/div&gt;&lt;!-- SC_ON --&gt;`

	text := CleanText(markup)

	if !strings.Contains(text, "body text") {
		t.Fatalf("expected decoded body text, got %q", text)
	}

	if strings.Contains(text, "SC_OFF") || strings.Contains(text, "SC_ON") {
		t.Fatalf("decoded comment content leaked into output: %q", text)
	}
}

func TestCleanTextRemovesNonContentSubtrees(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		gone   string
	}{
		{"script", `<p>keep</p><script>var hidden = 1;</script>`, "hidden"},
		{"style", `<p>keep</p><style>.x { color: red }</style>`, "color"},
		{"anchor", `<p>keep</p><a href="http://ex.com">click here</a>`, "click here"},
		{"iframe", `<p>keep</p><iframe>embedded</iframe>`, "embedded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := CleanText(tt.markup)

			if !strings.Contains(text, "keep") {
				t.Fatalf("expected paragraph text to survive, got %q", text)
			}

			if strings.Contains(text, tt.gone) {
				t.Fatalf("removed subtree leaked %q into output: %q", tt.gone, text)
			}
		})
	}
}

func TestCleanTextMalformedMarkup(t *testing.T) {
	text := CleanText(`<p>unclosed <b>bold text`)

	if !strings.Contains(text, "unclosed") || !strings.Contains(text, "bold text") {
		t.Fatalf("expected best-effort extraction, got %q", text)
	}
}

func TestStripControlChars(t *testing.T) {
	got := StripControlChars("a\x00b\x1fc\x7fd\ne")

	if got != "abcde" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
}
