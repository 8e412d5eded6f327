package llm

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// System messages per output mode.
const (
	systemJSON = "You are a helpful assistant for processing articles, designed to output JSON format."
	systemHTML = "You are a helpful assistant for processing article content, designed to output pure and clean " +
		"HTML format, do not code block the output using triple backticks."
	systemTranslate = "You are a helpful assistant for translating text."
)

// JSON summary field names, shared with the response parser.
const (
	fieldSummaryOneLine = "summary_one_line"
	fieldSummaryLong    = "summary_long"
)

// DefaultSummaryPrompt builds the structured-summary instruction for the
// configured target language.
func DefaultSummaryPrompt(languageTag string) string {
	return fmt.Sprintf("Please summarize this article, and output the result only in JSON format. "+
		"First item of the json is a one-line summary in 15 words named as '%s', "+
		"second item is the 150-word summary named as '%s'. Output result in %s language.",
		fieldSummaryOneLine, fieldSummaryLong, LanguageName(languageTag))
}

// DefaultDigestPrompt builds the consolidated-overview instruction used for
// AI digest sections.
func DefaultDigestPrompt(languageTag string) string {
	return fmt.Sprintf("The following is a list of article titles and summaries collected since the last digest. "+
		"Write a concise overview of the main themes and notable items in HTML, using short paragraphs. "+
		"Output result in %s language.", LanguageName(languageTag))
}

// TranslateTitlePrompt builds the title-translation instruction.
func TranslateTitlePrompt(languageTag string) string {
	return fmt.Sprintf("Translate the following title into %s. Output only the translated title as plain text.",
		LanguageName(languageTag))
}

// LanguageName resolves a BCP 47 tag ("en", "zh") to its English display name
// for prompt interpolation. Unknown tags pass through unchanged so a feed
// configured with a full language name keeps working.
func LanguageName(tag string) string {
	if tag == "" {
		return "English"
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}

	name := display.English.Languages().Name(parsed)
	if name == "" {
		return tag
	}

	return name
}
