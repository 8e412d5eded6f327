package llm

import "unicode/utf8"

// Per-model input token budgets, matching the upstream models' context
// windows with headroom for the prompt and completion.
var maxTokensPerModel = map[string]int{
	"gpt-3.5-turbo": 16200,
	"gpt-4.1":       1047376,
	"gpt-4.1-mini":  1047376,
	"gpt-4.1-nano":  1047376,
}

// defaultMaxTokens is the conservative budget for unknown models.
const defaultMaxTokens = 127800

// charsPerToken is the usual English-text estimate of 4 characters per token.
const charsPerToken = 4

// TokenBudget returns the input token budget for a model.
func TokenBudget(model string) int {
	if budget, ok := maxTokensPerModel[model]; ok {
		return budget
	}

	return defaultMaxTokens
}

// EstimateTokens approximates the token count of a text.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// TruncateToBudget cuts text to the model's token budget. The cut position is
// decoded back to the previous rune boundary so a multi-byte character is
// never split.
func TruncateToBudget(text, model string) string {
	budget := TokenBudget(model)
	if EstimateTokens(text) <= budget {
		return text
	}

	limit := budget * charsPerToken
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}

	return text[:limit]
}
