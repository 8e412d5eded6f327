package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
	"github.com/feedbrew/feedbrew/internal/platform/htmlutils"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
	defaultBurst            = 5
)

type openaiClient struct {
	settings    Settings
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI creates a summarization client backed by an OpenAI-compatible API.
// The settings are captured at construction; a disabled configuration yields a
// client whose every call is a no-op returning ErrClientDisabled.
func NewOpenAI(settings Settings, rps float64, logger *zerolog.Logger) Client {
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}

	if rps <= 0 {
		rps = 1
	}

	return &openaiClient{
		settings:    settings,
		client:      openai.NewClientWithConfig(cfg),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), defaultBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", coreerrors.ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("circuit breaker opened")
	}
}

// Summarize issues one chat completion. The article content is truncated to
// the model's token budget; JSON mode normalizes HTML to plain text first.
func (c *openaiClient) Summarize(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.settings.DefaultModel
	}

	if c.settings.Disabled() || model == "" {
		return "", coreerrors.ErrClientDisabled
	}

	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	completion := buildCompletionRequest(req, model)

	resp, err := c.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		c.recordFailure()
		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", coreerrors.ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildCompletionRequest assembles the per-mode message list. The caller's
// prompt rides as an assistant message after the user content, mirroring the
// conversation shape the prompts were tuned against.
func buildCompletionRequest(req Request, model string) openai.ChatCompletionRequest {
	completion := openai.ChatCompletionRequest{Model: model}

	switch req.Mode {
	case ModeTranslate:
		completion.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemTranslate},
			{Role: openai.ChatMessageRoleUser, Content: req.Title},
			{Role: openai.ChatMessageRoleAssistant, Content: req.Prompt},
		}
	case ModeJSON:
		truncated := TruncateToBudget(htmlutils.CleanText(req.Content), model)
		completion.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemJSON},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("content: %s, title: %s", truncated, req.Title)},
			{Role: openai.ChatMessageRoleAssistant, Content: req.Prompt},
		}
		completion.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	default: // ModeHTML keeps markup intact for the model.
		truncated := TruncateToBudget(req.Content, model)
		completion.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemHTML},
			{Role: openai.ChatMessageRoleUser, Content: truncated},
			{Role: openai.ChatMessageRoleAssistant, Content: req.Prompt},
		}
	}

	return completion
}
