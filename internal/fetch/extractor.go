package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
)

const extractTimeout = 30 * time.Second

// Extractor fetches an article page and extracts its readable content, used
// when a processed feed prefers full articles over feed-provided excerpts.
type Extractor struct {
	client *http.Client
	logger *zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *zerolog.Logger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: extractTimeout},
		logger: logger,
	}
}

// FullContent fetches the page behind link and returns its readable body as
// HTML. Any failure returns an error so the caller keeps the feed-provided
// content instead.
func (e *Extractor) FullContent(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse article url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch article page: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", fmt.Errorf("extract readable content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("extract readable content: empty result for %s", link)
	}

	return article.Content, nil
}
