// Package vision is the client for the external vision-capable
// completion API. Every call is a single chat completion with a system
// instruction plus one user message carrying a text prompt and one image
// reference; the response text is expected to contain a JSON payload.
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fpang/outfit-lens/internal/analysis"
	"github.com/fpang/outfit-lens/internal/assets"
	"github.com/fpang/outfit-lens/internal/jsonutil"
)

const (
	// DefaultBaseURL is the xAI OpenAI-compatible completions endpoint.
	DefaultBaseURL = "https://api.x.ai/v1"

	// DefaultModel is the vision-capable model used for all analysis calls.
	DefaultModel = "grok-2-vision"
)

// Per-call timeouts. The detailed prompt produces a much longer
// completion, so it gets more headroom.
const (
	scoreTimeout      = 30 * time.Second
	detailTimeout     = 45 * time.Second
	suggestionTimeout = 30 * time.Second
)

// Per-call sampling temperatures. Scoring wants stable numbers;
// suggestions want variety.
const (
	scoreTemperature      = 0.2
	detailTemperature     = 0.1
	suggestionTemperature = 0.7
)

// Config holds the connection settings for the vision API.
type Config struct {
	APIKey  string
	BaseURL string // empty selects DefaultBaseURL
	Model   string // empty selects DefaultModel
}

// Client issues vision analysis calls. Safe for concurrent use.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	} else {
		apiCfg.BaseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(apiCfg), model: model}
}

// API exposes the underlying completion client for startup key validation.
func (c *Client) API() *openai.Client { return c.api }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// complete sends one system+user completion with an image reference and
// returns the raw response text. The timeout bounds the whole call; on
// expiry the call fails like any other network error.
func (c *Client) complete(ctx context.Context, system, prompt, imageData string, temperature float32, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageData}},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}

	log.Debug().
		Str("model", c.model).
		Dur("duration", time.Since(start)).
		Str("finishReason", string(resp.Choices[0].FinishReason)).
		Msg("Vision API call complete")
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeOutfit requests the basic score shape for an outfit image.
// The response is hard-validated; a missing or mistyped field fails the
// call.
func (c *Client) AnalyzeOutfit(ctx context.Context, imageData string) (*analysis.Scores, error) {
	content, err := c.complete(ctx, assets.ScoresSystemPrompt, assets.OutfitScoresPrompt, imageData, scoreTemperature, scoreTimeout)
	if err != nil {
		return nil, err
	}
	raw, err := jsonutil.ExtractRaw(content)
	if err != nil {
		return nil, fmt.Errorf("invalid score response: %w", err)
	}
	return analysis.ScoresFromJSON(raw)
}

// AnalyzeDetails requests the itemized analysis shape and merges in the
// previously obtained basic scores. Missing fields are defaulted, not
// failed.
func (c *Client) AnalyzeDetails(ctx context.Context, imageData string, basic *analysis.Scores) (*analysis.Details, error) {
	content, err := c.complete(ctx, assets.DetailsSystemPrompt, assets.OutfitDetailsPrompt, imageData, detailTemperature, detailTimeout)
	if err != nil {
		return nil, err
	}
	raw, err := jsonutil.ExtractRaw(content)
	if err != nil {
		return nil, fmt.Errorf("invalid detail response: %w", err)
	}
	return analysis.DetailsFromJSON(raw, basic)
}

// StyleSuggestions requests free-text improvement suggestions for an
// outfit worn to the given occasion. The expected shape is a JSON array
// of strings; bullet or numbered lines are accepted as a fallback.
func (c *Client) StyleSuggestions(ctx context.Context, imageData, occasion string) ([]string, error) {
	prompt := assets.RenderStyleSuggestionsPrompt(occasion)
	content, err := c.complete(ctx, assets.SuggestionsSystemPrompt, prompt, imageData, suggestionTemperature, suggestionTimeout)
	if err != nil {
		return nil, err
	}

	suggestions, err := jsonutil.ParseJSON[[]string](content)
	if err != nil {
		suggestions = jsonutil.ParseLines(content)
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("failed to parse suggestions from response")
	}
	for _, s := range suggestions {
		if s == "" {
			return nil, fmt.Errorf("invalid suggestions format received")
		}
	}
	return suggestions, nil
}
