package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"shiplens/internal/retry"
	"shiplens/internal/usage"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient generates fragments through the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini-backed generator.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger.Named("gemini"),
	}, nil
}

// Provider returns the provider name used for usage accounting.
func (c *GeminiClient) Provider() string { return "gemini" }

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Generate sends the prompt and returns the model's text. Transient API
// failures are retried with exponential backoff; everything else surfaces as
// a GenerationError.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*Response, error) {
	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, 3, time.Second, isTransientAPIError, func() error {
		var callErr error
		resp, callErr = c.client.Models.GenerateContent(ctx,
			c.model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{
				Temperature: genai.Ptr[float32](0),
			},
		)
		return callErr
	})
	if err != nil {
		c.logger.Warn("generation request failed", zap.Error(err))
		return nil, &GenerationError{
			Feedback: "the analytics assistant is unavailable right now",
			Err:      err,
		}
	}

	text := resp.Text()
	if text == "" {
		return nil, &GenerationError{
			Feedback: "the analytics assistant returned an empty reply",
			Err:      fmt.Errorf("empty candidate text"),
		}
	}

	out := &Response{Text: text}
	if resp.UsageMetadata != nil {
		out.Usage = usage.TokenCounts{
			Prompt:     int(resp.UsageMetadata.PromptTokenCount),
			Completion: int(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	c.logger.Debug("generation complete",
		zap.Int("prompt_tokens", out.Usage.Prompt),
		zap.Int("completion_tokens", out.Usage.Completion))
	return out, nil
}

// isTransientAPIError classifies rate limits and server hiccups as worth a
// retry.
func isTransientAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "rate", "overloaded", "timeout", "deadline exceeded", "connection reset", "unavailable"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
