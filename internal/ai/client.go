// Package ai talks to an OpenAI-compatible gateway for story continuation
// and story assessment.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"mintoons/internal/assessment"
	"mintoons/internal/config"
	"mintoons/internal/metrics"
	"mintoons/internal/models"
)

var (
	ErrNotConfigured = errors.New("AI gateway is not configured")
	ErrEmptyResponse = errors.New("empty response from AI gateway")
)

// Collaborator is the AI co-author and scorer used by the story service
type Collaborator interface {
	ContinueStory(ctx context.Context, prompt TurnPrompt) (string, error)
	AssessStory(ctx context.Context, req ScoreRequest) (*assessment.Assessment, error)
}

// TurnPrompt is everything the co-author sees for one turn
type TurnPrompt struct {
	Title      string
	Elements   models.StoryElements
	PriorTurns []models.Turn
	ChildInput string
	TurnNumber int
	MaxTurns   int
}

// IsFinal reports whether this is the last turn of the story
func (p TurnPrompt) IsFinal() bool {
	return p.TurnNumber >= p.MaxTurns
}

// ScoreRequest is a finished story sent for assessment
type ScoreRequest struct {
	Title          string
	Elements       models.StoryElements
	Text           string
	ChildWordCount int
}

// Client implements Collaborator on top of go-openai
type Client struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	prompts    *Prompts
	logger     *zap.Logger
}

var _ Collaborator = (*Client)(nil)

// New builds a client from configuration. The gateway is reached with the
// API key, or with an OAuth2 client-credentials token when that triple is set.
func New(cfg config.AIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && !cfg.UsesClientCredentials() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prompts, err := LoadPrompts(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.UsesClientCredentials() {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		oc.HTTPClient = cc.Client(context.Background())
	} else {
		oc.HTTPClient = &http.Client{}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		prompts:    prompts,
		logger:     logger.Named("AIClient"),
	}, nil
}

// ContinueStory asks the co-author for the next passage
func (c *Client) ContinueStory(ctx context.Context, prompt TurnPrompt) (string, error) {
	user, err := c.prompts.ContinueStory.render(prompt)
	if err != nil {
		return "", err
	}

	text, err := c.complete(ctx, "continue_story", c.prompts.ContinueStory, user, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AssessStory sends the story to the scorer and decodes whichever payload
// shape comes back
func (c *Client) AssessStory(ctx context.Context, req ScoreRequest) (*assessment.Assessment, error) {
	user, err := c.prompts.AssessStory.render(req)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "assess_story", c.prompts.AssessStory, user, true)
	if err != nil {
		return nil, err
	}

	a, err := assessment.Decode([]byte(StripCodeFences(text)))
	if err != nil {
		c.logger.Warn("Unusable assessment payload", zap.Error(err), zap.Int("length", len(text)))
		return nil, fmt.Errorf("decoding assessment: %w", err)
	}
	return a, nil
}

// complete runs one chat completion with a per-call timeout, retrying
// transport failures, rate limiting and gateway 5xx responses
func (c *Client) complete(ctx context.Context, operation string, p Prompt, user string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.AIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", ErrEmptyResponse
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !retryable(ctx, err) || attempt == c.maxRetries {
			break
		}
		c.logger.Warn("AI gateway call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", operation, ctx.Err())
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	return "", fmt.Errorf("%s failed: %w", operation, lastErr)
}

// retryable reports whether another attempt could succeed. Requests the
// gateway rejected outright (4xx other than 429) are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// StripCodeFences removes a surrounding markdown code block from model output
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// Disabled stands in when no gateway is configured; every call fails
type Disabled struct{}

func (Disabled) ContinueStory(context.Context, TurnPrompt) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) AssessStory(context.Context, ScoreRequest) (*assessment.Assessment, error) {
	return nil, ErrNotConfigured
}
