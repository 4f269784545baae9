// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/common/config"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Inferer is a single-turn text completion: system prompt plus user prompt
// in, assistant text out. The planner and extraction only depend on this.
type Inferer interface {
	Infer(ctx context.Context, system, user string) (string, error)
}

// InferFunc adapts a function to Inferer.
type InferFunc func(ctx context.Context, system, user string) (string, error)

func (f InferFunc) Infer(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

var ErrEmptyCompletion = errors.New("completion returned no choices")

type Client struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      logger.Logger
}

// NewClient builds a client for cfg. Extra request options are appended
// after the configured ones.
func NewClient(cfg config.LLMConfig, log logger.Logger, extra ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("", "llm.api_key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, apperrors.NewConfigurationError("", "llm.model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed+"/"))
	}
	opts = append(opts, extra...)

	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     config.GetDuration(cfg.Timeout),
		logger: log.WithFields(map[string]interface{}{
			"component": "llm",
			"model":     cfg.Model,
		}),
	}, nil
}

func (c *Client) Infer(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("completion timed out", map[string]interface{}{
				"elapsedMs": time.Since(start).Milliseconds(),
			})
			return "", apperrors.NewLLMTimeoutError()
		}
		c.logger.Error("completion failed", map[string]interface{}{
			"error": err,
		})
		return "", apperrors.NewLLMRequestFailedError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewLLMRequestFailedError(ErrEmptyCompletion)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("completion received", map[string]interface{}{
		"elapsedMs":        time.Since(start).Milliseconds(),
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
	})
	return content, nil
}

// Describe is used in startup logs.
func (c *Client) Describe() string {
	return fmt.Sprintf("%s (temperature %.2f)", c.model, c.temperature)
}
