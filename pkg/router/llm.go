package router

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"infraops/pkg/config"
	"infraops/pkg/logx"
)

// Completer is the upstream text-completion dependency of the router. It is
// an interface so tests can substitute a canned model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client talks to an OpenAI-compatible chat-completions endpoint. The default
// deployment points it at NVIDIA's hosted Nemotron models, but any endpoint
// speaking the same wire format works.
type Client struct {
	oa      openai.Client
	model   string
	timeout time.Duration
	logger  *logx.Logger
}

// NewClient builds a client from the LLM section of the config.
func NewClient(cfg config.LLMConfig, timeout time.Duration, logger *logx.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	return &Client{
		oa:      openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// Complete sends one system+user exchange and returns the assistant text.
// The timeout is bounded so the deterministic fallback stays responsive when
// the endpoint is slow or down.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.oa.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(512),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion from model %s", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Analyze summarizes monitoring data. It backs the analyzeLogs and
// analyzeMetrics tools, satisfying tools.Analyzer.
func (c *Client) Analyze(ctx context.Context, kind, data string) (string, error) {
	system := fmt.Sprintf(
		"You are an infrastructure operations assistant. The user gives you raw %s from a monitoring service. "+
			"Summarize the important findings in a few short sentences: anomalies, errors, and trends first. "+
			"Do not invent data that is not present.", kind)
	out, err := c.Complete(ctx, system, data)
	if err != nil {
		return "", fmt.Errorf("analysis of %s failed: %w", kind, err)
	}
	return out, nil
}
