package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// AnthropicClient calls the Messages API through the official SDK. The SDK
// retries 429 and 5xx replies itself.
type AnthropicClient struct {
	cfg    Config
	client anthropic.Client
	lim    *limiter
}

// NewAnthropic returns a Messages API client for cfg.
func NewAnthropic(cfg Config) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(makeHTTPClient(cfg.Proxy, cfg.effectiveTimeout())),
		option.WithMaxRetries(cfg.effectiveMaxRetries()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
		lim:    newLimiter(cfg.RateLimit),
	}
}

// Generate sends prompt as a single user turn and joins the text blocks of
// the reply.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, opts translate.GenerateOptions) (string, error) {
	if err := c.lim.wait(ctx); err != nil {
		return "", err
	}
	c.cfg.logger().Debug("provider request", "provider", c.cfg.ID, "model", c.cfg.Model)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(effectiveMaxTokens(opts)),
		Temperature: anthropic.Float(opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				var h http.Header
				if apiErr.Response != nil {
					h = apiErr.Response.Header
				}
				c.lim.pause(parseRetryDelay(h, []byte(apiErr.RawJSON())))
			}
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
		}
		return "", fmt.Errorf("API request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text in response (stop reason %q)", msg.StopReason)
	}
	return b.String(), nil
}
