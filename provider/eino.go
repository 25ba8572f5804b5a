package provider

import (
	"context"
	"fmt"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// EinoClient drives an eino chat model.
type EinoClient struct {
	cfg     Config
	chat    model.BaseChatModel
	lim     *limiter
	backoff time.Duration
}

// NewEino builds an OpenAI-compatible eino chat model for cfg.
func NewEino(ctx context.Context, cfg Config) (*EinoClient, error) {
	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.effectiveTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}
	return newEinoClient(cfg, chat), nil
}

func newEinoClient(cfg Config, chat model.BaseChatModel) *EinoClient {
	return &EinoClient{cfg: cfg, chat: chat, lim: newLimiter(cfg.RateLimit), backoff: time.Second}
}

// Generate sends prompt after the shared system message.
func (c *EinoClient) Generate(ctx context.Context, prompt string, opts translate.GenerateOptions) (string, error) {
	log := c.cfg.logger()
	maxRetries := c.cfg.effectiveMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(1<<(attempt-1))*c.backoff); err != nil {
				return "", err
			}
		}
		if err := c.lim.wait(ctx); err != nil {
			return "", err
		}
		log.Debug("provider request", "provider", c.cfg.ID, "model", c.cfg.Model, "attempt", attempt+1)

		msg, err := c.chat.Generate(ctx,
			[]*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(prompt),
			},
			model.WithTemperature(float32(opts.Temperature)),
			model.WithMaxTokens(effectiveMaxTokens(opts)),
		)
		if err == nil {
			if msg == nil {
				return "", fmt.Errorf("empty response")
			}
			return msg.Content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		log.Warn("chat model call failed", "provider", c.cfg.ID, "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("API request failed: %w", lastErr)
}
