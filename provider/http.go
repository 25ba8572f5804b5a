package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// apiFormat selects the wire format of an HTTP provider.
type apiFormat int

const (
	formatOpenAIChat apiFormat = iota // OpenAI chat/completions
	formatGemini                      // Google generateContent
)

// StatusError is a non-200 reply that was not retried (or ran out of
// retries).
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, truncate(e.Body, 500))
}

// HTTP talks to OpenAI-compatible and Gemini endpoints.
type HTTP struct {
	cfg    Config
	format apiFormat
	client *http.Client
	lim    *limiter
	// backoff is the first retry delay for transport errors and 5xx.
	backoff time.Duration
}

// NewHTTP returns an HTTP client for cfg. BaseURL and Model must be set.
func NewHTTP(cfg Config, format apiFormat) *HTTP {
	return &HTTP{
		cfg:     cfg,
		format:  format,
		client:  makeHTTPClient(cfg.Proxy, cfg.effectiveTimeout()),
		lim:     newLimiter(cfg.RateLimit),
		backoff: time.Second,
	}
}

// Generate sends prompt and returns the reply text.
func (c *HTTP) Generate(ctx context.Context, prompt string, opts translate.GenerateOptions) (string, error) {
	endpoint, headers, body, err := c.buildRequest(prompt, opts)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	log := c.cfg.logger()
	maxRetries := c.cfg.effectiveMaxRetries()

	for attempt := 0; ; attempt++ {
		if err := c.lim.wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		log.Debug("provider request", "provider", c.cfg.ID, "model", c.cfg.Model, "attempt", attempt+1)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < maxRetries {
				if err := sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := parseRetryDelay(resp.Header, respBody)
			log.Warn("rate limited", "provider", c.cfg.ID, "retry_in", delay.String(), "attempt", attempt+1)
			c.lim.pause(delay)
			if attempt < maxRetries {
				continue
			}
			return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		case resp.StatusCode >= 500:
			if attempt < maxRetries {
				if err := sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		case resp.StatusCode != http.StatusOK:
			return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		return extractResponseText(respBody)
	}
}

func (c *HTTP) backoffFor(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * c.backoff
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func (c *HTTP) buildRequest(prompt string, opts translate.GenerateOptions) (string, map[string]string, []byte, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	base := strings.TrimRight(c.cfg.BaseURL, "/")

	switch c.format {
	case formatGemini:
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, c.cfg.Model)
		if c.cfg.APIKey != "" {
			headers["x-goog-api-key"] = c.cfg.APIKey
		}
		body, err := buildGeminiRequest(prompt, opts)
		return endpoint, headers, body, err

	default:
		endpoint := base
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if c.cfg.APIKey != "" {
			headers["Authorization"] = "Bearer " + c.cfg.APIKey
		}
		body, err := buildOpenAIChatRequest(c.cfg.Model, prompt, opts)
		return endpoint, headers, body, err
	}
}

func buildOpenAIChatRequest(model, prompt string, opts translate.GenerateOptions) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   effectiveMaxTokens(opts),
	}
	return json.Marshal(req)
}

func buildGeminiRequest(prompt string, opts translate.GenerateOptions) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig:  genConfig{Temperature: opts.Temperature, MaxOutputTokens: effectiveMaxTokens(opts)},
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText understands the OpenAI chat and Gemini reply shapes.
func extractResponseText(body []byte) (string, error) {
	var raw struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if raw.Error != nil {
		return "", fmt.Errorf("API error: %s", raw.Error.Message)
	}

	if len(raw.Choices) > 0 {
		return raw.Choices[0].Message.Content, nil
	}
	if len(raw.Candidates) > 0 {
		var b strings.Builder
		for _, p := range raw.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseRetryDelay reads how long a 429 asks us to wait: the Retry-After
// header, then Google's RetryInfo detail (plus a 5s buffer), then 65s.
func parseRetryDelay(h http.Header, body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			return max(time.Until(at), 0)
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			if secs, err := strconv.ParseFloat(strings.TrimSuffix(detail.RetryDelay, "s"), 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}
	return defaultDelay
}
