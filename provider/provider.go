// Package provider connects the translation pipeline to text-generation
// services.
//
// Every client implements translate.Generator. OpenAI-compatible endpoints
// (OpenAI, Groq, OpenRouter, Ollama) and Google's Gemini API are spoken to
// over plain HTTP; Anthropic goes through its official SDK; the "eino"
// provider drives an OpenAI-compatible model through a cloudwego/eino chat
// model. Clients own their retry and rate-limit policy: a 429 pauses the
// client for the delay the service asks for, and transient failures back
// off exponentially.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// Provider identifiers.
const (
	OpenAI     = "openai"
	Groq       = "groq"
	OpenRouter = "openrouter"
	Ollama     = "ollama"
	Google     = "google"
	Anthropic  = "anthropic"
	Eino       = "eino"
)

// systemPrompt frames every request. The task itself is in the user prompt.
const systemPrompt = "You translate educational content about robotics and AI. " +
	"Follow the instructions exactly and reply with the requested JSON object only."

// ErrNoAPIKey is returned when a provider that needs a key has none.
var ErrNoAPIKey = errors.New("no API key")

// Info describes a supported provider.
type Info struct {
	ID           string
	Name         string
	BaseURL      string
	DefaultModel string
	NeedsKey     bool
}

var registry = map[string]Info{
	OpenAI:     {OpenAI, "OpenAI", "https://api.openai.com/v1", "gpt-4o-mini", true},
	Groq:       {Groq, "Groq", "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile", true},
	OpenRouter: {OpenRouter, "OpenRouter", "https://openrouter.ai/api/v1", "openai/gpt-4o-mini", true},
	Ollama:     {Ollama, "Ollama", "http://localhost:11434/v1", "qwen2.5:7b", false},
	Google:     {Google, "Google AI (Gemini)", "https://generativelanguage.googleapis.com", "gemini-2.0-flash", true},
	Anthropic:  {Anthropic, "Anthropic", "", "claude-sonnet-4-5", true},
	Eino:       {Eino, "OpenAI via eino", "https://api.openai.com/v1", "gpt-4o-mini", true},
}

// Lookup returns the provider registered under id.
func Lookup(id string) (Info, bool) {
	info, ok := registry[id]
	return info, ok
}

// Known lists all providers sorted by ID.
func Known() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the provider identifiers sorted.
func IDs() []string {
	var ids []string
	for _, info := range Known() {
		ids = append(ids, info.ID)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config selects and configures a provider client.
type Config struct {
	ID      string
	Model   string
	APIKey  string
	BaseURL string
	// Proxy is an HTTP(S) proxy URL. Empty uses HTTP_PROXY/HTTPS_PROXY.
	Proxy string
	// Timeout bounds one HTTP exchange. Default: 120s.
	Timeout time.Duration
	// MaxRetries applies to 429 and 5xx replies and transport errors.
	MaxRetries int
	// RateLimit is the minimum spacing between request starts.
	RateLimit time.Duration
	Logger    *logger.Logger
}

func (c *Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 120 * time.Second
}

func (c *Config) effectiveMaxRetries() int {
	return max(c.MaxRetries, 0)
}

func (c *Config) logger() *logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Nop()
}

// withDefaults fills BaseURL and Model from the registry.
func (c Config) withDefaults(info Info) Config {
	if c.BaseURL == "" {
		c.BaseURL = info.BaseURL
	}
	if c.Model == "" {
		c.Model = info.DefaultModel
	}
	return c
}

// New returns the client for cfg.ID.
func New(ctx context.Context, cfg Config) (translate.Generator, error) {
	info, ok := Lookup(cfg.ID)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (valid: %s)", cfg.ID, strings.Join(IDs(), ", "))
	}
	if info.NeedsKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", info.Name, ErrNoAPIKey)
	}
	cfg = cfg.withDefaults(info)

	switch info.ID {
	case Anthropic:
		return NewAnthropic(cfg), nil
	case Eino:
		c, err := NewEino(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case Google:
		return NewHTTP(cfg, formatGemini), nil
	default:
		return NewHTTP(cfg, formatOpenAIChat), nil
	}
}

// ---------------------------------------------------------------------------
// Shared plumbing
// ---------------------------------------------------------------------------

// makeHTTPClient honours an explicit proxy or the proxy environment.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func effectiveMaxTokens(opts translate.GenerateOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return 2000
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
