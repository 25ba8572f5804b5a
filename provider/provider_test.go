package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

func openAIReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
	})
	return string(b)
}

func newTestHTTP(t *testing.T, url string, format apiFormat, retries int) *HTTP {
	t.Helper()
	c := NewHTTP(Config{ID: OpenAI, Model: "test-model", APIKey: "sk-test", BaseURL: url, MaxRetries: retries}, format)
	c.backoff = time.Millisecond
	return c
}

// ---------------------------------------------------------------------------
// HTTP providers
// ---------------------------------------------------------------------------

func TestHTTP_OpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		assert.Equal(t, 0.2, body.Temperature)
		assert.Equal(t, 2000, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "translate this", body.Messages[1].Content)

		io.WriteString(w, openAIReply(`{"translated_text":"ok"}`))
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL+"/v1", formatOpenAIChat, 0)
	got, err := c.Generate(context.Background(), "translate this", translate.GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, `{"translated_text":"ok"}`, got)
}

func TestHTTP_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-goog-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gen := body["generationConfig"].(map[string]any)
		assert.EqualValues(t, 512, gen["maxOutputTokens"])

		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"world"}]}}]}`)
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL, formatGemini, 0)
	got, err := c.Generate(context.Background(), "p", translate.GenerateOptions{MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestHTTP_RetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, openAIReply("done"))
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL, formatOpenAIChat, 2)
	got, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTP_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, openAIReply("third time"))
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL, formatOpenAIChat, 3)
	got, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "third time", got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTP_ServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL, formatOpenAIChat, 1)
	_, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTP_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := newTestHTTP(t, srv.URL, formatOpenAIChat, 3)
	_, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Error(), "bad key")
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTP_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, openAIReply("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestHTTP(t, srv.URL, formatOpenAIChat, 3)
	_, err := c.Generate(ctx, "p", translate.GenerateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractResponseText(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{"openai", openAIReply("hi"), "hi", ""},
		{"gemini", `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`, "ab", ""},
		{"api error", `{"error":{"message":"quota"}}`, "", "quota"},
		{"unknown shape", `{"foo":1}`, "", "could not extract"},
		{"not json", `<html>`, "", "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractResponseText([]byte(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRetryDelay(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, parseRetryDelay(h, nil))

	body := `{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12s"}]}}`
	assert.Equal(t, 17*time.Second, parseRetryDelay(http.Header{}, []byte(body)))

	assert.Equal(t, 65*time.Second, parseRetryDelay(http.Header{}, []byte(`{}`)))
	assert.Equal(t, 65*time.Second, parseRetryDelay(nil, nil))
}

// ---------------------------------------------------------------------------
// Anthropic
// ---------------------------------------------------------------------------

func TestAnthropic_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, 2000, body.MaxTokens)
		require.Len(t, body.System, 1)
		assert.Equal(t, systemPrompt, body.System[0].Text)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",`+
			`"content":[{"type":"text","text":"{\"translated_text\":"},{"type":"text","text":"\"ok\"}"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	c := NewAnthropic(Config{ID: Anthropic, Model: "claude-test", APIKey: "sk-ant", BaseURL: srv.URL})
	got, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"translated_text":"ok"}`, got)
}

func TestAnthropic_RateLimitPauses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	c := NewAnthropic(Config{ID: Anthropic, Model: "claude-test", APIKey: "sk-ant", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, c.lim.paused())
}

// ---------------------------------------------------------------------------
// eino
// ---------------------------------------------------------------------------

type fakeChat struct {
	failures int
	calls    int
	input    []*schema.Message
	opts     *model.Options
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.input = input
	f.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return schema.AssistantMessage("translated", nil), nil
}

func (f *fakeChat) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestEino_Generate(t *testing.T) {
	chat := &fakeChat{failures: 1}
	c := newEinoClient(Config{ID: Eino, Model: "m", MaxRetries: 2}, chat)
	c.backoff = time.Millisecond

	got, err := c.Generate(context.Background(), "prompt text", translate.GenerateOptions{Temperature: 0.5, MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "translated", got)
	assert.Equal(t, 2, chat.calls)

	require.Len(t, chat.input, 2)
	assert.Equal(t, schema.System, chat.input[0].Role)
	assert.Equal(t, "prompt text", chat.input[1].Content)
	require.NotNil(t, chat.opts.Temperature)
	assert.InDelta(t, 0.5, *chat.opts.Temperature, 1e-6)
	require.NotNil(t, chat.opts.MaxTokens)
	assert.Equal(t, 300, *chat.opts.MaxTokens)
}

func TestEino_GivesUp(t *testing.T) {
	chat := &fakeChat{failures: 10}
	c := newEinoClient(Config{ID: Eino, Model: "m", MaxRetries: 1}, chat)
	c.backoff = time.Millisecond

	_, err := c.Generate(context.Background(), "p", translate.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 2, chat.calls)
}

// ---------------------------------------------------------------------------
// Registry and limiter
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{ID: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	_, err = New(ctx, Config{ID: OpenAI})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	g, err := New(ctx, Config{ID: Ollama})
	require.NoError(t, err)
	h, ok := g.(*HTTP)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434/v1", h.cfg.BaseURL)
	assert.Equal(t, "qwen2.5:7b", h.cfg.Model)

	g, err = New(ctx, Config{ID: Google, APIKey: "k", Model: "gemini-x"})
	require.NoError(t, err)
	assert.Equal(t, formatGemini, g.(*HTTP).format)

	g, err = New(ctx, Config{ID: Anthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, g)
}

func TestKnown(t *testing.T) {
	ids := IDs()
	assert.Equal(t, []string{Anthropic, Eino, Google, Groq, Ollama, OpenAI, OpenRouter}, ids)
	info, ok := Lookup(Groq)
	require.True(t, ok)
	assert.True(t, info.NeedsKey)
}

func TestLimiter(t *testing.T) {
	l := newLimiter(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, l.wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	assert.False(t, l.paused())
	l.pause(time.Hour)
	assert.True(t, l.paused())
	l.pause(time.Millisecond)
	assert.True(t, l.paused(), "shorter pause must not cut a longer one")

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, l.wait(ctx), context.Canceled)
}
