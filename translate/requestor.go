package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
)

// Memory caches raw service replies. Entries are keyed by the full rendered
// prompt, so a change of domain, template or glossary terms misses. Package
// transmem provides the file-backed implementation.
type Memory interface {
	Lookup(sourceLang, targetLang, contentType, prompt string) (string, bool)
	Store(sourceLang, targetLang, contentType, prompt, reply string)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls how requests are phrased and sampled.
type Options struct {
	// Domain names the subject area in prompts.
	Domain string
	// MaxTokens caps the reply length. Default: 2000.
	MaxTokens int
	// Temperature is the sampling temperature. Nil means 0.3; zero is
	// passed through for deterministic sampling.
	Temperature *float64
	// Prompt overrides TranslationPrompt.
	Prompt string
	// Memory, when set, is consulted before each service call.
	Memory Memory
	// Logger receives debug output. Default: discard.
	Logger *logger.Logger
}

func (o *Options) effectiveDomain() string {
	if o.Domain != "" {
		return o.Domain
	}
	return DefaultDomain
}

func (o *Options) effectiveMaxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return 2000
}

func (o *Options) effectiveTemperature() float64 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return 0.3
}

func (o *Options) effectivePrompt() string {
	if strings.TrimSpace(o.Prompt) != "" {
		return o.Prompt
	}
	return TranslationPrompt
}

func (o *Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Nop()
}

// ---------------------------------------------------------------------------
// Requestor
// ---------------------------------------------------------------------------

// Requestor sends prepared text to the generation service and decodes the
// reply. It makes exactly one service call per request and never retries.
type Requestor struct {
	gen  Generator
	opts Options
}

// NewRequestor returns a requestor backed by gen.
func NewRequestor(gen Generator, opts Options) *Requestor {
	return &Requestor{gen: gen, opts: opts}
}

// Call is one translation request for already-protected text.
type Call struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	ContentType    ContentType
	// Terms are dictionary entries found in the text, listed in the prompt.
	Terms []glossary.Entry
}

// Request translates c.Text. The bool result reports a translation memory
// hit. Every failure comes back as a *ServiceError.
func (r *Requestor) Request(ctx context.Context, c Call) (*Reply, bool, error) {
	log := r.opts.logger()
	ct := string(c.ContentType)

	prompt := buildPrompt(r.opts.effectivePrompt(), promptVars{
		sourceLang:  c.SourceLanguage,
		targetLang:  c.TargetLanguage,
		contentType: c.ContentType,
		domain:      r.opts.effectiveDomain(),
		terms:       c.Terms,
	}, c.Text)

	if mem := r.opts.Memory; mem != nil {
		if raw, ok := mem.Lookup(c.SourceLanguage, c.TargetLanguage, ct, prompt); ok {
			if reply, err := parseReply(raw); err == nil {
				log.Debug("translation memory hit", "content_type", ct, "chars", len(c.Text))
				return reply, true, nil
			}
			log.Warn("discarding unreadable translation memory entry", "content_type", ct)
		}
	}

	start := time.Now()
	raw, err := r.gen.Generate(ctx, prompt, GenerateOptions{
		MaxTokens:   r.opts.effectiveMaxTokens(),
		Temperature: r.opts.effectiveTemperature(),
	})
	if err != nil {
		return nil, false, &ServiceError{Op: "translate", Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, false, &ServiceError{Op: "translate", Err: errors.New("empty reply")}
	}
	log.Debug("translation received", "content_type", ct, "elapsed", time.Since(start).String(), "reply_chars", len(raw))

	reply, err := parseReply(raw)
	if err != nil {
		return nil, false, &ServiceError{Op: "translate", Reply: raw, Err: err}
	}

	if mem := r.opts.Memory; mem != nil {
		mem.Store(c.SourceLanguage, c.TargetLanguage, ct, prompt, raw)
	}
	return reply, false, nil
}
