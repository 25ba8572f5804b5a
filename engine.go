package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/config"
	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
	"github.com/MubasharaShauket/My-Panaversity-Book/provider"
	"github.com/MubasharaShauket/My-Panaversity-Book/settings"
	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
	"github.com/MubasharaShauket/My-Panaversity-Book/transmem"
)

// providerFlags are the service flags shared by translate and review.
// Zero values leave bookkit.yaml (or its defaults) in charge.
type providerFlags struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	proxy      string
	timeout    time.Duration
	delay      time.Duration
	maxRetries int
}

func (f *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "AI provider: "+strings.Join(provider.IDs(), ", "))
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (default: provider's default)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (or BOOKKIT_API_KEY env var)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Request timeout (0 = config value)")
	cmd.Flags().DurationVar(&f.delay, "request-delay", 0, "Minimum delay between requests")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", -1, "Retries on rate limits and server errors (-1 = config value)")

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
}

// apply overlays the flags on the loaded configuration.
func (f *providerFlags) apply(p *config.Provider) {
	if f.provider != "" {
		p.Name = f.provider
	}
	if f.model != "" {
		p.Model = f.model
	}
	if f.baseURL != "" {
		p.BaseURL = f.baseURL
	}
	if f.timeout > 0 {
		p.Timeout = f.timeout
	}
	if f.delay > 0 {
		p.RateLimit = f.delay
	}
	if f.maxRetries >= 0 {
		p.Retries = f.maxRetries
	}
}

// newGenerator builds the provider client for p.
func newGenerator(ctx context.Context, p config.Provider, f *providerFlags, log *logger.Logger) (translate.Generator, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = settings.GetBaseURL(p.Name)
	}
	gen, err := provider.New(ctx, provider.Config{
		ID:         p.Name,
		Model:      p.Model,
		APIKey:     settings.ResolveAPIKey(p.Name, f.apiKey),
		BaseURL:    baseURL,
		Proxy:      f.proxy,
		Timeout:    p.Timeout,
		MaxRetries: p.Retries,
		RateLimit:  p.RateLimit,
		Logger:     log,
	})
	if errors.Is(err, provider.ErrNoAPIKey) {
		hint := "bookkit auth set --provider " + p.Name
		if env := settings.EnvVarForProvider(p.Name); env != "" {
			hint += "\n  or export " + env + "=YOUR_KEY"
		}
		return nil, fmt.Errorf("%w\n\nStore a key with:\n  %s\n  or pass --api-key / export BOOKKIT_API_KEY", err, hint)
	}
	return gen, err
}

// loadDictionary returns the dictionary for a language pair: the configured
// file, else the built-in one. A dictionary for a different pair is not
// used; nil disables terminology for that pair.
func loadDictionary(path, sourceLang, targetLang string) (*glossary.Dictionary, error) {
	var (
		dict *glossary.Dictionary
		err  error
	)
	if path != "" {
		dict, err = glossary.Load(path)
	} else {
		dict, err = glossary.Default()
	}
	if err != nil {
		return nil, err
	}
	if dict.SourceLanguage() != sourceLang || dict.TargetLanguage() != targetLang {
		return nil, nil
	}
	return dict, nil
}

// engine is everything a translation run shares between chapters.
type engine struct {
	cfg       *config.File
	requestor *translate.Requestor
	memory    *transmem.Memory
	log       *logger.Logger
}

func newEngine(ctx context.Context, cfg *config.File, f *providerFlags, log *logger.Logger) (*engine, error) {
	gen, err := newGenerator(ctx, cfg.Provider, f, log)
	if err != nil {
		return nil, err
	}

	prompts, err := settings.LoadPrompts()
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, log: log}
	opts := translate.Options{
		Domain:      cfg.Translation.Domain,
		MaxTokens:   cfg.Translation.MaxTokens,
		Temperature: cfg.Translation.Temperature,
		Prompt:      prompts[settings.PromptTranslate],
		Logger:      log,
	}
	if !cfg.Translation.NoMemory {
		e.memory, err = transmem.Load(memoryDir(cfg))
		if err != nil {
			return nil, err
		}
		opts.Memory = e.memory
	}
	e.requestor = translate.NewRequestor(gen, opts)
	return e, nil
}

// pipeline returns the field pipeline for one language pair.
func (e *engine) pipeline(sourceLang, targetLang string) (*translate.Pipeline, error) {
	dict, err := loadDictionary(e.cfg.GlossaryPath(rootDir), sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	if dict == nil && e.cfg.Translation.PreserveTerms {
		logWarning("No dictionary for %s → %s, technical terms are not pre-substituted", sourceLang, targetLang)
	}
	return translate.NewPipeline(e.requestor, dict), nil
}

// close persists the translation memory.
func (e *engine) close() {
	if e.memory == nil {
		return
	}
	if err := e.memory.Save(); err != nil {
		logWarning("Could not save translation memory: %v", err)
	}
}

// memoryDir is where bookkit.mem lives: next to bookkit.yaml, else the
// project root.
func memoryDir(cfg *config.File) string {
	if p := cfg.Path(); p != "" {
		return filepath.Dir(p)
	}
	return rootDir
}
