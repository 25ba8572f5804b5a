package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the bookkit.yaml structure. Every field can also be set through
// a BOOKKIT_* environment variable, which wins over the file.
type File struct {
	// SourceLang is the language chapters are written in (default "en").
	SourceLang string `yaml:"source_lang" env:"BOOKKIT_SOURCE_LANG" env-default:"en"`
	// Languages overrides the target languages detected under i18n/.
	Languages []string `yaml:"languages" env:"BOOKKIT_LANGUAGES" env-separator:","`
	// DocsDir and I18nDir override the detected layout, relative to the
	// project root.
	DocsDir string `yaml:"docs_dir" env:"BOOKKIT_DOCS_DIR"`
	I18nDir string `yaml:"i18n_dir" env:"BOOKKIT_I18N_DIR"`
	// Glossary is a terminology file replacing the built-in dictionary.
	Glossary string `yaml:"glossary" env:"BOOKKIT_GLOSSARY"`

	Provider    Provider    `yaml:"provider"`
	Translation Translation `yaml:"translation"`

	// path is where the file was read from, "" when only the environment
	// and defaults were used.
	path string
}

// Provider selects and tunes the generation service.
type Provider struct {
	// Name: openai, anthropic, eino, groq, openrouter or ollama.
	Name    string `yaml:"name" env:"BOOKKIT_PROVIDER" env-default:"openai"`
	Model   string `yaml:"model" env:"BOOKKIT_MODEL"`
	BaseURL string `yaml:"base_url" env:"BOOKKIT_BASE_URL"`
	// Timeout bounds a single service call.
	Timeout time.Duration `yaml:"timeout" env:"BOOKKIT_TIMEOUT" env-default:"2m"`
	// RateLimit is the minimum delay between calls (0 = none).
	RateLimit time.Duration `yaml:"rate_limit" env:"BOOKKIT_RATE_LIMIT"`
	// Retries applies to rate-limited and transient failures. 0 means 3.
	Retries int `yaml:"retries" env:"BOOKKIT_RETRIES" env-default:"3"`
}

// Translation tunes the per-field pipeline and the chapter coordinator.
type Translation struct {
	Domain         string `yaml:"domain" env:"BOOKKIT_DOMAIN"`
	PreserveTerms  bool   `yaml:"preserve_terms" env:"BOOKKIT_PRESERVE_TERMS"`
	PartialSuccess bool   `yaml:"partial_success" env:"BOOKKIT_PARTIAL_SUCCESS"`
	Parallel       int    `yaml:"parallel" env:"BOOKKIT_PARALLEL" env-default:"1"`
	MaxTokens      int    `yaml:"max_tokens" env:"BOOKKIT_MAX_TOKENS"`
	// Temperature is nil when unset. BOOKKIT_TEMPERATURE is applied by Load.
	Temperature *float64 `yaml:"temperature"`
	// NoMemory disables the translation memory.
	NoMemory bool `yaml:"no_memory" env:"BOOKKIT_NO_MEMORY"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the default config file name.
const FileName = "bookkit.yaml"

// Load reads bookkit.yaml from rootDir, overlays the environment, applies
// defaults and validates the result. BOOKKIT_CONFIG names a different file;
// when it is set the file must exist. A missing default file is not an
// error: the environment and defaults are used alone.
func Load(rootDir string) (*File, error) {
	var cfg File

	path := os.Getenv("BOOKKIT_CONFIG")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(rootDir, FileName)
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		cfg.path = path
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// cleanenv does not parse pointer fields.
	if v, ok := os.LookupEnv("BOOKKIT_TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing BOOKKIT_TEMPERATURE: %w", err)
		}
		cfg.Translation.Temperature = &t
	}

	if err := cfg.Validate(); err != nil {
		where := cfg.path
		if where == "" {
			where = "environment"
		}
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return &cfg, nil
}

// Path returns the file the configuration was read from, or "".
func (f *File) Path() string { return f.path }

// Validate checks value ranges.
func (f *File) Validate() error {
	if f.SourceLang == "" {
		return fmt.Errorf("source_lang is empty")
	}
	for _, lang := range f.Languages {
		if !isLangCode(lang) {
			return fmt.Errorf("languages: %q is not a language code", lang)
		}
	}
	if f.Provider.Name == "" {
		return fmt.Errorf("provider.name is empty")
	}
	if f.Provider.Timeout < 0 || f.Provider.RateLimit < 0 {
		return fmt.Errorf("provider durations must not be negative")
	}
	if f.Provider.Retries < 0 || f.Provider.Retries > 10 {
		return fmt.Errorf("provider.retries %d is outside 0..10", f.Provider.Retries)
	}
	if f.Translation.Parallel < 1 || f.Translation.Parallel > 32 {
		return fmt.Errorf("translation.parallel %d is outside 1..32", f.Translation.Parallel)
	}
	if t := f.Translation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("translation.temperature %v is outside 0..2", *t)
	}
	if f.Translation.MaxTokens < 0 {
		return fmt.Errorf("translation.max_tokens must not be negative")
	}
	return nil
}

// Project detects the layout under rootDir and applies the overrides from
// the file.
func (f *File) Project(rootDir string) *Project {
	p := Detect(rootDir)
	base := filepath.Dir(p.DocsDir)
	if f.path != "" {
		base = filepath.Dir(f.path)
	}
	if f.DocsDir != "" {
		p.DocsDir = resolve(base, f.DocsDir)
	}
	if f.I18nDir != "" {
		p.I18nDir = resolve(base, f.I18nDir)
		p.Languages = detectLanguages(p.I18nDir, f.SourceLang)
	}
	p.SourceLang = f.SourceLang
	if len(f.Languages) > 0 {
		p.Languages = append([]string(nil), f.Languages...)
	}
	return p
}

// GlossaryPath returns the glossary file resolved against the config file
// directory, or "" for the built-in dictionary.
func (f *File) GlossaryPath(rootDir string) string {
	if f.Glossary == "" {
		return ""
	}
	base := rootDir
	if f.path != "" {
		base = filepath.Dir(f.path)
	}
	return resolve(base, f.Glossary)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
