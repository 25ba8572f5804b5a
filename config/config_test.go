package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newBook lays out a Docusaurus site under website/.
func newBook(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	site := filepath.Join(root, "website")
	writeFile(t, filepath.Join(site, "package.json"), `{"name": "physical-ai-book"}`)
	writeFile(t, filepath.Join(site, "docs", "intro.md"), "# Intro\n")
	writeFile(t, filepath.Join(site, "docs", "module-1", "sensors.mdx"), "# Sensors\n")
	writeFile(t, filepath.Join(site, "docs", "module-1", "arm.png"), "png")
	writeFile(t, filepath.Join(site, "docs", "_partials", "note.md"), "note\n")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "i18n", "ur"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(site, "i18n", "en"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(site, "i18n", "zh-Hans"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(site, "i18n", "drafts"), 0755))
	return root
}

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"BOOKKIT_CONFIG", "BOOKKIT_SOURCE_LANG", "BOOKKIT_LANGUAGES", "BOOKKIT_PROVIDER",
		"BOOKKIT_MODEL", "BOOKKIT_PARALLEL", "BOOKKIT_TIMEOUT", "BOOKKIT_GLOSSARY",
		"BOOKKIT_TEMPERATURE",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDetect(t *testing.T) {
	root := newBook(t)
	p := Detect(root)

	site := filepath.Join(root, "website")
	assert.Equal(t, "physical-ai-book", p.Name)
	assert.Equal(t, site, p.Root)
	assert.Equal(t, filepath.Join(site, "docs"), p.DocsDir)
	assert.Equal(t, filepath.Join(site, "i18n"), p.I18nDir)
	assert.Equal(t, "en", p.SourceLang)
	assert.Equal(t, []string{"ur", "zh-Hans"}, p.Languages)

	chapters, err := p.Chapters()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(site, "docs", "intro.md"),
		filepath.Join(site, "docs", "module-1", "sensors.mdx"),
	}, chapters)

	out, err := p.TranslationPath(chapters[1], "ur")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(site, "i18n", "ur", "docusaurus-plugin-content-docs", "current", "module-1", "sensors.mdx"), out)
}

func TestDetectWithoutSite(t *testing.T) {
	root := t.TempDir()
	p := Detect(root)
	assert.Equal(t, filepath.Base(root), p.Name)
	assert.Empty(t, p.Languages)

	_, err := p.Chapters()
	assert.Error(t, err)

	out, err := p.TranslationPath(filepath.Join(root, "elsewhere", "ch.md"), "ur")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.I18nDir, "ur", "docusaurus-plugin-content-docs", "current", "ch.md"), out)
}

func TestIsLangCode(t *testing.T) {
	for code, want := range map[string]bool{
		"ur": true, "pt_BR": true, "zh-CN": true, "zh-Hans": true,
		"urdu": false, "UR": false, "en-us": false, "": false,
	} {
		assert.Equal(t, want, isLangCode(code), code)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.Path())
	assert.Equal(t, "en", cfg.SourceLang)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, 2*time.Minute, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Provider.Retries)
	assert.Equal(t, 1, cfg.Translation.Parallel)
	assert.False(t, cfg.Translation.PreserveTerms)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	clearEnv(t)
	root := newBook(t)
	writeFile(t, filepath.Join(root, FileName), `
source_lang: en
languages: [ur, ar]
docs_dir: website/docs
glossary: terms/robotics.yaml
provider:
  name: anthropic
  model: claude-sonnet-4-5
  timeout: 45s
translation:
  preserve_terms: true
  partial_success: true
  parallel: 4
  temperature: 0.2
`)
	t.Setenv("BOOKKIT_MODEL", "claude-haiku-4-5")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path())
	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, "claude-haiku-4-5", cfg.Provider.Model)
	assert.Equal(t, 45*time.Second, cfg.Provider.Timeout)
	assert.True(t, cfg.Translation.PreserveTerms)
	assert.True(t, cfg.Translation.PartialSuccess)
	assert.Equal(t, 4, cfg.Translation.Parallel)
	require.NotNil(t, cfg.Translation.Temperature)
	assert.InDelta(t, 0.2, *cfg.Translation.Temperature, 1e-9)

	p := cfg.Project(root)
	assert.Equal(t, filepath.Join(root, "website", "docs"), p.DocsDir)
	assert.Equal(t, []string{"ur", "ar"}, p.Languages)
	assert.Equal(t, filepath.Join(root, "terms", "robotics.yaml"), cfg.GlossaryPath(root))
}

func TestLoadTemperatureZero(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(newBook(t))
		require.NoError(t, err)
		assert.Nil(t, cfg.Translation.Temperature)
	})

	t.Run("file", func(t *testing.T) {
		clearEnv(t)
		root := newBook(t)
		writeFile(t, filepath.Join(root, FileName), "translation:\n  temperature: 0\n")
		cfg, err := Load(root)
		require.NoError(t, err)
		require.NotNil(t, cfg.Translation.Temperature)
		assert.Zero(t, *cfg.Translation.Temperature)
	})

	t.Run("environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKKIT_TEMPERATURE", "0")
		cfg, err := Load(newBook(t))
		require.NoError(t, err)
		require.NotNil(t, cfg.Translation.Temperature)
		assert.Zero(t, *cfg.Translation.Temperature)
	})

	t.Run("bad environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKKIT_TEMPERATURE", "warm")
		_, err := Load(newBook(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BOOKKIT_TEMPERATURE")
	})
}

func TestLoadExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "provider:\n  name: ollama\n")
	t.Setenv("BOOKKIT_CONFIG", path)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider.Name)

	t.Setenv("BOOKKIT_CONFIG", filepath.Join(dir, "missing.yaml"))
	_, err = Load(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"parallel", "translation:\n  parallel: 64\n", "translation.parallel"},
		{"temperature", "translation:\n  temperature: 3\n", "translation.temperature"},
		{"language", "languages: [urdu]\n", "not a language code"},
		{"retries", "provider:\n  retries: 50\n", "provider.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			root := t.TempDir()
			writeFile(t, filepath.Join(root, FileName), tt.yaml)
			_, err := Load(root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), FileName)
		})
	}
}
