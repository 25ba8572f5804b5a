// Package config locates the chapters of a Docusaurus textbook and the
// translation settings that apply to them.
//
// Without a bookkit.yaml the layout is auto-detected: chapters under docs/
// (or website/docs/), translations under i18n/<lang>/ next to it. A
// bookkit.yaml in the project root overrides any detected value.
package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Project holds the resolved layout of a book.
type Project struct {
	// Name comes from package.json, falling back to the directory name.
	Name string
	// Root is the absolute site root (the directory holding docs/).
	Root string
	// DocsDir is the absolute chapter directory.
	DocsDir string
	// I18nDir is the absolute translation root.
	I18nDir string
	// SourceLang is the language chapters are written in.
	SourceLang string
	// Languages lists target languages found under I18nDir, sorted.
	Languages []string
}

// docsPlugin is the Docusaurus directory holding translated docs.
const docsPlugin = "docusaurus-plugin-content-docs"

// Detect inspects rootDir and returns its book layout.
func Detect(rootDir string) *Project {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	site := absRoot
	for _, candidate := range []string{".", "website"} {
		dir := filepath.Join(absRoot, candidate)
		if isDir(filepath.Join(dir, "docs")) {
			site = dir
			break
		}
	}

	p := &Project{
		Name:       filepath.Base(absRoot),
		Root:       site,
		DocsDir:    filepath.Join(site, "docs"),
		I18nDir:    filepath.Join(site, "i18n"),
		SourceLang: "en",
	}
	if name := packageName(filepath.Join(site, "package.json")); name != "" {
		p.Name = name
	}
	p.Languages = detectLanguages(p.I18nDir, p.SourceLang)
	return p
}

// Chapters returns the Markdown chapters under DocsDir in path order.
func (p *Project) Chapters() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.DocsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != p.DocsDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsChapterFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IsChapterFile reports whether path is a Markdown chapter.
func IsChapterFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx":
		return true
	}
	return false
}

// TranslationPath returns where the lang translation of a chapter lives:
// i18n/<lang>/docusaurus-plugin-content-docs/current/<path under docs>.
func (p *Project) TranslationPath(chapter, lang string) (string, error) {
	abs, err := filepath.Abs(chapter)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(p.DocsDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Outside docs/: keep the file name only.
		rel = filepath.Base(abs)
	}
	return filepath.Join(p.I18nDir, lang, docsPlugin, "current", rel), nil
}

// ---------------------------------------------------------------------------
// Detection helpers
// ---------------------------------------------------------------------------

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// packageName reads the "name" field of a package.json.
func packageName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	return pkg.Name
}

// isLangCode checks if a string looks like a locale (ur, pt_BR, zh-CN).
func isLangCode(s string) bool {
	lower := func(b byte) bool { return b >= 'a' && b <= 'z' }
	upper := func(b byte) bool { return b >= 'A' && b <= 'Z' }
	switch {
	case len(s) == 2:
		return lower(s[0]) && lower(s[1])
	case len(s) == 5 && (s[2] == '_' || s[2] == '-'):
		return lower(s[0]) && lower(s[1]) && upper(s[3]) && upper(s[4])
	case len(s) == 7 && s[2] == '-':
		// Script subtags: zh-Hans, zh-Hant.
		return lower(s[0]) && lower(s[1]) && upper(s[3])
	}
	return false
}

// detectLanguages finds locale directories under i18nDir.
func detectLanguages(i18nDir, sourceLang string) []string {
	entries, err := os.ReadDir(i18nDir)
	if err != nil {
		return nil
	}
	var langs []string
	for _, entry := range entries {
		lang := entry.Name()
		if !entry.IsDir() || !isLangCode(lang) || lang == sourceLang {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
