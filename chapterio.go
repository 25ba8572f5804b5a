package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MubasharaShauket/My-Panaversity-Book/chapter"
	"github.com/MubasharaShauket/My-Panaversity-Book/config"
	"github.com/MubasharaShauket/My-Panaversity-Book/mdfile"
)

// Chapter file formats.
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// chapterFormat picks the format from the file extension.
func chapterFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".md", ".mdx":
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("%s: unsupported chapter format (want .json, .yaml, .yml, .md or .mdx)", path)
}

// chapterFile is a chapter loaded from disk. Markdown chapters keep their
// parsed document so translated fields can be written back in place.
type chapterFile struct {
	path   string
	format string
	record *chapter.Record
	md     *mdfile.File
}

func loadChapter(path string) (*chapterFile, error) {
	format, err := chapterFormat(path)
	if err != nil {
		return nil, err
	}
	cf := &chapterFile{path: path, format: format}

	switch format {
	case formatMarkdown:
		cf.md, err = mdfile.ParseFile(path)
		if err != nil {
			return nil, err
		}
		cf.record, err = cf.md.Record()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var rec chapter.Record
		if format == formatJSON {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			err = dec.Decode(&rec)
		} else {
			err = yaml.Unmarshal(data, &rec)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cf.record = &rec
	}
	return cf, nil
}

// write stores rec at path in the file's own format.
func (cf *chapterFile) write(path string, rec *chapter.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	switch cf.format {
	case formatMarkdown:
		if err := cf.md.Apply(rec); err != nil {
			return err
		}
		return cf.md.WriteFile(path)

	case formatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		return os.WriteFile(path, buf.Bytes(), 0644)

	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0644)
	}
}

// outputPath is where the lang translation of a chapter goes: the
// Docusaurus i18n tree for Markdown chapters under docs/, otherwise next to
// the source as name.<lang>.ext.
func outputPath(proj *config.Project, source, lang string) (string, error) {
	if format, _ := chapterFormat(source); format == formatMarkdown && proj != nil {
		abs, err := filepath.Abs(source)
		if err != nil {
			return "", err
		}
		if rel, err := filepath.Rel(proj.DocsDir, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return proj.TranslationPath(abs, lang)
		}
	}
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + "." + lang + ext, nil
}

// readText returns the translatable text of path: a chapter's content when
// path is a chapter file, the raw file otherwise.
func readText(path string) (string, error) {
	if _, err := chapterFormat(path); err == nil {
		cf, err := loadChapter(path)
		if err != nil {
			return "", err
		}
		return cf.record.Content, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
