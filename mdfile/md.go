// Package mdfile reads and writes textbook chapters stored as Markdown.
//
// A chapter file is a YAML front matter block followed by the Markdown body:
//
//	---
//	title: Sensors and Actuators
//	sidebar_position: 3
//	learning_objectives:
//	  - Explain what a sensor does
//	diagrams:
//	  - src: img/loop.svg
//	    description: Feedback loop
//	code_examples:
//	  - language: python
//	    code: |
//	      # read one sample
//	      value = sensor.read()
//	---
//
//	# Sensors
//	...
//
// The body becomes the chapter content. Front matter keys the chapter model
// does not know about (sidebar_position, slug, tags) are carried through
// untouched, and translated values are written back into the parsed YAML
// nodes so quoting and block styles survive the round trip.
package mdfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MubasharaShauket/My-Panaversity-Book/chapter"
)

// Front matter keys mapped onto the chapter record.
const (
	KeyTitle        = "title"
	KeyObjectives   = "learning_objectives"
	KeyDiagrams     = "diagrams"
	KeyCodeExamples = "code_examples"
	KeyLanguage     = "language"
)

// File is a parsed chapter file.
type File struct {
	// doc is the front matter document node, nil when the file has none.
	doc  *yaml.Node
	body string
}

// frontmatterBlock matches a YAML front matter block at the start of the file.
var frontmatterBlock = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|$)`)

// ParseFile reads and parses a chapter file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Parse splits data into front matter and body.
func Parse(data []byte) (*File, error) {
	text := string(data)
	f := &File{}

	m := frontmatterBlock.FindStringSubmatchIndex(text)
	if m == nil {
		f.body = text
		return f, nil
	}
	raw := text[m[2]:m[3]]
	f.body = strings.TrimLeft(text[m[1]:], "\r\n")

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}
	switch {
	case len(doc.Content) == 0:
		// Empty front matter block.
	case doc.Content[0].Kind != yaml.MappingNode:
		return nil, fmt.Errorf("front matter must be a mapping")
	default:
		f.doc = &doc
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Querying
// ---------------------------------------------------------------------------

// Body returns the Markdown after the front matter.
func (f *File) Body() string { return f.body }

// Frontmatter returns the scalar value stored under key.
func (f *File) Frontmatter(key string) (string, bool) {
	n := f.value(key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// Keys returns the front matter keys in document order.
func (f *File) Keys() []string {
	root := f.root()
	if root == nil {
		return nil
	}
	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys
}

// Record converts the file into a chapter record.
func (f *File) Record() (*chapter.Record, error) {
	rec := &chapter.Record{Content: f.body}
	rec.Title, _ = f.Frontmatter(KeyTitle)
	rec.OriginalLanguage, _ = f.Frontmatter(KeyLanguage)

	if n := f.value(KeyObjectives); n != nil {
		if err := n.Decode(&rec.LearningObjectives); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyObjectives, err)
		}
	}
	if n := f.value(KeyDiagrams); n != nil {
		if err := n.Decode(&rec.Diagrams); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyDiagrams, err)
		}
	}
	if n := f.value(KeyCodeExamples); n != nil {
		if err := n.Decode(&rec.CodeExamples); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyCodeExamples, err)
		}
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Applying translations
// ---------------------------------------------------------------------------

// Apply writes the translatable fields of rec back into the file. rec must
// have the shape of the record this file produced.
func (f *File) Apply(rec *chapter.Record) error {
	f.body = rec.Content

	if rec.Title != "" || f.value(KeyTitle) != nil {
		f.setScalar(KeyTitle, rec.Title)
	}
	if rec.TargetLanguage != "" {
		f.setScalar(KeyLanguage, rec.TargetLanguage)
	}

	if n := f.value(KeyObjectives); n != nil {
		if n.Kind != yaml.SequenceNode || len(n.Content) != len(rec.LearningObjectives) {
			return fmt.Errorf("%s: file has a different shape than the record", KeyObjectives)
		}
		for i, item := range n.Content {
			setText(item, rec.LearningObjectives[i])
		}
	} else if len(rec.LearningObjectives) > 0 {
		return fmt.Errorf("%s: file has none, record has %d", KeyObjectives, len(rec.LearningObjectives))
	}

	diagrams, err := f.items(KeyDiagrams, len(rec.Diagrams))
	if err != nil {
		return err
	}
	for i, item := range diagrams {
		if d := rec.Diagrams[i].Description; d != nil {
			setMapScalar(item, "description", *d)
		}
	}

	examples, err := f.items(KeyCodeExamples, len(rec.CodeExamples))
	if err != nil {
		return err
	}
	for i, item := range examples {
		setMapScalar(item, "code", rec.CodeExamples[i].Code)
	}
	return nil
}

// items returns the mapping nodes of a list key and checks their count.
func (f *File) items(key string, want int) ([]*yaml.Node, error) {
	n := f.value(key)
	if n == nil {
		if want > 0 {
			return nil, fmt.Errorf("%s: file has none, record has %d", key, want)
		}
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode || len(n.Content) != want {
		return nil, fmt.Errorf("%s: file has a different shape than the record", key)
	}
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s: every entry must be a mapping", key)
		}
	}
	return n.Content, nil
}

// ---------------------------------------------------------------------------
// Marshaling
// ---------------------------------------------------------------------------

// Marshal serialises the file back to Markdown.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	if root := f.root(); root != nil && len(root.Content) > 0 {
		var fm bytes.Buffer
		enc := yaml.NewEncoder(&fm)
		enc.SetIndent(2)
		if err := enc.Encode(f.doc); err != nil {
			return nil, fmt.Errorf("marshaling front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("marshaling front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.WriteString(strings.TrimSpace(strings.TrimPrefix(fm.String(), "---")))
		buf.WriteString("\n---\n\n")
	}

	buf.WriteString(strings.TrimRight(f.body, "\n"))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile serialises the file and writes it to the given path.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling Markdown: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// YAML node helpers
// ---------------------------------------------------------------------------

func (f *File) root() *yaml.Node {
	if f.doc == nil || len(f.doc.Content) == 0 {
		return nil
	}
	return f.doc.Content[0]
}

func (f *File) value(key string) *yaml.Node {
	return mapValue(f.root(), key)
}

// setScalar sets a top-level key, creating the front matter if needed.
func (f *File) setScalar(key, value string) {
	if f.root() == nil {
		f.doc = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	setMapScalar(f.root(), key, value)
}

func mapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMapScalar(m *yaml.Node, key, value string) {
	if n := mapValue(m, key); n != nil {
		setText(n, value)
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

// setText replaces a node with a string scalar, keeping its style when it
// was already a scalar.
func setText(n *yaml.Node, value string) {
	if n.Kind != yaml.ScalarNode {
		*n = yaml.Node{Kind: yaml.ScalarNode}
	}
	n.Tag = "!!str"
	n.Value = value
	// Multi-line text in a plain or quoted scalar reads better as a block.
	if strings.Contains(value, "\n") && n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
		n.Style = yaml.LiteralStyle
	}
}
