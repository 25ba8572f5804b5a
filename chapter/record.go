package chapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is a structured textbook chapter. The JSON and YAML field names
// match the records produced by the book site.
type Record struct {
	Title              string          `json:"title" yaml:"title"`
	Content            string          `json:"content" yaml:"content"`
	LearningObjectives []string        `json:"learningObjectives" yaml:"learningObjectives"`
	Diagrams           []Diagram       `json:"diagrams" yaml:"diagrams"`
	CodeExamples       []CodeExample   `json:"codeExamples" yaml:"codeExamples"`
	OriginalLanguage   string          `json:"originalLanguage,omitempty" yaml:"originalLanguage,omitempty"`
	TargetLanguage     string          `json:"targetLanguage,omitempty" yaml:"targetLanguage,omitempty"`
	QualityMetrics     *QualityMetrics `json:"qualityMetrics,omitempty" yaml:"qualityMetrics,omitempty"`
}

// QualityMetrics summarizes a translated chapter.
type QualityMetrics struct {
	TitleQuality   float64 `json:"titleQuality" yaml:"titleQuality"`
	ContentQuality float64 `json:"contentQuality" yaml:"contentQuality"`
	// Composite is the mean of TitleQuality and ContentQuality over the
	// fields that were translated. A failed field or a blank one (which
	// scores 1 without a request) is left out; 0 when neither counts. It is
	// a convenience figure, not a statistically meaningful aggregate.
	Composite float64 `json:"composite" yaml:"composite"`
	// Failures lists fields left untranslated in partial-success mode.
	Failures []FieldFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// FieldFailure records why a field kept its source text.
type FieldFailure struct {
	Field string `json:"field" yaml:"field"`
	Error string `json:"error" yaml:"error"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	// nil and empty lists stay distinct so the output keeps the input's shape.
	if r.LearningObjectives != nil {
		out.LearningObjectives = append([]string{}, r.LearningObjectives...)
	}
	if r.Diagrams != nil {
		out.Diagrams = make([]Diagram, len(r.Diagrams))
		for i, d := range r.Diagrams {
			out.Diagrams[i] = d.clone()
		}
	}
	if r.CodeExamples != nil {
		out.CodeExamples = make([]CodeExample, len(r.CodeExamples))
		for i, c := range r.CodeExamples {
			out.CodeExamples[i] = c.clone()
		}
	}
	if r.QualityMetrics != nil {
		qm := *r.QualityMetrics
		qm.Failures = append([]FieldFailure(nil), r.QualityMetrics.Failures...)
		out.QualityMetrics = &qm
	}
	return &out
}

// ---------------------------------------------------------------------------
// Diagram
// ---------------------------------------------------------------------------

// Diagram is a figure attached to a chapter. Only Description is
// translated; every other field is carried through unchanged.
type Diagram struct {
	// Description is nil when the diagram has none.
	Description *string
	Extra       map[string]any
}

func (d Diagram) clone() Diagram {
	out := Diagram{Extra: d.Extra}
	if d.Description != nil {
		s := *d.Description
		out.Description = &s
	}
	return out
}

func (d Diagram) fields() map[string]any {
	out := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.Description != nil {
		out["description"] = *d.Description
	}
	return out
}

func (d *Diagram) assign(raw map[string]any) error {
	d.Description, d.Extra = nil, nil
	if v, ok := raw["description"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return errors.New("diagram description must be text")
		}
		d.Description = &s
		delete(raw, "description")
	}
	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}

func (d Diagram) MarshalJSON() ([]byte, error) { return json.Marshal(d.fields()) }

func (d *Diagram) UnmarshalJSON(b []byte) error {
	raw, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("diagram: %w", err)
	}
	return d.assign(raw)
}

func (d Diagram) MarshalYAML() (interface{}, error) { return d.fields(), nil }

func (d *Diagram) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("diagram: %w", err)
	}
	return d.assign(raw)
}

// ---------------------------------------------------------------------------
// Code example
// ---------------------------------------------------------------------------

// CodeExample is a code listing. Only the text of its comments is
// translated; the code itself and all other fields are kept verbatim.
type CodeExample struct {
	Code  string
	Extra map[string]any
}

// Language returns the lower-cased "language" field, or "".
func (c CodeExample) Language() string {
	if s, ok := c.Extra["language"].(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return ""
}

func (c CodeExample) clone() CodeExample { return CodeExample{Code: c.Code, Extra: c.Extra} }

func (c CodeExample) fields() map[string]any {
	out := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["code"] = c.Code
	return out
}

func (c *CodeExample) assign(raw map[string]any) error {
	v, ok := raw["code"]
	if !ok {
		return errors.New("code example has no code field")
	}
	s, ok := v.(string)
	if !ok {
		return errors.New("code example code must be text")
	}
	delete(raw, "code")
	c.Code, c.Extra = s, nil
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

func (c CodeExample) MarshalJSON() ([]byte, error) { return json.Marshal(c.fields()) }

func (c *CodeExample) UnmarshalJSON(b []byte) error {
	raw, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("code example: %w", err)
	}
	return c.assign(raw)
}

func (c CodeExample) MarshalYAML() (interface{}, error) { return c.fields(), nil }

func (c *CodeExample) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("code example: %w", err)
	}
	return c.assign(raw)
}

// decodeObject decodes a JSON object keeping numbers exactly as written.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected an object")
	}
	return raw, nil
}
