package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reply is a decoded translation reply.
type Reply struct {
	TranslatedContent string            `json:"translatedContent" yaml:"translated_content"`
	TechnicalTermsMap map[string]string `json:"technicalTermsMap,omitempty" yaml:"technical_terms_map,omitempty"`
	QualityScore      float64           `json:"qualityScore" yaml:"quality_score"`
	Notes             string            `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ---------------------------------------------------------------------------
// Lenient JSON field types
// ---------------------------------------------------------------------------

// Score is a number in [0,1]. Services asked for "a score from 0 to 1"
// answer with either 0.9 or "0.9"; both decode.
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Score(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("score must be a number, got %s", truncate(string(b), 40))
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("score must be a number, got %q", truncate(str, 40))
	}
	*s = Score(n)
	return nil
}

func (s Score) valid() bool { return s >= 0 && s <= 1 }

// flexText accepts a string or a list of strings (joined by newlines).
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("expected text or list of text, got %s", truncate(string(b), 40))
	}
	*f = flexText(strings.Join(list, "\n"))
	return nil
}

// ---------------------------------------------------------------------------
// Reply parsing
// ---------------------------------------------------------------------------

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractObject strips a markdown fence and cuts the text down to the outer
// JSON object, then repairs stray backslashes.
func extractObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return "", errors.New("no JSON object found in reply")
	}
	return fixInvalidEscapes(content[start : end+1]), nil
}

// parseReply decodes a translation reply. translatedContent and
// qualityScore are required; the score must lie in [0,1].
func parseReply(content string) (*Reply, error) {
	obj, err := extractObject(content)
	if err != nil {
		return nil, err
	}

	var wire struct {
		TranslatedContent *string             `json:"translatedContent"`
		TechnicalTermsMap map[string]flexText `json:"technicalTermsMap"`
		QualityScore      *Score              `json:"qualityScore"`
		Notes             flexText            `json:"notes"`
	}
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	if wire.TranslatedContent == nil {
		return nil, errors.New("reply has no translatedContent")
	}
	if wire.QualityScore == nil {
		return nil, errors.New("reply has no qualityScore")
	}
	if !wire.QualityScore.valid() {
		return nil, fmt.Errorf("qualityScore %v is outside [0,1]", float64(*wire.QualityScore))
	}

	r := &Reply{
		TranslatedContent: *wire.TranslatedContent,
		QualityScore:      float64(*wire.QualityScore),
		Notes:             string(wire.Notes),
	}
	if len(wire.TechnicalTermsMap) > 0 {
		r.TechnicalTermsMap = make(map[string]string, len(wire.TechnicalTermsMap))
		for k, v := range wire.TechnicalTermsMap {
			r.TechnicalTermsMap[k] = string(v)
		}
	}
	return r, nil
}

// fixInvalidEscapes doubles backslashes that do not start a valid JSON
// escape inside string values. Models regularly return LaTeX-like text such
// as \alpha or \( without escaping the backslash.
func fixInvalidEscapes(jsonContent string) string {
	var fixed strings.Builder
	fixed.Grow(len(jsonContent))
	inQuote := false
	escaped := false

	for i := 0; i < len(jsonContent); i++ {
		c := jsonContent[i]

		if c == '"' && !escaped {
			inQuote = !inQuote
			fixed.WriteByte(c)
			continue
		}

		if inQuote && c == '\\' && !escaped {
			if i+1 < len(jsonContent) {
				switch jsonContent[i+1] {
				case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
					fixed.WriteByte(c)
					escaped = true
					continue
				}
			}
			fixed.WriteString(`\\`)
			continue
		}

		fixed.WriteByte(c)
		escaped = false
	}

	return fixed.String()
}

// truncate shortens s to maxLen bytes for error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
