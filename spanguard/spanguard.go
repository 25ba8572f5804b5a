// Package spanguard shields the non-prose regions of educational markup from
// a translation step.
//
// Protect scans a piece of content for code, equations, images and diagram
// containers and replaces every match with an opaque token of the form
// {{CATEGORY_n}}. The stripped text can then be sent to a translation
// service; Restore puts the original bytes back once the translated text
// comes home.
//
// Detection runs one category at a time, against the text produced by the
// previous pass:
//
//   - CODE      <pre>, <code>, fenced blocks (``` and ~~~), inline `code`
//   - EQUATION  $$…$$, \[…\], \(…\), single-line $…$
//   - IMAGE     <img>, markdown ![alt](src)
//   - DIAGRAM   <div class="…diagram…">…</div>
//
// A span tokenized by an earlier pass is invisible to later patterns. When a
// later match encloses earlier tokens (an image inside a diagram container)
// the enclosing span absorbs them, so spans never overlap.
package spanguard

import (
	"fmt"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// Category identifies the kind of region a span protects.
type Category int

const (
	CategoryCode Category = iota
	CategoryEquation
	CategoryImage
	CategoryDiagram
)

// String returns the token prefix for the category.
func (c Category) String() string {
	switch c {
	case CategoryCode:
		return "CODE"
	case CategoryEquation:
		return "EQUATION"
	case CategoryImage:
		return "IMAGE"
	case CategoryDiagram:
		return "DIAGRAM"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Categories lists all categories in detection order.
func Categories() []Category {
	return []Category{CategoryCode, CategoryEquation, CategoryImage, CategoryDiagram}
}

// ---------------------------------------------------------------------------
// Span model
// ---------------------------------------------------------------------------

// ProtectedSpan pairs a token with the text it stands for.
type ProtectedSpan struct {
	// Token is the placeholder written into the stripped text.
	Token string
	// Original is the exact byte sequence the token replaced.
	Original string
	// Category is the detector that produced the span.
	Category Category
}

// Protected is the outcome of one protection pass.
type Protected struct {
	// Text is the input with every protected region replaced by its token.
	Text string
	// Spans are listed in detection order (code, equations, images,
	// diagrams), not document order.
	Spans []ProtectedSpan
}

// Token builds the placeholder for the n-th match of a category.
func Token(c Category, n int) string {
	return fmt.Sprintf("{{%s_%d}}", c, n)
}

// ---------------------------------------------------------------------------
// Detectors
// ---------------------------------------------------------------------------

type detector struct {
	category Category
	pattern  *regexp.Regexp
}

// detectors run in this order; code goes first so that dollar signs and
// angle brackets inside code are never read as math or images.
var detectors = []detector{
	{
		category: CategoryCode,
		pattern: regexp.MustCompile("(?s)<pre\\b[^>]*>.*?</pre>" +
			"|<code\\b[^>]*>.*?</code>" +
			"|```.*?```" +
			"|~~~.*?~~~" +
			"|`[^`\\n]+`"),
	},
	{
		category: CategoryEquation,
		pattern: regexp.MustCompile(`(?s)\$\$.+?\$\$` +
			`|\\\[.+?\\\]` +
			`|\\\(.+?\\\)` +
			`|\$[^\s$](?:[^$\n]*[^\s$])?\$`),
	},
	{
		category: CategoryImage,
		pattern:  regexp.MustCompile(`<img\b[^>]*>|!\[[^\]]*\]\([^)\s]*(?:\s+"[^"]*")?\)`),
	},
	{
		category: CategoryDiagram,
		pattern:  regexp.MustCompile(`(?s)<div\s+class="[^"]*diagram[^"]*"[^>]*>.*?</div>`),
	},
}

// exactToken matches tokens exactly as Protect writes them.
var exactToken = regexp.MustCompile(`\{\{(?:CODE|EQUATION|IMAGE|DIAGRAM)_\d+\}\}`)

// looseToken also accepts whitespace inside the braces, which translation
// services sometimes introduce.
var looseToken = regexp.MustCompile(`\{\{\s*(?:CODE|EQUATION|IMAGE|DIAGRAM)_\d+\s*\}\}`)

// canonical strips any whitespace a token picked up inside its braces.
func canonical(tok string) string {
	inner := strings.TrimSpace(tok[2 : len(tok)-2])
	return "{{" + inner + "}}"
}

// ---------------------------------------------------------------------------
// Protection
// ---------------------------------------------------------------------------

// Protect replaces every protected region in content with a token.
//
// It fails with a *ProtectionError when token-shaped text already present in
// the document would be indistinguishable from a generated token.
func Protect(content string) (*Protected, error) {
	text := content
	var spans []ProtectedSpan
	for _, d := range detectors {
		text, spans = d.apply(text, spans)
	}
	if err := checkCollisions(text, spans); err != nil {
		return nil, err
	}
	return &Protected{Text: text, Spans: spans}, nil
}

// apply runs one detector over text and appends the spans it finds.
func (d detector) apply(text string, spans []ProtectedSpan) (string, []ProtectedSpan) {
	locs := d.pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, spans
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for n, loc := range locs {
		original, absorbed := expandTokens(text[loc[0]:loc[1]], spans)
		if len(absorbed) > 0 {
			spans = dropSpans(spans, absorbed)
		}
		tok := Token(d.category, n)
		b.WriteString(text[prev:loc[0]])
		b.WriteString(tok)
		spans = append(spans, ProtectedSpan{Token: tok, Original: original, Category: d.category})
		prev = loc[1]
	}
	b.WriteString(text[prev:])
	return b.String(), spans
}

// expandTokens resolves tokens from earlier passes that ended up inside a
// new match. It returns the expanded text and the set of absorbed tokens.
func expandTokens(match string, spans []ProtectedSpan) (string, map[string]bool) {
	if len(spans) == 0 || !exactToken.MatchString(match) {
		return match, nil
	}
	index := make(map[string]string, len(spans))
	for _, s := range spans {
		index[s.Token] = s.Original
	}
	absorbed := make(map[string]bool)
	expanded := exactToken.ReplaceAllStringFunc(match, func(tok string) string {
		if orig, ok := index[tok]; ok {
			absorbed[tok] = true
			return orig
		}
		return tok
	})
	return expanded, absorbed
}

func dropSpans(spans []ProtectedSpan, drop map[string]bool) []ProtectedSpan {
	kept := spans[:0:0]
	for _, s := range spans {
		if !drop[s.Token] {
			kept = append(kept, s)
		}
	}
	return kept
}

// checkCollisions verifies that every token-shaped substring in the
// stripped text was written by this pass, exactly once.
func checkCollisions(text string, spans []ProtectedSpan) error {
	owned := make(map[string]bool, len(spans))
	for _, s := range spans {
		owned[s.Token] = true
	}
	seen := make(map[string]int)
	for _, m := range looseToken.FindAllString(text, -1) {
		tok := canonical(m)
		if !owned[tok] {
			return &ProtectionError{Token: tok, Reason: "appears in the document as literal text"}
		}
		seen[tok]++
		if seen[tok] > 1 {
			return &ProtectionError{Token: tok, Reason: "collides with literal text already in the document"}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Text between tokens
// ---------------------------------------------------------------------------

// MapText applies fn to every stretch of text between tokens and leaves the
// tokens themselves untouched.
func MapText(text string, fn func(string) string) string {
	locs := looseToken.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return fn(text)
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			b.WriteString(fn(text[prev:loc[0]]))
		}
		b.WriteString(text[loc[0]:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		b.WriteString(fn(text[prev:]))
	}
	return b.String()
}

// Tokens returns the canonical form of every token-shaped substring in text,
// in document order.
func Tokens(text string) []string {
	matches := looseToken.FindAllString(text, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = canonical(m)
	}
	return out
}
