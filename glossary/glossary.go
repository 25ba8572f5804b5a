// Package glossary holds the bilingual terminology dictionary used to keep
// domain vocabulary consistent across a translated textbook.
//
// A Dictionary is built once, never mutated afterwards and safe to share
// between goroutines. Terms match whole words only, ignoring case, and the
// longest term wins when several could match at the same position, so
// "sim-to-real transfer" is never split into "transfer".
package glossary

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Entry is one dictionary term.
type Entry struct {
	Source     string `yaml:"source" json:"sourceTerm"`
	Target     string `yaml:"target" json:"targetTerm"`
	Definition string `yaml:"definition,omitempty" json:"definition,omitempty"`
	Context    string `yaml:"context,omitempty" json:"context,omitempty"`
}

// Usage reports how a term was used in a source/target pair.
type Usage struct {
	Entry
	// Occurrences counts matches of the source term in the source text.
	Occurrences int `json:"occurrences"`
	// InTarget is true when the target term shows up in the translated text.
	InTarget bool `json:"inTarget"`
}

// Dictionary is an immutable term table.
type Dictionary struct {
	sourceLang string
	targetLang string
	entries    []Entry        // longest source term first
	byKey      map[string]int // folded key -> index into entries
	pattern    *regexp.Regexp // nil when the dictionary is empty
}

// New builds a dictionary from entries. Source terms must be unique when
// compared case-insensitively.
func New(sourceLang, targetLang string, entries []Entry) (*Dictionary, error) {
	d := &Dictionary{
		sourceLang: sourceLang,
		targetLang: targetLang,
		byKey:      make(map[string]int, len(entries)),
	}

	sorted := make([]Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		e.Source = strings.TrimSpace(e.Source)
		e.Target = strings.TrimSpace(e.Target)
		if e.Source == "" {
			return nil, &LookupError{Reason: "term #" + strconv.Itoa(i+1) + " has no source text"}
		}
		if e.Target == "" {
			return nil, &LookupError{Term: e.Source, Reason: "missing target text"}
		}
		k := key(e.Source)
		if seen[k] {
			return nil, &LookupError{Term: e.Source, Reason: "duplicate term"}
		}
		seen[k] = true
		sorted = append(sorted, e)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i].Source), utf8.RuneCountInString(sorted[j].Source)
		if li != lj {
			return li > lj
		}
		return sorted[i].Source < sorted[j].Source
	})
	d.entries = sorted
	for i, e := range sorted {
		d.byKey[key(e.Source)] = i
	}

	if len(sorted) > 0 {
		alts := make([]string, len(sorted))
		for i, e := range sorted {
			alts[i] = termPattern(e.Source)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, &LookupError{Reason: "building term pattern", Err: err}
		}
		d.pattern = re
	}
	return d, nil
}

// termPattern quotes a term and lets its inner spaces match any run of
// whitespace, so a term wrapped across lines still matches.
func termPattern(term string) string {
	words := strings.Fields(term)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s+`)
}

// key folds a term for case-insensitive lookup. A new Caser is taken per
// call because Casers carry state.
func key(term string) string {
	return cases.Fold().String(strings.Join(strings.Fields(term), " "))
}

// SourceLanguage returns the language code of the source terms.
func (d *Dictionary) SourceLanguage() string { return d.sourceLang }

// TargetLanguage returns the language code of the target terms.
func (d *Dictionary) TargetLanguage() string { return d.targetLang }

// Len returns the number of terms.
func (d *Dictionary) Len() int { return len(d.entries) }

// Entries returns a copy of all terms, longest first.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lookup finds a term regardless of case.
func (d *Dictionary) Lookup(term string) (Entry, bool) {
	i, ok := d.byKey[key(term)]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Substitute replaces every whole-word occurrence of a source term with its
// target term and reports how many replacements were made.
func (d *Dictionary) Substitute(text string) (string, int) {
	if d.pattern == nil {
		return text, 0
	}
	n := 0
	out := d.pattern.ReplaceAllStringFunc(text, func(m string) string {
		e, ok := d.Lookup(m)
		if !ok {
			return m
		}
		n++
		return e.Target
	})
	return out, n
}

// Find lists the terms occurring in text, in order of first occurrence.
func (d *Dictionary) Find(text string) []Entry {
	if d.pattern == nil {
		return nil
	}
	var out []Entry
	seen := make(map[string]bool)
	for _, m := range d.pattern.FindAllString(text, -1) {
		k := key(m)
		if seen[k] {
			continue
		}
		if e, ok := d.Lookup(m); ok {
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}

// Reconcile reports, for every term found in source, how often it occurs
// there and whether its target term appears in the translated text.
func (d *Dictionary) Reconcile(source, target string) []Usage {
	if d.pattern == nil {
		return nil
	}
	counts := make(map[string]int)
	var order []Entry
	for _, m := range d.pattern.FindAllString(source, -1) {
		e, ok := d.Lookup(m)
		if !ok {
			continue
		}
		k := key(e.Source)
		if counts[k] == 0 {
			order = append(order, e)
		}
		counts[k]++
	}

	out := make([]Usage, 0, len(order))
	for _, e := range order {
		out = append(out, Usage{
			Entry:       e,
			Occurrences: counts[key(e.Source)],
			InTarget:    strings.Contains(target, e.Target),
		})
	}
	return out
}
