// Package translate turns one piece of educational markup into its
// translation while keeping code, equations, images and diagrams intact.
//
// The work for a single field is: protect spans, look up dictionary terms,
// optionally pre-substitute those terms between the tokens, ask the
// generation service for a translation, and restore the spans. Chapter-level
// orchestration lives in package chapter.
package translate

import (
	"context"
	"fmt"
)

// GenerateOptions are the sampling knobs passed to a Generator.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Generator is a text-generation service. Implementations live in package
// provider; tests use fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// ContentType tells the service what kind of text it is translating.
type ContentType string

const (
	ContentProse   ContentType = "prose"
	ContentTitle   ContentType = "title"
	ContentComment ContentType = "comment"
	ContentCaption ContentType = "caption"
)

// ParseContentType validates a content type name.
func ParseContentType(s string) (ContentType, error) {
	switch ct := ContentType(s); ct {
	case ContentProse, ContentTitle, ContentComment, ContentCaption:
		return ct, nil
	case "":
		return ContentProse, nil
	default:
		return "", fmt.Errorf("unknown content type %q (want prose, title, comment or caption)", s)
	}
}
