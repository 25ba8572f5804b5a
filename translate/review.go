package translate

import (
	"context"
	"encoding/json"
	"fmt"
)

// Assessment is the service's grading of a translation.
type Assessment struct {
	Accuracy                float64  `json:"accuracyScore"`
	Fluency                 float64  `json:"fluencyScore"`
	TechnicalPrecision      float64  `json:"technicalPrecisionScore"`
	CulturalAppropriateness float64  `json:"culturalAppropriatenessScore"`
	Overall                 float64  `json:"overallScore"`
	Feedback                string   `json:"feedback,omitempty"`
	SuggestedImprovements   []string `json:"suggestedImprovements,omitempty"`
}

// Reviewer asks the generation service to grade finished translations.
type Reviewer struct {
	gen Generator
	// Prompt overrides ReviewPrompt.
	Prompt string
}

// NewReviewer returns a reviewer backed by gen.
func NewReviewer(gen Generator) *Reviewer {
	return &Reviewer{gen: gen}
}

// Review grades translated against original. Failures are *ServiceError.
func (r *Reviewer) Review(ctx context.Context, sourceLang, targetLang, original, translated string) (*Assessment, error) {
	prompt := buildReviewPrompt(r.Prompt, sourceLang, targetLang, original, translated)
	raw, err := r.gen.Generate(ctx, prompt, GenerateOptions{MaxTokens: 800, Temperature: 0.2})
	if err != nil {
		return nil, &ServiceError{Op: "review", Err: err}
	}
	a, err := parseAssessment(raw)
	if err != nil {
		return nil, &ServiceError{Op: "review", Reply: raw, Err: err}
	}
	return a, nil
}

func parseAssessment(content string) (*Assessment, error) {
	obj, err := extractObject(content)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Accuracy                *Score     `json:"accuracyScore"`
		Fluency                 *Score     `json:"fluencyScore"`
		TechnicalPrecision      *Score     `json:"technicalPrecisionScore"`
		CulturalAppropriateness *Score     `json:"culturalAppropriatenessScore"`
		Overall                 *Score     `json:"overallScore"`
		Feedback                flexText   `json:"feedback"`
		SuggestedImprovements   []flexText `json:"suggestedImprovements"`
	}
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, fmt.Errorf("decoding assessment: %w", err)
	}

	scores := []struct {
		name string
		s    *Score
	}{
		{"accuracyScore", wire.Accuracy},
		{"fluencyScore", wire.Fluency},
		{"technicalPrecisionScore", wire.TechnicalPrecision},
		{"culturalAppropriatenessScore", wire.CulturalAppropriateness},
	}
	var sum float64
	for _, sc := range scores {
		if sc.s == nil {
			return nil, fmt.Errorf("assessment has no %s", sc.name)
		}
		if !sc.s.valid() {
			return nil, fmt.Errorf("%s %v is outside [0,1]", sc.name, float64(*sc.s))
		}
		sum += float64(*sc.s)
	}

	a := &Assessment{
		Accuracy:                float64(*wire.Accuracy),
		Fluency:                 float64(*wire.Fluency),
		TechnicalPrecision:      float64(*wire.TechnicalPrecision),
		CulturalAppropriateness: float64(*wire.CulturalAppropriateness),
		Feedback:                string(wire.Feedback),
	}
	// Without an overall score, fall back to the mean of the four criteria.
	switch {
	case wire.Overall == nil:
		a.Overall = sum / float64(len(scores))
	case !wire.Overall.valid():
		return nil, fmt.Errorf("overallScore %v is outside [0,1]", float64(*wire.Overall))
	default:
		a.Overall = float64(*wire.Overall)
	}
	for _, s := range wire.SuggestedImprovements {
		if s != "" {
			a.SuggestedImprovements = append(a.SuggestedImprovements, string(s))
		}
	}
	return a, nil
}
