package translate

import (
	"strings"

	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/langmeta"
)

// ---------------------------------------------------------------------------
// Prompt templates
// ---------------------------------------------------------------------------

// DefaultDomain is the subject area named in prompts when none is configured.
const DefaultDomain = "Physical AI and humanoid robotics"

// TranslationPrompt is the instruction sent for every field. The variables
// {{sourceLang}}, {{targetLang}}, {{contentType}}, {{domain}},
// {{contentRule}} and {{glossary}} are filled in by buildPrompt; the text to
// translate is appended after the template.
const TranslationPrompt = `You are an academic translator preparing a university-level {{domain}} textbook.

Translate the content below from {{sourceLang}} to {{targetLang}}.

Content type: {{contentType}}

REQUIREMENTS:
1. Maintain an academic tone appropriate for a university-level textbook
2. Preserve the technical accuracy of {{domain}} concepts
3. Use established {{targetLang}} terminology for technical concepts
4. Ensure cultural appropriateness for a {{targetLang}}-speaking audience
5. Preserve the meaning and nuance of the original content
6. {{contentRule}}

PLACEHOLDERS:
- Tokens such as {{CODE_0}}, {{EQUATION_1}}, {{IMAGE_0}} and {{DIAGRAM_0}} stand for code, equations, images and diagrams.
- Copy every token exactly as written, keep each one exactly once, and place it where the translated sentence needs it.
- Never translate, split, reformat or remove a token.

TERMINOLOGY:
- For technical terms that don't have a direct {{targetLang}} equivalent, keep the English term and add the transliteration in parentheses after it (e.g., "Sensor (سینسر)").
{{glossary}}
Reply with ONLY a JSON object, no explanations or markdown code blocks:
{
  "translatedContent": "the translated content",
  "technicalTermsMap": {"original term": "translation"},
  "qualityScore": 0.0,
  "notes": "any important notes about the translation"
}
qualityScore is a number from 0 to 1 indicating translation quality.`

// ReviewPrompt asks the service to grade an existing translation.
const ReviewPrompt = `Evaluate the quality of the following translation from {{sourceLang}} to {{targetLang}}.

Assess on the following criteria:
1. Accuracy: Does the translation accurately convey the original meaning?
2. Fluency: Is the {{targetLang}} translation grammatically correct and fluent?
3. Technical Precision: Are technical terms correctly translated or appropriately handled?
4. Cultural Appropriateness: Is the content culturally appropriate for {{targetLang}} speakers?

Give each criterion a score from 0 to 1 and provide specific feedback.

Reply with ONLY a JSON object, no explanations or markdown code blocks:
{
  "accuracyScore": 0.0,
  "fluencyScore": 0.0,
  "technicalPrecisionScore": 0.0,
  "culturalAppropriatenessScore": 0.0,
  "overallScore": 0.0,
  "feedback": "specific feedback points",
  "suggestedImprovements": ["improvement1", "improvement2"]
}`

var contentRules = map[ContentType]string{
	ContentProse:   "Keep the markdown structure (headings, lists, emphasis, links, line breaks) intact",
	ContentTitle:   "This is a heading: keep it short and do not add trailing punctuation",
	ContentComment: "This is a source code comment: translate only the words, keep the same number of lines and do not add comment markers",
	ContentCaption: "This is a figure or diagram caption: keep it concise and descriptive",
}

// ---------------------------------------------------------------------------
// Prompt assembly
// ---------------------------------------------------------------------------

type promptVars struct {
	sourceLang  string
	targetLang  string
	contentType ContentType
	domain      string
	terms       []glossary.Entry
}

// buildPrompt fills the template and appends the content. Only the named
// variables are replaced, so placeholder tokens in the template and in the
// content survive untouched.
func buildPrompt(template string, v promptVars, content string) string {
	rule := contentRules[v.contentType]
	if rule == "" {
		rule = contentRules[ContentProse]
	}
	r := strings.NewReplacer(
		"{{sourceLang}}", langmeta.Label(v.sourceLang),
		"{{targetLang}}", langmeta.Resolve(v.targetLang).Name,
		"{{contentType}}", string(v.contentType),
		"{{domain}}", v.domain,
		"{{contentRule}}", rule,
		"{{glossary}}", glossaryHint(v.terms),
	)

	var b strings.Builder
	b.WriteString(r.Replace(template))
	b.WriteString("\n\nCONTENT:\n")
	b.WriteString(content)
	return b.String()
}

// glossaryHint lists the dictionary renderings of terms found in the text.
func glossaryHint(terms []glossary.Entry) string {
	if len(terms) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("- Use these established renderings:\n")
	for _, e := range terms {
		b.WriteString("  - ")
		b.WriteString(e.Source)
		b.WriteString(" => ")
		b.WriteString(e.Target)
		b.WriteByte('\n')
	}
	return b.String()
}

// buildReviewPrompt assembles the review instruction with both texts. An
// empty template selects ReviewPrompt.
func buildReviewPrompt(template, sourceLang, targetLang, original, translated string) string {
	if strings.TrimSpace(template) == "" {
		template = ReviewPrompt
	}
	r := strings.NewReplacer(
		"{{sourceLang}}", langmeta.Resolve(sourceLang).Name,
		"{{targetLang}}", langmeta.Resolve(targetLang).Name,
	)
	var b strings.Builder
	b.WriteString(r.Replace(template))
	b.WriteString("\n\nORIGINAL:\n")
	b.WriteString(original)
	b.WriteString("\n\nTRANSLATION:\n")
	b.WriteString(translated)
	return b.String()
}
