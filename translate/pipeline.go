package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/spanguard"
)

// Request asks for one field to be translated.
type Request struct {
	SourceLanguage string
	TargetLanguage string
	Content        string
	ContentType    ContentType
	// PreserveTechnicalTerms replaces dictionary terms with their target
	// rendering before the text reaches the service.
	PreserveTechnicalTerms bool
	// Field names the record field, reported in restoration errors.
	Field string
}

func (r Request) validate() error {
	if r.SourceLanguage == "" || r.TargetLanguage == "" {
		return errors.New("source and target language are required")
	}
	if _, err := ParseContentType(string(r.ContentType)); err != nil {
		return err
	}
	return nil
}

// Result is the translated field.
type Result struct {
	TranslatedContent string            `json:"translatedContent"`
	TechnicalTermsMap map[string]string `json:"technicalTermsMap,omitempty"`
	QualityScore      float64           `json:"qualityScore"`
	Notes             string            `json:"notes,omitempty"`
	// Terminology reports the dictionary terms found outside protected
	// spans of the source text.
	Terminology []glossary.Usage `json:"terminology,omitempty"`
	// Substitutions counts pre-translation term replacements.
	Substitutions int  `json:"substitutions,omitempty"`
	Cached        bool `json:"cached,omitempty"`
	// Skipped is set when blank content was returned without a request.
	Skipped bool `json:"skipped,omitempty"`
}

// Prepared is the text handed to the service for one field.
type Prepared struct {
	// Stripped is the content with protected spans tokenized.
	Stripped string
	// Text is Stripped after term substitution (equal to Stripped when terms
	// are not preserved).
	Text          string
	Spans         []spanguard.ProtectedSpan
	Terms         []glossary.Entry
	Substitutions int
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline runs protect, substitute, request and restore for single fields.
// It holds no per-call state and may be shared between goroutines.
type Pipeline struct {
	requestor *Requestor
	dict      *glossary.Dictionary
}

// NewPipeline builds a pipeline. dict may be nil to disable terminology.
func NewPipeline(requestor *Requestor, dict *glossary.Dictionary) *Pipeline {
	return &Pipeline{requestor: requestor, dict: dict}
}

// Dictionary returns the pipeline's dictionary, possibly nil.
func (p *Pipeline) Dictionary() *glossary.Dictionary { return p.dict }

// Prepare protects spans and, in preserve mode, substitutes dictionary terms
// in the text between tokens. Substitution never runs before protection, so
// code and equations are never touched.
func (p *Pipeline) Prepare(req Request) (*Prepared, error) {
	protected, err := spanguard.Protect(req.Content)
	if err != nil {
		return nil, err
	}
	prep := &Prepared{
		Stripped: protected.Text,
		Text:     protected.Text,
		Spans:    protected.Spans,
	}
	if p.dict == nil {
		return prep, nil
	}

	// Tokens are followed by an underscore and a digit, so no whole-word
	// term can match inside one.
	prep.Terms = p.dict.Find(protected.Text)
	if req.PreserveTechnicalTerms {
		prep.Text = spanguard.MapText(protected.Text, func(s string) string {
			out, n := p.dict.Substitute(s)
			prep.Substitutions += n
			return out
		})
	}
	return prep, nil
}

// Translate runs the full per-field pipeline.
func (p *Pipeline) Translate(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.ContentType == "" {
		req.ContentType = ContentProse
	}
	if strings.TrimSpace(req.Content) == "" {
		return &Result{TranslatedContent: req.Content, QualityScore: 1, Skipped: true}, nil
	}

	prep, err := p.Prepare(req)
	if err != nil {
		return nil, err
	}

	reply, cached, err := p.requestor.Request(ctx, Call{
		Text:           prep.Text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		ContentType:    req.ContentType,
		Terms:          prep.Terms,
	})
	if err != nil {
		return nil, err
	}

	restored, err := spanguard.RestoreVerified(reply.TranslatedContent, prep.Spans)
	if err != nil {
		var re *spanguard.RestorationError
		if errors.As(err, &re) {
			re.Field = req.Field
		}
		return nil, err
	}

	res := &Result{
		TranslatedContent: restored,
		TechnicalTermsMap: reply.TechnicalTermsMap,
		QualityScore:      reply.QualityScore,
		Notes:             reply.Notes,
		Substitutions:     prep.Substitutions,
		Cached:            cached,
	}
	if p.dict != nil {
		res.Terminology = p.dict.Reconcile(prep.Stripped, restored)
	}
	return res, nil
}
