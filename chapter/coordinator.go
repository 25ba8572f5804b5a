// Package chapter translates structured textbook chapters field by field.
//
// A chapter is split into an ordered list of independent field tasks
// (title, each learning objective, the body, each diagram description and
// each code comment). Tasks run one at a time by default or concurrently
// with a bound; either way results are slotted back in the fixed field
// order, so the translated record always has the shape of the input.
package chapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// FieldTranslator translates a single field. *translate.Pipeline
// implements it.
type FieldTranslator interface {
	Translate(ctx context.Context, req translate.Request) (*translate.Result, error)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a chapter run.
type Options struct {
	// SourceLanguage defaults to the record's OriginalLanguage, then "en".
	SourceLanguage string
	// TargetLanguage defaults to "ur".
	TargetLanguage string
	// PreserveTechnicalTerms pre-substitutes dictionary terms.
	PreserveTechnicalTerms bool
	// PartialSuccess keeps going when a field fails: the field keeps its
	// source text and is listed in QualityMetrics.Failures. The default is
	// fail-fast: the first failure aborts the chapter and nothing is
	// returned.
	PartialSuccess bool
	// MaxConcurrent bounds parallel field translation. 0 or 1 translates
	// fields one at a time.
	MaxConcurrent int
	// OnProgress is called after each field finishes. Calls are serialized
	// and done increases by one each time.
	OnProgress func(done, total int)
	// Logger receives per-field log lines. Default: discard.
	Logger *logger.Logger
}

func (o *Options) effectiveSource(rec *Record) string {
	if o.SourceLanguage != "" {
		return o.SourceLanguage
	}
	if rec.OriginalLanguage != "" {
		return rec.OriginalLanguage
	}
	return "en"
}

func (o *Options) effectiveTarget() string {
	if o.TargetLanguage != "" {
		return o.TargetLanguage
	}
	return "ur"
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 1 {
		return o.MaxConcurrent
	}
	return 1
}

func (o *Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Nop()
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

// Report is the full outcome of a chapter run.
type Report struct {
	RequestID string
	Record    *Record
	// Fields lists every translated field in field order.
	Fields []FieldReport
	// Terminology merges the dictionary usage of all fields.
	Terminology []glossary.Usage
}

// FieldReport describes one translated field.
type FieldReport struct {
	Field        string
	QualityScore float64
	Notes        string
	Cached       bool
	// Skipped is set for blank fields that were not sent for translation.
	Skipped bool
	Err     error
}

// ---------------------------------------------------------------------------
// Coordinator
// ---------------------------------------------------------------------------

// Coordinator applies a FieldTranslator to whole chapters.
type Coordinator struct {
	fields FieldTranslator
	opts   Options
}

// NewCoordinator returns a coordinator.
func NewCoordinator(fields FieldTranslator, opts Options) *Coordinator {
	return &Coordinator{fields: fields, opts: opts}
}

// TranslateChapter returns the translated copy of rec. rec is not modified.
func (c *Coordinator) TranslateChapter(ctx context.Context, rec *Record) (*Record, error) {
	rep, err := c.Run(ctx, rec)
	if err != nil {
		return nil, err
	}
	return rep.Record, nil
}

// task is one field translation.
type task struct {
	field string
	text  string
	ct    translate.ContentType
}

type outcome struct {
	res *translate.Result
	err error
}

// Run translates rec and reports per-field details.
func (c *Coordinator) Run(ctx context.Context, rec *Record) (*Report, error) {
	requestID := uuid.NewString()
	log := c.opts.logger().With("request_id", requestID)
	src, tgt := c.opts.effectiveSource(rec), c.opts.effectiveTarget()

	tasks, comments := plan(rec)
	log.Info("translating chapter", "title", rec.Title, "fields", len(tasks), "source", src, "target", tgt)
	start := time.Now()

	results := make([]outcome, len(tasks))
	var (
		mu   sync.Mutex
		done int
	)
	runTask := func(ctx context.Context, i int) error {
		t := tasks[i]
		res, err := c.fields.Translate(ctx, translate.Request{
			SourceLanguage:         src,
			TargetLanguage:         tgt,
			Content:                t.text,
			ContentType:            t.ct,
			PreserveTechnicalTerms: c.opts.PreserveTechnicalTerms,
			Field:                  t.field,
		})
		results[i] = outcome{res: res, err: err}

		mu.Lock()
		done++
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(done, len(tasks))
		}
		mu.Unlock()

		if err != nil {
			log.Warn("field translation failed", "field", t.field, "error", err)
			if !c.opts.PartialSuccess {
				return fmt.Errorf("translating %s: %w", t.field, err)
			}
			return nil
		}
		log.Debug("field translated", "field", t.field, "quality", res.QualityScore, "cached", res.Cached)
		return nil
	}

	if err := c.execute(ctx, len(tasks), runTask); err != nil {
		log.Error("chapter translation aborted", "error", err)
		return nil, err
	}

	rep := assemble(rec, tasks, comments, results, src, tgt)
	rep.RequestID = requestID
	log.Info("chapter translated",
		"elapsed", time.Since(start).String(),
		"composite", rep.Record.QualityMetrics.Composite,
		"failures", len(rep.Record.QualityMetrics.Failures))
	return rep, nil
}

// execute runs n tasks sequentially or with bounded concurrency. In
// fail-fast mode the first error cancels the remaining tasks.
func (c *Coordinator) execute(ctx context.Context, n int, fn func(context.Context, int) error) error {
	limit := c.opts.effectiveMaxConcurrent()
	if limit == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// ---------------------------------------------------------------------------
// Planning and assembly
// ---------------------------------------------------------------------------

// codeComments remembers which tasks belong to which code example.
type codeComments struct {
	example  int
	comments []comment
	tasks    []int // task index per comment, -1 when not translated
}

// Fields lists the fields a run over rec translates, in translation order.
func Fields(rec *Record) []string {
	tasks, _ := plan(rec)
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.field
	}
	return out
}

// plan lists field tasks in the fixed order: title, objectives, content,
// diagram descriptions, code comments.
func plan(rec *Record) ([]task, []codeComments) {
	var tasks []task
	tasks = append(tasks, task{field: "title", text: rec.Title, ct: translate.ContentTitle})
	for i, obj := range rec.LearningObjectives {
		tasks = append(tasks, task{field: fmt.Sprintf("learningObjectives[%d]", i), text: obj, ct: translate.ContentProse})
	}
	tasks = append(tasks, task{field: "content", text: rec.Content, ct: translate.ContentProse})
	for i, d := range rec.Diagrams {
		if d.Description == nil {
			continue
		}
		tasks = append(tasks, task{field: fmt.Sprintf("diagrams[%d].description", i), text: *d.Description, ct: translate.ContentCaption})
	}

	var all []codeComments
	for i, ex := range rec.CodeExamples {
		found := findComments(ex.Code, syntaxFor(ex.Language()))
		if len(found) == 0 {
			continue
		}
		cc := codeComments{example: i, comments: found, tasks: make([]int, len(found))}
		for j, cm := range found {
			text := ex.Code[cm.textStart:cm.textEnd]
			if !translatable(text) {
				cc.tasks[j] = -1
				continue
			}
			cc.tasks[j] = len(tasks)
			tasks = append(tasks, task{
				field: fmt.Sprintf("codeExamples[%d].comments[%d]", i, j),
				text:  text,
				ct:    translate.ContentComment,
			})
		}
		all = append(all, cc)
	}
	return tasks, all
}

// assemble builds the translated record from task results.
func assemble(rec *Record, tasks []task, comments []codeComments, results []outcome, src, tgt string) *Report {
	out := rec.Clone()
	out.OriginalLanguage = src
	out.TargetLanguage = tgt
	metrics := &QualityMetrics{}
	rep := &Report{Record: out, Fields: make([]FieldReport, len(tasks))}

	// text returns the translation of task i, or its source text when the
	// field failed.
	text := func(i int) string {
		if r := results[i]; r.err == nil && r.res != nil {
			return r.res.TranslatedContent
		}
		return tasks[i].text
	}

	var usage []glossary.Usage
	for i, t := range tasks {
		fr := FieldReport{Field: t.field, Err: results[i].err}
		if res := results[i].res; res != nil && results[i].err == nil {
			fr.QualityScore = res.QualityScore
			fr.Notes = res.Notes
			fr.Cached = res.Cached
			fr.Skipped = res.Skipped
			usage = append(usage, res.Terminology...)
		} else if results[i].err != nil {
			metrics.Failures = append(metrics.Failures, FieldFailure{Field: t.field, Error: results[i].err.Error()})
		}
		rep.Fields[i] = fr
	}

	idx := 0
	out.Title = text(idx)
	metrics.TitleQuality = rep.Fields[idx].QualityScore
	idx++
	for i := range out.LearningObjectives {
		out.LearningObjectives[i] = text(idx)
		idx++
	}
	out.Content = text(idx)
	metrics.ContentQuality = rep.Fields[idx].QualityScore
	idx++
	for i := range out.Diagrams {
		if out.Diagrams[i].Description == nil {
			continue
		}
		s := text(idx)
		out.Diagrams[i].Description = &s
		idx++
	}
	for _, cc := range comments {
		texts := make([]string, len(cc.comments))
		for j, ti := range cc.tasks {
			if ti < 0 || results[ti].err != nil || results[ti].res == nil {
				continue
			}
			texts[j] = results[ti].res.TranslatedContent
		}
		ex := &out.CodeExamples[cc.example]
		ex.Code = spliceComments(ex.Code, cc.comments, texts)
	}

	metrics.Composite = composite(rep.Fields[0], rep.Fields[1+len(rec.LearningObjectives)])
	out.QualityMetrics = metrics
	rep.Terminology = mergeUsage(usage)
	return rep
}

// composite averages the title and content scores, leaving out fields that
// failed or were skipped as blank.
func composite(fields ...FieldReport) float64 {
	var sum float64
	var n int
	for _, f := range fields {
		if f.Err != nil || f.Skipped {
			continue
		}
		sum += f.QualityScore
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// mergeUsage sums occurrences of the same term across fields.
func mergeUsage(in []glossary.Usage) []glossary.Usage {
	if len(in) == 0 {
		return nil
	}
	index := make(map[string]int)
	var out []glossary.Usage
	for _, u := range in {
		if i, ok := index[u.Source]; ok {
			out[i].Occurrences += u.Occurrences
			out[i].InTarget = out[i].InTarget || u.InTarget
			continue
		}
		index[u.Source] = len(out)
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Occurrences > out[j].Occurrences })
	return out
}
