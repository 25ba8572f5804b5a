package chapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MubasharaShauket/My-Panaversity-Book/glossary"
	"github.com/MubasharaShauket/My-Panaversity-Book/spanguard"
	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeFields wraps every field in "UR(...)" and records the requests.
type fakeFields struct {
	mu     sync.Mutex
	reqs   []translate.Request
	scores map[string]float64
	fail   map[string]error
	delay  func(field string) time.Duration
}

func (f *fakeFields) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	if f.delay != nil {
		select {
		case <-time.After(f.delay(req.Field)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if err := f.fail[req.Field]; err != nil {
		return nil, err
	}
	score, ok := f.scores[req.Field]
	if !ok {
		score = 0.9
	}
	return &translate.Result{TranslatedContent: "UR(" + req.Content + ")", QualityScore: score}, nil
}

func (f *fakeFields) fields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reqs))
	for i, r := range f.reqs {
		out[i] = r.Field
	}
	return out
}

const lessonCode = "// Initialize the motor\nconst url = \"http://robot.local\"; // connect to controller\n"

func lessonChapter() *Record {
	return &Record{
		Title: "Sensors and Actuators",
		Content: "A sensor measures the world.\n\n```python\nread()\n```\n\n" +
			"The torque is $\\tau = r F$.",
		LearningObjectives: []string{"Explain what a sensor does", "Wire an actuator"},
		Diagrams: []Diagram{
			{Extra: map[string]any{"type": "flowchart", "id": 3}},
		},
		CodeExamples: []CodeExample{
			{Code: lessonCode, Extra: map[string]any{"language": "javascript", "title": "Motor setup"}},
		},
		OriginalLanguage: "en",
	}
}

// ---------------------------------------------------------------------------
// Coordinator
// ---------------------------------------------------------------------------

func TestTranslateChapterScenario(t *testing.T) {
	fake := &fakeFields{scores: map[string]float64{"title": 0.8, "content": 0.6}}
	in := lessonChapter()
	c := NewCoordinator(fake, Options{TargetLanguage: "ur"})

	out, err := c.TranslateChapter(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"title",
		"learningObjectives[0]",
		"learningObjectives[1]",
		"content",
		"codeExamples[0].comments[0]",
		"codeExamples[0].comments[1]",
	}, fake.fields())

	assert.Equal(t, "UR(Sensors and Actuators)", out.Title)
	assert.Equal(t, []string{"UR(Explain what a sensor does)", "UR(Wire an actuator)"}, out.LearningObjectives)
	assert.True(t, strings.HasPrefix(out.Content, "UR(A sensor"))

	require.Len(t, out.Diagrams, 1)
	assert.Nil(t, out.Diagrams[0].Description)
	assert.Equal(t, map[string]any{"type": "flowchart", "id": 3}, out.Diagrams[0].Extra)

	require.Len(t, out.CodeExamples, 1)
	assert.Equal(t,
		"// UR(Initialize the motor)\nconst url = \"http://robot.local\"; // UR(connect to controller)\n",
		out.CodeExamples[0].Code)
	assert.Equal(t, "Motor setup", out.CodeExamples[0].Extra["title"])

	assert.Equal(t, "en", out.OriginalLanguage)
	assert.Equal(t, "ur", out.TargetLanguage)
	require.NotNil(t, out.QualityMetrics)
	assert.InDelta(t, 0.8, out.QualityMetrics.TitleQuality, 1e-9)
	assert.InDelta(t, 0.6, out.QualityMetrics.ContentQuality, 1e-9)
	assert.InDelta(t, 0.7, out.QualityMetrics.Composite, 1e-9)
	assert.Empty(t, out.QualityMetrics.Failures)

	// The input is untouched.
	assert.Equal(t, lessonChapter(), in)
}

func TestFieldsMatchesTranslationOrder(t *testing.T) {
	fake := &fakeFields{}
	in := lessonChapter()
	_, err := NewCoordinator(fake, Options{}).TranslateChapter(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, fake.fields(), Fields(in))
}

func TestCommentTasksUseCommentContentType(t *testing.T) {
	fake := &fakeFields{}
	_, err := NewCoordinator(fake, Options{}).Run(context.Background(), lessonChapter())
	require.NoError(t, err)

	types := map[string]translate.ContentType{}
	for _, r := range fake.reqs {
		types[r.Field] = r.ContentType
		assert.Equal(t, "en", r.SourceLanguage)
		assert.Equal(t, "ur", r.TargetLanguage)
	}
	assert.Equal(t, translate.ContentTitle, types["title"])
	assert.Equal(t, translate.ContentProse, types["content"])
	assert.Equal(t, translate.ContentComment, types["codeExamples[0].comments[1]"])
}

func TestDiagramDescriptionTranslated(t *testing.T) {
	desc := "Sensor feedback loop"
	rec := &Record{
		Title:    "Loops",
		Content:  "Body",
		Diagrams: []Diagram{{Description: &desc, Extra: map[string]any{"src": "loop.svg"}}, {}},
	}
	fake := &fakeFields{}
	out, err := NewCoordinator(fake, Options{}).TranslateChapter(context.Background(), rec)
	require.NoError(t, err)

	require.NotNil(t, out.Diagrams[0].Description)
	assert.Equal(t, "UR(Sensor feedback loop)", *out.Diagrams[0].Description)
	assert.Equal(t, "Sensor feedback loop", desc)
	assert.Nil(t, out.Diagrams[1].Description)
	assert.Contains(t, fake.fields(), "diagrams[0].description")
}

func TestParallelMatchesSequential(t *testing.T) {
	seq, err := NewCoordinator(&fakeFields{}, Options{}).TranslateChapter(context.Background(), lessonChapter())
	require.NoError(t, err)

	// Early fields finish last.
	fake := &fakeFields{delay: func(field string) time.Duration {
		switch {
		case field == "title":
			return 30 * time.Millisecond
		case strings.HasPrefix(field, "learningObjectives"):
			return 15 * time.Millisecond
		}
		return 0
	}}
	par, err := NewCoordinator(fake, Options{MaxConcurrent: 4}).TranslateChapter(context.Background(), lessonChapter())
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Len(t, fake.fields(), 6)
	assert.NotEqual(t, "title", fake.fields()[0])
}

func TestFailFast(t *testing.T) {
	boom := errors.New("service unavailable")
	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", n), func(t *testing.T) {
			fake := &fakeFields{fail: map[string]error{"learningObjectives[1]": boom}}
			out, err := NewCoordinator(fake, Options{MaxConcurrent: n}).TranslateChapter(context.Background(), lessonChapter())
			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "translating learningObjectives[1]")
		})
	}
}

func TestFailFastStopsSequentialRun(t *testing.T) {
	fake := &fakeFields{fail: map[string]error{"title": errors.New("down")}}
	_, err := NewCoordinator(fake, Options{}).TranslateChapter(context.Background(), lessonChapter())
	require.Error(t, err)
	assert.Equal(t, []string{"title"}, fake.fields())
}

func TestPartialSuccess(t *testing.T) {
	fake := &fakeFields{
		fail:   map[string]error{"learningObjectives[1]": errors.New("timeout"), "title": errors.New("quota")},
		scores: map[string]float64{"content": 0.5},
	}
	rep, err := NewCoordinator(fake, Options{PartialSuccess: true}).Run(context.Background(), lessonChapter())
	require.NoError(t, err)
	out := rep.Record

	assert.Equal(t, "Sensors and Actuators", out.Title)
	assert.Equal(t, "UR(Explain what a sensor does)", out.LearningObjectives[0])
	assert.Equal(t, "Wire an actuator", out.LearningObjectives[1])

	require.Len(t, out.QualityMetrics.Failures, 2)
	assert.Equal(t, FieldFailure{Field: "title", Error: "quota"}, out.QualityMetrics.Failures[0])
	assert.Equal(t, "learningObjectives[1]", out.QualityMetrics.Failures[1].Field)
	// Composite leaves out the failed title.
	assert.InDelta(t, 0.5, out.QualityMetrics.Composite, 1e-9)

	require.Len(t, rep.Fields, 6)
	assert.Error(t, rep.Fields[0].Err)
	assert.NoError(t, rep.Fields[3].Err)
	assert.NotEmpty(t, rep.RequestID)
}

func TestProgressReported(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	opts := Options{
		MaxConcurrent: 2,
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 6, total)
			seen = append(seen, done)
		},
	}
	_, err := NewCoordinator(&fakeFields{}, opts).TranslateChapter(context.Background(), lessonChapter())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, seen)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCoordinator(&fakeFields{}, Options{}).TranslateChapter(ctx, lessonChapter())
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// With the real pipeline
// ---------------------------------------------------------------------------

// echoGenerator replies with the prompt's content, transformed by fn.
func echoGenerator(fn func(string) string) translate.Generator {
	return translate.GeneratorFunc(func(_ context.Context, prompt string, _ translate.GenerateOptions) (string, error) {
		const marker = "\n\nCONTENT:\n"
		content := prompt[strings.LastIndex(prompt, marker)+len(marker):]
		b, err := json.Marshal(map[string]any{
			"translatedContent": fn(content),
			"qualityScore":      0.85,
		})
		return string(b), err
	})
}

func TestPipelineKeepsProtectedSpans(t *testing.T) {
	dict, err := glossary.Default()
	require.NoError(t, err)
	pipe := translate.NewPipeline(translate.NewRequestor(echoGenerator(strings.ToUpper), translate.Options{}), dict)

	rep, err := NewCoordinator(pipe, Options{PreserveTechnicalTerms: true}).Run(context.Background(), lessonChapter())
	require.NoError(t, err)
	out := rep.Record

	assert.Contains(t, out.Content, "```python\nread()\n```")
	assert.Contains(t, out.Content, "$\\tau = r F$")
	assert.Equal(t, "// INITIALIZE THE MOTOR\nconst url = \"http://robot.local\"; // CONNECT TO CONTROLLER\n",
		out.CodeExamples[0].Code)
	assert.InDelta(t, 0.85, out.QualityMetrics.Composite, 1e-9)
	assert.NotEmpty(t, rep.Terminology)
}

func TestCompositeLeavesOutBlankFields(t *testing.T) {
	pipe := translate.NewPipeline(translate.NewRequestor(echoGenerator(strings.ToUpper), translate.Options{}), nil)
	rec := &Record{Title: "  ", Content: "A sensor measures the world."}

	rep, err := NewCoordinator(pipe, Options{}).Run(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, rep.Fields[0].Skipped)
	assert.False(t, rep.Fields[1].Skipped)
	m := rep.Record.QualityMetrics
	assert.InDelta(t, 1, m.TitleQuality, 1e-9)
	assert.InDelta(t, 0.85, m.ContentQuality, 1e-9)
	assert.InDelta(t, 0.85, m.Composite, 1e-9)

	rep, err = NewCoordinator(pipe, Options{}).Run(context.Background(), &Record{})
	require.NoError(t, err)
	assert.Zero(t, rep.Record.QualityMetrics.Composite)
}

func TestPipelineDroppedTokenNamesField(t *testing.T) {
	drop := func(s string) string {
		for _, tok := range spanguard.Tokens(s) {
			s = strings.ReplaceAll(s, tok, "")
		}
		return s
	}
	pipe := translate.NewPipeline(translate.NewRequestor(echoGenerator(drop), translate.Options{}), nil)

	_, err := NewCoordinator(pipe, Options{}).TranslateChapter(context.Background(), lessonChapter())
	require.Error(t, err)
	var re *spanguard.RestorationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "content", re.Field)
	assert.Contains(t, err.Error(), "translating content")
}

// ---------------------------------------------------------------------------
// Record encoding
// ---------------------------------------------------------------------------

const recordJSON = `{
  "title": "Kinematics",
  "content": "Body",
  "learningObjectives": ["Compute joint angles"],
  "diagrams": [
    {"description": "Arm", "src": "arm.png", "scale": 3.50},
    {"src": "leg.png"}
  ],
  "codeExamples": [
    {"language": "python", "code": "# move\narm.move()", "runnable": true}
  ]
}`

func TestRecordJSONPassthrough(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(recordJSON), &rec))

	require.Len(t, rec.Diagrams, 2)
	require.NotNil(t, rec.Diagrams[0].Description)
	assert.Equal(t, "Arm", *rec.Diagrams[0].Description)
	assert.Equal(t, json.Number("3.50"), rec.Diagrams[0].Extra["scale"])
	assert.Nil(t, rec.Diagrams[1].Description)
	assert.Equal(t, "python", rec.CodeExamples[0].Language())

	b, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"scale":3.50`)
	assert.Contains(t, string(b), `"runnable":true`)
	assert.NotContains(t, string(b), "qualityMetrics")

	var again Record
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, rec, again)
}

func TestRecordYAMLPassthrough(t *testing.T) {
	src := `title: Kinematics
content: Body
learningObjectives:
  - Compute joint angles
diagrams:
  - description: Arm
    src: arm.png
codeExamples:
  - language: bash
    code: "ls # list"
`
	var rec Record
	require.NoError(t, yaml.Unmarshal([]byte(src), &rec))
	assert.Equal(t, "Arm", *rec.Diagrams[0].Description)
	assert.Equal(t, "arm.png", rec.Diagrams[0].Extra["src"])
	assert.Equal(t, "ls # list", rec.CodeExamples[0].Code)

	b, err := yaml.Marshal(&rec)
	require.NoError(t, err)
	var again Record
	require.NoError(t, yaml.Unmarshal(b, &again))
	assert.Equal(t, rec, again)
}

func TestCodeExampleRequiresCode(t *testing.T) {
	var ex CodeExample
	err := json.Unmarshal([]byte(`{"language":"go"}`), &ex)
	assert.ErrorContains(t, err, "no code field")

	err = json.Unmarshal([]byte(`{"code": 7}`), &ex)
	assert.Error(t, err)

	var d Diagram
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &d))
}

func TestCloneKeepsNilAndEmpty(t *testing.T) {
	rec := &Record{LearningObjectives: []string{}}
	c := rec.Clone()
	assert.NotNil(t, c.LearningObjectives)
	assert.Empty(t, c.LearningObjectives)
	assert.Nil(t, c.Diagrams)
}

// ---------------------------------------------------------------------------
// Comment scanner
// ---------------------------------------------------------------------------

func commentTexts(code, lang string) []string {
	var out []string
	for _, c := range findComments(code, syntaxFor(lang)) {
		out = append(out, code[c.textStart:c.textEnd])
	}
	return out
}

func TestFindComments(t *testing.T) {
	tests := []struct {
		name string
		lang string
		code string
		want []string
	}{
		{
			name: "c family",
			lang: "cpp",
			code: "/** Motor driver. */\nint main() {\n  char q = '\"'; // quote char\n  return 0; /* done */\n}\n",
			want: []string{"Motor driver.", "quote char", "done"},
		},
		{
			name: "markers inside strings",
			lang: "go",
			code: "s := \"// not this\" + `/* nor this */` // but this\n",
			want: []string{"but this"},
		},
		{
			name: "python",
			lang: "python",
			code: "# Load the model\nprint(\"# not a comment\")\nx = 1  # scale factor\n",
			want: []string{"Load the model", "scale factor"},
		},
		{
			name: "python triple quotes",
			lang: "py",
			code: "\"\"\"Docs # here\"\"\"\ny = 2 # two\n",
			want: []string{"two"},
		},
		{
			name: "shell",
			lang: "bash",
			code: "#!/bin/bash\necho \"${#ARR[@]}\"\nURL=http://x/#frag\nls # list files\n",
			want: []string{"list files"},
		},
		{
			name: "sql",
			lang: "sql",
			code: "SELECT 1; -- pick one\n",
			want: []string{"pick one"},
		},
		{
			name: "javascript single-quoted url",
			lang: "javascript",
			code: "const url = 'https://example.com/api'; // real comment\n",
			want: []string{"real comment"},
		},
		{
			name: "typescript strings and templates",
			lang: "ts",
			code: "const re = '//x'; const t = `a // b ${'c'}`; /* note */\n",
			want: []string{"note"},
		},
		{
			name: "unknown language",
			lang: "",
			code: "x = 1 // fallback\n",
			want: []string{"fallback"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commentTexts(tt.code, tt.lang))
		})
	}
}

func TestJavaScriptCodeBytesUnchanged(t *testing.T) {
	code := "const url = 'https://example.com/api'; // fetch data\nfetch(url, { mode: 'no-cors' }); // send\n"
	rec := &Record{
		Title:        "T",
		Content:      "C",
		CodeExamples: []CodeExample{{Code: code, Extra: map[string]any{"language": "javascript"}}},
	}
	out, err := NewCoordinator(&fakeFields{}, Options{}).TranslateChapter(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t,
		"const url = 'https://example.com/api'; // UR(fetch data)\nfetch(url, { mode: 'no-cors' }); // UR(send)\n",
		out.CodeExamples[0].Code)
}

func TestSeparatorCommentsSkipped(t *testing.T) {
	rec := &Record{
		Title:   "T",
		Content: "C",
		CodeExamples: []CodeExample{
			{Code: "// ------\nrun() // start\n"},
		},
	}
	fake := &fakeFields{}
	out, err := NewCoordinator(fake, Options{}).TranslateChapter(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "// ------\nrun() // UR(start)\n", out.CodeExamples[0].Code)
	assert.Contains(t, fake.fields(), "codeExamples[0].comments[1]")
}

func TestSpliceCommentsSanitizes(t *testing.T) {
	code := "x := 1 // old\n/* a */"
	comments := findComments(code, cFamily)
	require.Len(t, comments, 2)

	got := spliceComments(code, comments, []string{"new\nline", "b */ c"})
	assert.Equal(t, "x := 1 // new line\n/* b * / c */", got)

	assert.Equal(t, code, spliceComments(code, comments, []string{"", ""}))
}
