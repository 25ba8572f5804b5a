package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/chapter"
	"github.com/MubasharaShauket/My-Panaversity-Book/config"
	"github.com/MubasharaShauket/My-Panaversity-Book/langmeta"
	"github.com/MubasharaShauket/My-Panaversity-Book/spanguard"
)

type translateArgs struct {
	files         []string
	langs         string
	source        string
	output        string
	domain        string
	parallel      int
	partial       bool
	preserveTerms bool
	noMemory      bool
	force         bool
	dryRun        bool
	providerFlags
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [chapter...]",
		Short: "Translate chapters using AI",
		Long: `Translate chapter files using AI providers.

A chapter is a JSON or YAML record (title, content, learningObjectives,
diagrams, codeExamples) or a Markdown file with YAML front matter. Without
arguments every Markdown chapter under docs/ is translated into each target
language and written to the Docusaurus i18n tree; chapters that already have
a translation are skipped unless --force is given.

Examples:
  # Translate the whole book into Urdu
  bookkit translate --lang ur

  # Translate one chapter record with Anthropic, four fields at a time
  bookkit translate chapter1.json --provider anthropic --parallel 4

  # Keep going when a field fails, leaving its source text in place
  bookkit translate docs/intro.md --partial

  # Show what would be translated without calling AI
  bookkit translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.files = args
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runTranslate(ctx, a)
		},
	}

	cmd.Flags().StringVar(&a.langs, "lang", "", "Target languages (comma-separated, default: languages under i18n/, else ur)")
	cmd.Flags().StringVar(&a.source, "source", "", "Source language (default: config source_lang)")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output file (single chapter and language only)")
	cmd.Flags().StringVar(&a.domain, "domain", "", "Subject area named in prompts")
	cmd.Flags().IntVar(&a.parallel, "parallel", 0, "Fields translated at once (0 = config value)")
	cmd.Flags().BoolVar(&a.partial, "partial", false, "Keep source text for failed fields instead of aborting the chapter")
	cmd.Flags().BoolVar(&a.preserveTerms, "preserve-terms", false, "Replace dictionary terms before translation")
	cmd.Flags().BoolVar(&a.noMemory, "no-memory", false, "Do not use the translation memory")
	cmd.Flags().BoolVar(&a.force, "force", false, "Re-translate chapters that already have a translation")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be translated without calling AI")
	a.providerFlags.register(cmd)

	return cmd
}

// job is one chapter translated into one language.
type job struct {
	source string
	lang   string
	output string
}

func runTranslate(ctx context.Context, a translateArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	a.applyTo(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	proj := cfg.Project(rootDir)

	langs := splitList(a.langs)
	if len(langs) == 0 {
		langs = proj.Languages
	}
	if len(langs) == 0 {
		langs = []string{"ur"}
	}
	for _, lang := range langs {
		if !langmeta.Known(lang) {
			logWarning("Unknown language code %q, prompts will use the code itself", lang)
		}
	}

	jobs, err := planJobs(proj, a, langs)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		logInfo("Nothing to translate")
		return nil
	}

	if a.dryRun {
		return showPlan(jobs)
	}

	log := newLogger()
	defer log.Sync()

	eng, err := newEngine(ctx, cfg, &a.providerFlags, log)
	if err != nil {
		return err
	}
	defer eng.close()

	logInfo("Provider: %s, model: %s", cfg.Provider.Name, displayModel(cfg.Provider.Model))

	var failed int
	start := time.Now()
	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		logInfo("[%d/%d] %s → %s", i+1, len(jobs), j.source, langmeta.Label(j.lang))
		if err := translateJob(ctx, eng, cfg, j); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			logError("%s: %v", j.source, err)
			continue
		}
	}

	elapsed := time.Since(start).Round(time.Second)
	if failed > 0 {
		return fmt.Errorf("%d of %d chapter translations failed (%s)", failed, len(jobs), elapsed)
	}
	logSuccess("Translated %d chapter(s) in %s", len(jobs), elapsed)
	return nil
}

// applyTo overlays the command flags on the loaded configuration.
func (a *translateArgs) applyTo(cfg *config.File) {
	a.providerFlags.apply(&cfg.Provider)
	if a.source != "" {
		cfg.SourceLang = a.source
	}
	if a.domain != "" {
		cfg.Translation.Domain = a.domain
	}
	if a.parallel > 0 {
		cfg.Translation.Parallel = a.parallel
	}
	if a.partial {
		cfg.Translation.PartialSuccess = true
	}
	if a.preserveTerms {
		cfg.Translation.PreserveTerms = true
	}
	if a.noMemory {
		cfg.Translation.NoMemory = true
	}
}

// planJobs lists the chapter/language pairs to translate.
func planJobs(proj *config.Project, a translateArgs, langs []string) ([]job, error) {
	files := a.files
	projectMode := len(files) == 0
	if projectMode {
		chapters, err := proj.Chapters()
		if err != nil {
			return nil, fmt.Errorf("listing chapters in %s: %w", proj.DocsDir, err)
		}
		files = chapters
	}

	if a.output != "" && (len(files) != 1 || len(langs) != 1) {
		return nil, fmt.Errorf("--output needs exactly one chapter and one language")
	}

	var jobs []job
	for _, file := range files {
		if _, err := chapterFormat(file); err != nil {
			return nil, err
		}
		for _, lang := range langs {
			out := a.output
			if out == "" {
				var err error
				if out, err = outputPath(proj, file, lang); err != nil {
					return nil, err
				}
			}
			if projectMode && !a.force && fileExists(out) {
				continue
			}
			jobs = append(jobs, job{source: file, lang: lang, output: out})
		}
	}
	return jobs, nil
}

// showPlan prints the dry-run listing with per-chapter field counts.
func showPlan(jobs []job) error {
	for _, j := range jobs {
		cf, err := loadChapter(j.source)
		if err != nil {
			return err
		}
		fmt.Printf("  %s → %s  (%d fields)\n", j.source, relPath(j.output), len(chapter.Fields(cf.record)))
	}
	logInfo("Dry run: %d chapter translation(s) planned", len(jobs))
	return nil
}

func translateJob(ctx context.Context, eng *engine, cfg *config.File, j job) error {
	cf, err := loadChapter(j.source)
	if err != nil {
		return err
	}
	pipe, err := eng.pipeline(cfg.SourceLang, j.lang)
	if err != nil {
		return err
	}

	coord := chapter.NewCoordinator(pipe, chapter.Options{
		SourceLanguage:         cfg.SourceLang,
		TargetLanguage:         j.lang,
		PreserveTechnicalTerms: cfg.Translation.PreserveTerms,
		PartialSuccess:         cfg.Translation.PartialSuccess,
		MaxConcurrent:          cfg.Translation.Parallel,
		Logger:                 eng.log,
		OnProgress: func(done, total int) {
			fmt.Fprintf(os.Stderr, "\r  %s %d/%d", progressBar(done*100/total, 20), done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})

	rep, err := coord.Run(ctx, cf.record)
	if err != nil {
		fmt.Fprintln(os.Stderr)
		var re *spanguard.RestorationError
		if errors.As(err, &re) {
			return fmt.Errorf("%w (the service damaged a placeholder; nothing was written)", err)
		}
		return err
	}

	if err := cf.write(j.output, rep.Record); err != nil {
		return fmt.Errorf("writing %s: %w", j.output, err)
	}

	printReport(rep)
	logSuccess("%s written", relPath(j.output))
	return nil
}

func printReport(rep *chapter.Report) {
	var cached int
	for _, f := range rep.Fields {
		if f.Cached {
			cached++
		}
		if f.Err != nil {
			logWarning("%s kept its source text: %v", f.Field, f.Err)
		}
	}
	if qm := rep.Record.QualityMetrics; qm != nil {
		logInfo("Quality: title %.2f, content %.2f, composite %.2f", qm.TitleQuality, qm.ContentQuality, qm.Composite)
	}
	if cached > 0 {
		logInfo("%d field(s) served from translation memory", cached)
	}
	for _, u := range rep.Terminology {
		if !u.InTarget {
			logWarning("Term %q (%d×) not rendered as %q", u.Source, u.Occurrences, u.Target)
		}
	}
}

func displayModel(model string) string {
	if model == "" {
		return "default"
	}
	return model
}

// relPath shortens path relative to the working directory for display.
func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
