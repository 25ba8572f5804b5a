package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/config"
	"github.com/MubasharaShauket/My-Panaversity-Book/langmeta"
	"github.com/MubasharaShauket/My-Panaversity-Book/settings"
	"github.com/MubasharaShauket/My-Panaversity-Book/spanguard"
	"github.com/MubasharaShauket/My-Panaversity-Book/translate"
	"github.com/MubasharaShauket/My-Panaversity-Book/transmem"
)

// ---------------------------------------------------------------------------
// review
// ---------------------------------------------------------------------------

func newReviewCmd() *cobra.Command {
	var (
		source, target string
		pf             providerFlags
	)

	cmd := &cobra.Command{
		Use:   "review <original> <translated>",
		Short: "Grade an existing translation with AI",
		Long: `Ask the AI service to grade a translation for accuracy, fluency, technical
precision and cultural appropriateness. Both arguments may be chapter files
(the content is compared) or plain text files.

Examples:
  bookkit review docs/intro.md i18n/ur/docusaurus-plugin-content-docs/current/intro.md
  bookkit review chapter1.json chapter1.ur.json --provider anthropic`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runReview(ctx, cmd.OutOrStdout(), args[0], args[1], source, target, &pf)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Language of the original (default: config source_lang)")
	cmd.Flags().StringVar(&target, "lang", "ur", "Language of the translation")
	pf.register(cmd)

	return cmd
}

func runReview(ctx context.Context, w io.Writer, originalPath, translatedPath, source, target string, pf *providerFlags) error {
	original, err := readText(originalPath)
	if err != nil {
		return err
	}
	translated, err := readText(translatedPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	pf.apply(&cfg.Provider)
	if source == "" {
		source = cfg.SourceLang
	}

	log := newLogger()
	defer log.Sync()
	gen, err := newGenerator(ctx, cfg.Provider, pf, log)
	if err != nil {
		return err
	}
	prompts, err := settings.LoadPrompts()
	if err != nil {
		return err
	}

	reviewer := translate.NewReviewer(gen)
	reviewer.Prompt = prompts[settings.PromptReview]
	a, err := reviewer.Review(ctx, source, target, original, translated)
	if err != nil {
		return err
	}
	printAssessment(w, a)
	return nil
}

func printAssessment(w io.Writer, a *translate.Assessment) {
	rows := []struct {
		name  string
		score float64
	}{
		{"Accuracy", a.Accuracy},
		{"Fluency", a.Fluency},
		{"Technical precision", a.TechnicalPrecision},
		{"Cultural appropriateness", a.CulturalAppropriateness},
		{"Overall", a.Overall},
	}
	fmt.Fprintln(w)
	for _, r := range rows {
		fmt.Fprintf(w, "  %-26s %s\n", r.name, progressBar(int(r.score*100+0.5), 20))
	}
	if a.Feedback != "" {
		fmt.Fprintf(w, "\n  %s\n", strings.ReplaceAll(a.Feedback, "\n", "\n  "))
	}
	if len(a.SuggestedImprovements) > 0 {
		fmt.Fprintln(w)
		for _, s := range a.SuggestedImprovements {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	fmt.Fprintln(w)
}

// ---------------------------------------------------------------------------
// terms
// ---------------------------------------------------------------------------

func newTermsCmd() *cobra.Command {
	var (
		source, target string
		all            bool
	)

	cmd := &cobra.Command{
		Use:   "terms [file]",
		Short: "List dictionary terms found in a chapter",
		Long: `List the dictionary terms that occur in a chapter's prose (outside code,
equations, images and diagrams) with their established translations.
With --all, print the whole dictionary instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("a file is required unless --all is given")
			}
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return runTerms(cmd.OutOrStdout(), file, source, target, all)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source language (default: config source_lang)")
	cmd.Flags().StringVar(&target, "lang", "ur", "Target language")
	cmd.Flags().BoolVar(&all, "all", false, "Print every dictionary entry")

	return cmd
}

func runTerms(w io.Writer, file, source, target string, all bool) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	if source == "" {
		source = cfg.SourceLang
	}
	dict, err := loadDictionary(cfg.GlossaryPath(rootDir), source, target)
	if err != nil {
		return err
	}
	if dict == nil {
		return fmt.Errorf("no dictionary for %s → %s", langmeta.Label(source), langmeta.Label(target))
	}

	entries := dict.Entries()
	if !all {
		text, err := readText(file)
		if err != nil {
			return err
		}
		p, err := spanguard.Protect(text)
		if err != nil {
			return err
		}
		entries = dict.Find(p.Text)
	} else {
		sort.Slice(entries, func(i, j int) bool { return strings.ToLower(entries[i].Source) < strings.ToLower(entries[j].Source) })
	}

	if len(entries) == 0 {
		logInfo("No dictionary terms found")
		return nil
	}
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Source))
	}
	for _, e := range entries {
		fmt.Fprintf(w, "  %-*s  %s\n", width, e.Source, e.Target)
	}
	return nil
}

// ---------------------------------------------------------------------------
// protect
// ---------------------------------------------------------------------------

func newProtectCmd() *cobra.Command {
	var spansOnly bool

	cmd := &cobra.Command{
		Use:   "protect <file>",
		Short: "Show how a chapter is tokenized before translation",
		Long: `Print the text exactly as the AI service would receive it, with code,
equations, images and diagrams replaced by placeholder tokens, followed by
the token table. Use it to check that nothing translatable is hidden and
nothing executable is exposed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtect(cmd.OutOrStdout(), args[0], spansOnly)
		},
	}
	cmd.Flags().BoolVar(&spansOnly, "spans", false, "Print only the token table")

	return cmd
}

func runProtect(w io.Writer, file string, spansOnly bool) error {
	text, err := readText(file)
	if err != nil {
		return err
	}
	p, err := spanguard.Protect(text)
	if err != nil {
		return err
	}

	if !spansOnly {
		fmt.Fprintln(w, p.Text)
		fmt.Fprintln(w)
	}
	counts := make(map[spanguard.Category]int)
	for _, s := range p.Spans {
		counts[s.Category]++
		fmt.Fprintf(w, "  %-14s %s\n", s.Token, preview(s.Original, 60))
	}
	var summary []string
	for _, c := range spanguard.Categories() {
		summary = append(summary, fmt.Sprintf("%s %d", strings.ToLower(c.String()), counts[c]))
	}
	logInfo("%d protected span(s): %s", len(p.Spans), strings.Join(summary, ", "))
	return nil
}

// preview flattens s to one line of at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ---------------------------------------------------------------------------
// memory
// ---------------------------------------------------------------------------

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or clear the translation memory",
		Long: `bookkit remembers every service reply in bookkit.mem so unchanged fields
are not sent again. These commands show and reset it.`,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show translation memory size per language pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := openMemory()
			if err != nil {
				return err
			}
			pairs, entries := mem.Stats()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %d entries, %d language pairs\n", mem.Path(), entries, pairs)
			for _, pair := range mem.Pairs() {
				fmt.Fprintf(w, "  %s\n", pair)
			}
			return nil
		},
	}

	var pair string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget remembered translations",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := openMemory()
			if err != nil {
				return err
			}
			if pair == "" {
				for _, p := range mem.Pairs() {
					src, tgt, _ := strings.Cut(p, ">")
					mem.RemovePair(src, tgt)
				}
			} else {
				src, tgt, ok := strings.Cut(strings.Replace(pair, ">", ":", 1), ":")
				if !ok {
					return fmt.Errorf("--pair must look like en:ur")
				}
				mem.RemovePair(src, tgt)
			}
			if err := mem.Save(); err != nil {
				return err
			}
			logSuccess("Translation memory cleared")
			return nil
		},
	}
	clearCmd.Flags().StringVar(&pair, "pair", "", "Only clear one language pair (e.g. en:ur)")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func openMemory() (*transmem.Memory, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	return transmem.Load(memoryDir(cfg))
}
