package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/config"
	"github.com/MubasharaShauket/My-Panaversity-Book/i18n"
	"github.com/MubasharaShauket/My-Panaversity-Book/langmeta"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the detected book layout and translation progress",
		Long: `Show the auto-detected Docusaurus layout (docs/ and i18n/ directories),
the configured provider and, for every target language, how many chapters
already have a translation. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout())
		},
	}
}

func runStatus(w io.Writer) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	proj := cfg.Project(rootDir)

	configPath := cfg.Path()
	if configPath == "" {
		configPath = "(none, using defaults)"
	}

	fmt.Fprintf(w, "\n%sBook: %s%s\n", colorBlue, proj.Name, colorReset)
	fmt.Fprintf(w, "  Config:     %s\n", configPath)
	fmt.Fprintf(w, "  Docs:       %s\n", relPath(proj.DocsDir))
	fmt.Fprintf(w, "  i18n:       %s\n", relPath(proj.I18nDir))
	fmt.Fprintf(w, "  Source:     %s\n", langmeta.Label(proj.SourceLang))
	fmt.Fprintf(w, "  Provider:   %s (model: %s)\n", cfg.Provider.Name, displayModel(cfg.Provider.Model))

	chapters, err := proj.Chapters()
	if err != nil {
		fmt.Fprintf(w, "\n  %sNo chapters found: %v%s\n\n", colorYellow, err, colorReset)
		return nil
	}
	fmt.Fprintf(w, "  Chapters:   "+i18n.N("%d chapter", "%d chapters", len(chapters))+"\n\n", len(chapters))

	if len(proj.Languages) == 0 {
		fmt.Fprintf(w, "  %sNo target languages yet.%s Run: bookkit translate --lang ur\n\n", colorYellow, colorReset)
		return nil
	}

	width := langColumnWidth(proj.Languages)
	for _, lang := range proj.Languages {
		done := translatedCount(proj, chapters, lang)
		percent := 0
		if len(chapters) > 0 {
			percent = done * 100 / len(chapters)
		}
		fmt.Fprintf(w, "  %s %s  %d/%d\n", langCell(lang, width), progressBar(percent, 20), done, len(chapters))
	}
	fmt.Fprintln(w)
	return nil
}

// translatedCount is how many chapters have a lang translation on disk.
func translatedCount(proj *config.Project, chapters []string, lang string) int {
	n := 0
	for _, ch := range chapters {
		if out, err := proj.TranslationPath(ch, lang); err == nil && fileExists(out) {
			n++
		}
	}
	return n
}

func langColumnWidth(langs []string) int {
	width := 0
	for _, l := range langs {
		width = max(width, len(l))
	}
	return width
}

// langCell renders a language code padded to width, followed by its name
// and an RTL marker for right-to-left scripts.
func langCell(lang string, width int) string {
	meta := langmeta.Resolve(lang)
	cell := fmt.Sprintf("%-*s  %-12s", width, lang, meta.Name)
	if meta.RTL {
		cell += " RTL"
	} else {
		cell += "    "
	}
	return cell
}
