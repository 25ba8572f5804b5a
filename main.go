// bookkit translates Docusaurus textbook chapters with AI while keeping code,
// equations, images and diagrams byte-for-byte intact.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/i18n"
	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir  string
	logLevel string
	logMode  string
)

// newLogger builds the library logger from the global flags. Library
// output stays quiet unless --log-level asks for it.
func newLogger() *logger.Logger {
	if logLevel == "" {
		return logger.Nop()
	}
	l, err := logger.New(logMode, logLevel)
	if err != nil {
		logWarning("Logging disabled: %v", err)
		return logger.Nop()
	}
	return l
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookkit",
		Short: "Translate textbook chapters with AI, keeping code and math intact",
		Long: `bookkit — translation kit for Docusaurus textbooks.

Translates chapter records (JSON or YAML) and Markdown chapters into a target
language. Code blocks, inline code, LaTeX equations, images and diagrams are
replaced by placeholder tokens before the text reaches the AI service and are
restored byte-for-byte afterwards. A robotics dictionary keeps technical
terms consistent.

Commands:
  status      Show the detected book layout and translation progress
  translate   Translate chapters
  review      Grade an existing translation
  terms       List dictionary terms found in a chapter
  protect     Show how a chapter is tokenized before translation
  memory      Inspect or clear the translation memory
  auth        Manage provider API keys

AI Providers:
  openai      OpenAI (default)
  anthropic   Anthropic Claude
  google      Google AI (Gemini)
  groq        Groq
  openrouter  OpenRouter
  ollama      Ollama local server
  eino        OpenAI-compatible model through cloudwego/eino`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Library log level: debug, info, warn, error (default: off)")
	root.PersistentFlags().StringVar(&logMode, "log-format", "dev", "Log format: dev or json")

	root.AddCommand(
		newStatusCmd(),
		newTranslateCmd(),
		newReviewCmd(),
		newTermsCmd(),
		newProtectCmd(),
		newMemoryCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bookkit version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// splitList parses a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// progressBar renders a coloured bar followed by the percentage.
func progressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 80:
		color = colorGreen
	case percent >= 40:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset +
		fmt.Sprintf(" %3d%%", percent)
}
