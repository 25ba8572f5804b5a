package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MubasharaShauket/My-Panaversity-Book/provider"
	"github.com/MubasharaShauket/My-Panaversity-Book/settings"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Store, remove and list API keys for the AI providers.

Keys are kept in $XDG_DATA_HOME/bookkit/auth.json (mode 0600). A key is
looked up in this order: --api-key flag, BOOKKIT_API_KEY, the provider's
own variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...), then this store.

Examples:
  bookkit auth set --provider anthropic          Prompt for a key
  bookkit auth set --provider openrouter --key sk-or-...
  bookkit auth set --provider ollama --base-url http://gpu-box:11434/v1
  bookkit auth remove --provider groq
  bookkit auth remove                            Remove all keys
  bookkit auth list`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthRemoveCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var providerID, key, baseURL string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key (and optional endpoint) for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthSet(cmd.InOrStdin(), providerID, key, baseURL)
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "Provider ID (required)")
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted for when omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom endpoint for this provider")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)

	return cmd
}

func runAuthSet(in io.Reader, providerID, key, baseURL string) error {
	info, ok := provider.Lookup(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q (valid: %s)", providerID, strings.Join(provider.IDs(), ", "))
	}

	if key == "" && info.NeedsKey {
		existing := settings.GetAPIKey(providerID)
		fmt.Fprintf(os.Stderr, "\n%s%s — API Key Setup%s\n", colorBlue, info.Name, colorReset)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
		if existing != "" {
			fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing), colorReset)
			fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
		} else {
			fmt.Fprintf(os.Stderr, "  Enter API key: ")
		}

		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			key = strings.TrimSpace(scanner.Text())
		}
		if key == "" {
			if existing == "" {
				return fmt.Errorf("no API key provided")
			}
			key = existing
		}
	}
	if baseURL == "" {
		baseURL = settings.GetBaseURL(providerID)
	}

	if err := settings.SetAPIKey(providerID, key, baseURL); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	logSuccess("%s credentials saved", info.Name)
	return nil
}

func newAuthRemoveCmd() *cobra.Command {
	var providerID string

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"logout"},
		Short:   "Remove stored credentials",
		Long: `Remove stored credentials for one provider, or for all providers when
--provider is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerID == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if err := settings.Remove(providerID); err != nil {
				return fmt.Errorf("removing %s credentials: %w", providerID, err)
			}
			logSuccess("%s credentials removed", providerID)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "Provider to remove (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			showCredentials(cmd.OutOrStdout())
		},
	}
}

func showCredentials(w io.Writer) {
	store := settings.Load()

	fmt.Fprintf(w, "\n%sProviders%s\n", colorBlue, colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, info := range provider.Known() {
		entry := store[info.ID]
		var status string
		switch {
		case !info.NeedsKey && (entry == nil || entry.Key == ""):
			status = colorGreen + "no key needed" + colorReset
		case entry != nil && entry.Key != "":
			status = fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(entry.Key))
		case envSet(settings.EnvVarForProvider(info.ID)):
			status = fmt.Sprintf("%sfrom %s%s", colorGreen, settings.EnvVarForProvider(info.ID), colorReset)
		default:
			status = colorRed + "not configured" + colorReset
		}
		fmt.Fprintf(w, "  %-12s %s\n", info.ID, status)
		if entry != nil && entry.BaseURL != "" {
			fmt.Fprintf(w, "  %12s endpoint: %s\n", "", entry.BaseURL)
		}
	}

	fmt.Fprintf(w, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
	if envKey := os.Getenv("BOOKKIT_API_KEY"); envKey != "" {
		fmt.Fprintf(w, "  BOOKKIT_API_KEY: %s%s%s (overrides stored keys)\n", colorGreen, settings.MaskKey(envKey), colorReset)
	} else {
		fmt.Fprintf(w, "  BOOKKIT_API_KEY: %snot set%s\n", colorRed, colorReset)
	}
	fmt.Fprintln(w)
}

func envSet(name string) bool {
	return name != "" && os.Getenv(name) != ""
}

func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, info := range provider.Known() {
		out = append(out, info.ID+"\t"+info.Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
