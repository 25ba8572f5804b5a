// Package settings stores per-user bookkit settings: provider credentials
// and custom translation prompts.
//
// Everything lives in the XDG data directory:
//
//	$XDG_DATA_HOME/bookkit/  (default: ~/.local/share/bookkit/)
//
// Files stored:
//   - auth.json     API keys (and optional endpoints) keyed by provider ID
//   - prompts.json  prompt templates that replace the built-in ones
//
// Files are written with 0600 permissions.
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. BOOKKIT_API_KEY environment variable
//  3. The provider's own variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...)
//  4. This credential store
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/MubasharaShauket/My-Panaversity-Book/logger"
)

const (
	appDir   = "bookkit"
	authFile = "auth.json"
)

// Info is the credential stored for one provider.
type Info struct {
	Key string `json:"key"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// Data files
// ---------------------------------------------------------------------------

// DataDir returns $XDG_DATA_HOME/bookkit, or ~/.local/share/bookkit.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating data directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, appDir), nil
}

// dataFile resolves name inside the data directory.
func dataFile(name string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// FilePath returns the credential file path, or "" when it cannot be
// determined.
func FilePath() string {
	path, _ := dataFile(authFile)
	return path
}

// writeJSON stores v as indented JSON readable only by the user.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Credential store
// ---------------------------------------------------------------------------

// Load reads the credential store. A missing or damaged file yields an
// empty store.
func Load() Store {
	store := make(Store)
	data, err := os.ReadFile(FilePath())
	if err != nil {
		return store
	}
	if json.Unmarshal(data, &store) != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save replaces the credential store on disk.
func Save(store Store) error {
	path, err := dataFile(authFile)
	if err != nil {
		return err
	}
	return writeJSON(path, store)
}

// Providers returns the IDs with stored credentials, sorted.
func (s Store) Providers() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the entry for a provider, or nil.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// SetAPIKey stores the key and optional endpoint of a provider, replacing
// any previous entry.
func SetAPIKey(providerID, key, baseURL string) error {
	store := Load()
	store[providerID] = &Info{Key: key, BaseURL: baseURL}
	return Save(store)
}

// GetAPIKey returns the stored key of a provider, or "".
func GetAPIKey(providerID string) string {
	if info := Get(providerID); info != nil {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored endpoint of a provider, or "".
func GetBaseURL(providerID string) string {
	if info := Get(providerID); info != nil {
		return info.BaseURL
	}
	return ""
}

// Remove forgets one provider. Unknown IDs are not an error.
func Remove(providerID string) error {
	store := Load()
	if store[providerID] == nil {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll deletes the credential file.
func RemoveAll() error {
	err := os.Remove(FilePath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", authFile, err)
	}
	return nil
}

// EnvVarForProvider returns the provider's conventional API key variable,
// or "" for providers that need no key.
func EnvVarForProvider(providerID string) string {
	switch providerID {
	case "openai", "eino":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// ResolveAPIKey applies the lookup order: flag value, BOOKKIT_API_KEY, the
// provider's own variable, then the store.
func ResolveAPIKey(providerID, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("BOOKKIT_API_KEY"); env != "" {
		return env
	}
	if name := EnvVarForProvider(providerID); name != "" {
		if env := os.Getenv(name); env != "" {
			return env
		}
	}
	return GetAPIKey(providerID)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	return logger.Mask(key)
}
