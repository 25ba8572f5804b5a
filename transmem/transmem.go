// Package transmem implements bookkit.mem, a translation memory that keeps
// the raw service reply for every request sent. Entries are keyed by the
// MD5 of the content type and the rendered prompt, grouped per language
// pair, so re-running a chapter only pays for fields whose text or
// instructions changed.
//
// The memory file is stored alongside bookkit.yaml as bookkit.mem.
package transmem

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the default memory file name.
const FileName = "bookkit.mem"

// Version is the memory file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is one remembered reply.
type Entry struct {
	ContentType string `yaml:"content_type"`
	Reply       string `yaml:"reply"`
}

// Memory represents the bookkit.mem file structure.
type Memory struct {
	Version int                         `yaml:"version"`
	Entries map[string]map[string]Entry `yaml:"entries"` // pair -> hash -> entry

	mu    sync.Mutex `yaml:"-"`
	path  string     `yaml:"-"`
	dirty bool       `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the memory file from the given directory.
// Returns an empty memory if the file doesn't exist.
func Load(dir string) (*Memory, error) {
	path := filepath.Join(dir, FileName)
	m := &Memory{
		Version: Version,
		Entries: make(map[string]map[string]Entry),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d", path, m.Version)
	}
	m.path = path

	if m.Entries == nil {
		m.Entries = make(map[string]map[string]Entry)
	}

	return m, nil
}

// Save writes the memory to disk when it has changed since loading.
func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return fmt.Errorf("memory file path not set")
	}
	if !m.dirty {
		return nil
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling translation memory: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}
	m.dirty = false

	return nil
}

// Path returns the memory file path.
func (m *Memory) Path() string {
	return m.path
}

// ---------------------------------------------------------------------------
// Lookup and store
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// PairKey names a language pair, e.g. "en>ur".
func PairKey(sourceLang, targetLang string) string {
	return sourceLang + ">" + targetLang
}

func entryKey(contentType, prompt string) string {
	return Hash(contentType + "\x00" + prompt)
}

// Lookup returns the remembered reply for prompt, if any.
func (m *Memory) Lookup(sourceLang, targetLang, contentType, prompt string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.Entries[PairKey(sourceLang, targetLang)][entryKey(contentType, prompt)]
	if !ok {
		return "", false
	}
	return e.Reply, true
}

// Store remembers the reply to prompt.
func (m *Memory) Store(sourceLang, targetLang, contentType, prompt, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := PairKey(sourceLang, targetLang)
	if m.Entries[pair] == nil {
		m.Entries[pair] = make(map[string]Entry)
	}
	m.Entries[pair][entryKey(contentType, prompt)] = Entry{ContentType: contentType, Reply: reply}
	m.dirty = true
}

// RemovePair forgets every entry of a language pair.
func (m *Memory) RemovePair(sourceLang, targetLang string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := PairKey(sourceLang, targetLang)
	if _, ok := m.Entries[pair]; ok {
		delete(m.Entries, pair)
		m.dirty = true
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of language pairs and total entries.
func (m *Memory) Stats() (pairs, entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs = len(m.Entries)
	for _, e := range m.Entries {
		entries += len(e)
	}
	return
}

// Pairs returns the sorted list of language pair keys.
func (m *Memory) Pairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}
