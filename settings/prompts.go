package settings

import (
	"encoding/json"
	"fmt"
	"os"
)

// Prompt names understood by the CLI.
const (
	PromptTranslate = "translate"
	PromptReview    = "review"
)

// Prompts maps a prompt name to a template that replaces the built-in one.
type Prompts map[string]string

// PromptsFilePath returns the path to prompts.json.
func PromptsFilePath() (string, error) {
	return dataFile("prompts.json")
}

// LoadPrompts reads custom prompts. A missing file yields an empty set; a
// malformed one is an error so a broken template is never used silently.
func LoadPrompts() (Prompts, error) {
	path, err := PromptsFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Prompts{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var p Prompts
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if p == nil {
		p = Prompts{}
	}
	return p, nil
}

// SavePrompts writes custom prompts with 0600 permissions.
func SavePrompts(p Prompts) error {
	path, err := PromptsFilePath()
	if err != nil {
		return err
	}
	return writeJSON(path, p)
}
