package glossary

import (
	_ "embed"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed robotics.yaml
var defaultDictionary []byte

// File is the on-disk dictionary format.
type File struct {
	SourceLanguage string  `yaml:"source_language"`
	TargetLanguage string  `yaml:"target_language"`
	Terms          []Entry `yaml:"terms"`
}

// Default returns the built-in English to Urdu robotics dictionary.
func Default() (*Dictionary, error) {
	return Parse(defaultDictionary, "robotics.yaml")
}

// Load reads a dictionary file from disk.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LookupError{Path: path, Reason: "reading dictionary", Err: err}
	}
	return Parse(data, path)
}

// Parse decodes dictionary YAML. origin names the source in error messages.
func Parse(data []byte, origin string) (*Dictionary, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LookupError{Path: origin, Reason: "parsing dictionary", Err: err}
	}
	if f.SourceLanguage == "" || f.TargetLanguage == "" {
		return nil, &LookupError{Path: origin, Reason: "source_language and target_language are required"}
	}
	d, err := New(f.SourceLanguage, f.TargetLanguage, f.Terms)
	if err != nil {
		var le *LookupError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = origin
		}
		return nil, err
	}
	return d, nil
}
