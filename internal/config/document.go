package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk flyer file. Fields missing from the file keep
// their defaults.
type Document struct {
	Preset string `yaml:"preset"`
	Params Params `yaml:"params"`
	Flyer  Flyer  `yaml:"flyer"`
}

// DefaultDocument returns the built-in editor state.
func DefaultDocument() Document {
	return Document{
		Preset: DefaultPreset().Key,
		Params: DefaultParams(),
		Flyer:  DefaultFlyer(),
	}
}

// LoadDocument reads and validates a YAML flyer document.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return ParseDocument(data)
}

// ParseDocument decodes YAML over the defaults and validates the result.
func ParseDocument(data []byte) (Document, error) {
	doc := DefaultDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing flyer document: %w", err)
	}
	if _, err := LookupPreset(doc.Preset); err != nil {
		return Document{}, err
	}
	if err := doc.Params.Validate(); err != nil {
		return Document{}, err
	}
	if err := doc.Flyer.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// SaveDocument writes doc as YAML.
func SaveDocument(path string, doc Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding flyer document: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
