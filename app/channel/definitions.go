package channel

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout  = 30 // seconds
	DefaultMaxItems = 100
)

// Entry is one channel in a definitions file.
type Entry struct {
	Name     string   `yaml:"name"`
	Source   string   `yaml:"source"`
	Patterns Patterns `yaml:"patterns"`
	Settings Settings `yaml:"settings"`
}

type Patterns struct {
	Item        ExtractionPattern `yaml:"item"`
	Title       ExtractionPattern `yaml:"title"`
	Link        ExtractionPattern `yaml:"link"`
	Description ExtractionPattern `yaml:"description"`
}

func (e Entry) Definition() Definition {
	return Definition{
		Name:               e.Name,
		Source:             e.Source,
		ItemPattern:        e.Patterns.Item,
		TitlePattern:       e.Patterns.Title,
		LinkPattern:        e.Patterns.Link,
		DescriptionPattern: e.Patterns.Description,
	}
}

type definitionsFile struct {
	Channels []Entry `yaml:"channels"`
}

// LoadDefinitions reads a declarative list of channels from a YAML file.
// Every entry is validated; the first invalid entry fails the whole file.
func LoadDefinitions(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	entries, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("invalid definitions %s: %w", path, err)
	}

	slog.Debug("Channel definitions loaded", "path", path, "count", len(entries))

	return entries, nil
}

// ParseDefinitions decodes and validates a YAML definitions document.
func ParseDefinitions(data []byte) ([]Entry, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Channels))
	for i := range file.Channels {
		entry := &file.Channels[i]
		entry.Settings = entry.Settings.WithDefaults()

		if _, err := Validate(entry.Definition()); err != nil {
			return nil, fmt.Errorf("channel at index %d (%q): %w", i, entry.Name, err)
		}
		if err := entry.Settings.Validate(); err != nil {
			return nil, fmt.Errorf("channel at index %d (%q): %w", i, entry.Name, err)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("channel at index %d: duplicate name %q", i, entry.Name)
		}
		seen[entry.Name] = true
	}

	return file.Channels, nil
}

// WithDefaults fills unset timeout and item limit. A zero refresh interval
// is kept and means "use the service default".
func (s Settings) WithDefaults() Settings {
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.MaxItems == 0 {
		s.MaxItems = DefaultMaxItems
	}
	return s
}

func (s Settings) Validate() error {
	nonNegativeFields := map[string]int{
		"refresh interval": s.RefreshInterval,
		"timeout":          s.Timeout,
		"max items":        s.MaxItems,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
