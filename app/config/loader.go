package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"feedsink/app/feed"
)

// Loader reads seed subscription files from a directory. Each YAML file
// holds one subscription (url + user).
type Loader struct {
	seedsDir string
}

func NewLoader(seedsDir string) *Loader {
	return &Loader{seedsDir: seedsDir}
}

// LoadAll loads every .yml/.yaml file from the seeds directory. A missing
// directory yields an empty list, not an error.
func (l *Loader) LoadAll() ([]Seed, error) {
	var seeds []Seed

	if l.seedsDir == "" {
		return seeds, nil
	}
	if _, err := os.Stat(l.seedsDir); os.IsNotExist(err) {
		return seeds, nil
	}

	files, err := filepath.Glob(filepath.Join(l.seedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(l.seedsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	for _, file := range files {
		seed, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(seed); err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", file, err)
		}

		seeds = append(seeds, *seed)
	}

	return seeds, nil
}

func (l *Loader) loadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &seed, nil
}

func (l *Loader) validate(seed *Seed) error {
	if seed.User == "" {
		return fmt.Errorf("user is required")
	}
	if err := feed.ValidateURL(seed.URL); err != nil {
		return err
	}
	return nil
}
