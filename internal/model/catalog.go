package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a work-item catalog.
type catalogFile struct {
	WorkItems []WorkItem `yaml:"work_items"`
}

// LoadCatalog reads a YAML work-item catalog and builds a Directory from
// it. The catalog stands in for the remote accounting API and is supplied
// fresh for each reconciliation run.
func LoadCatalog(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML into a Directory.
func ParseCatalog(data []byte) (*Directory, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return NewDirectory(file.WorkItems)
}
