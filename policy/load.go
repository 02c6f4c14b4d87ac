package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads and parses a policy document from path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadFile(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported policy file extension %q: use .json, .yaml, or .yml", ext)
	}

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
