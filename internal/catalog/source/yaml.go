// Package source provides catalog.Source implementations.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"registrar/internal/catalog/models"
)

// File is the on-disk course file layout.
//
//	courses:
//	  - id: py-101
//	    name: Intro to Python
//	    capacity: 30
//	    opens_at: 2026-09-01T08:00:00Z
//	    closes_at: 2026-09-15T08:00:00Z
type File struct {
	Courses []models.Course `yaml:"courses"`
}

// YAMLFile loads courses from a YAML file, re-read on every Load.
type YAMLFile struct {
	path string
}

func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

func (s *YAMLFile) Name() string { return "yaml:" + s.path }

func (s *YAMLFile) Load(ctx context.Context) ([]models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read course file: %w", err)
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a course file, rejecting unknown fields.
func ParseYAML(raw []byte) ([]models.Course, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode course file: %w", err)
	}
	return file.Courses, nil
}
