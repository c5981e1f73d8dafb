// Package catalog loads the grade ladders and the attendance weighting table
// from YAML. An embedded default catalog is used when no file is configured.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the validated result of loading a catalog document.
type Catalog struct {
	Ladder    *grade.Ladder
	Weighting *attendance.Weighting
}

// document mirrors the YAML layout.
type document struct {
	Weights map[attendance.SessionKind]int `yaml:"weights"`
	Ladders map[grade.Category][]entry     `yaml:"ladders"`
}

type entry struct {
	ID           grade.ID            `yaml:"id"`
	Name         string              `yaml:"name"`
	Requirements *grade.Requirements `yaml:"requirements"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog. Grades are ranked in the order they
// are listed. Validation failures carry shared.ErrConfiguration.
func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	var grades []grade.Grade
	for cat, entries := range doc.Ladders {
		for i, e := range entries {
			grades = append(grades, grade.Grade{
				ID:           e.ID,
				Name:         e.Name,
				Category:     cat,
				Ordinal:      i + 1,
				Requirements: e.Requirements,
			})
		}
	}

	ladder, err := grade.NewLadder(grades)
	if err != nil {
		return nil, err
	}
	weighting, err := attendance.NewWeighting(doc.Weights)
	if err != nil {
		return nil, err
	}

	return &Catalog{Ladder: ladder, Weighting: weighting}, nil
}
