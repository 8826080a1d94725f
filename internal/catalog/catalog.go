// Package catalog loads the element catalog used to seed the rating store.
//
// The file is YAML:
//
//	elements:
//	  - id: 1
//	    text: arrive en retard
//	    category: amour
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/redflag/internal/domain/model"
)

// Sentinel kinds for catalog errors.
var (
	ErrInvalidCatalog = errors.New("invalid catalog")
)

type fileEntry struct {
	ID       int64  `yaml:"id"`
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

type file struct {
	Elements []fileEntry `yaml:"elements"`
}

// Load reads the catalog at path.
func Load(path string, base float64) ([]model.Element, error) {
	b, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Decode(bytes.NewReader(b), base)
}

// Decode parses a catalog and returns its elements with every segment at
// base. Ids must be positive and unique, texts non-empty and categories
// known.
func Decode(r io.Reader, base float64) ([]model.Element, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	seen := make(map[int64]struct{}, len(f.Elements))
	out := make([]model.Element, 0, len(f.Elements))
	for i, e := range f.Elements {
		if e.ID <= 0 {
			return nil, fmt.Errorf("%w: entry %d: id must be positive", ErrInvalidCatalog, i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalog, e.ID)
		}
		if e.Text == "" {
			return nil, fmt.Errorf("%w: id %d: empty text", ErrInvalidCatalog, e.ID)
		}
		cat, err := model.ParseCategory(e.Category)
		if err != nil || cat == model.CategoryAll {
			return nil, fmt.Errorf("%w: id %d: category %q", ErrInvalidCatalog, e.ID, e.Category)
		}
		seen[e.ID] = struct{}{}
		out = append(out, model.NewElement(e.ID, e.Text, cat, base))
	}
	return out, nil
}
