// Package catalog loads the static product catalog and holds the operator's selection.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// File is the on-disk catalog format.
type File struct {
	DefaultSelection []string `yaml:"default_selection"`
	Products         []Entry  `yaml:"products" validate:"required,min=1,dive"`
}

// Entry is one product in the catalog file.
type Entry struct {
	ID   string `yaml:"id" validate:"required,max=64,excludesall=0x2C"`
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,http_url"`
}

var validate = validator.New()

// Load reads a catalog from path; an empty path selects the embedded default catalog.
func Load(path string) (*File, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Products))
	for _, e := range f.Products {
		if strings.ContainsAny(e.ID, " \t\n") || strings.EqualFold(e.ID, AllProducts) {
			return nil, fmt.Errorf("invalid catalog: bad product id %q", e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate product id %q", e.ID)
		}
		seen[e.ID] = true
	}
	if len(f.DefaultSelection) == 0 {
		return nil, errors.New("invalid catalog: default_selection is empty")
	}
	return &f, nil
}

// ProductList converts the entries into domain products, preserving file order.
func (f *File) ProductList() []domain.Product {
	out := make([]domain.Product, 0, len(f.Products))
	for _, e := range f.Products {
		out = append(out, domain.Product{ID: e.ID, DisplayName: e.Name, SourceURL: e.URL})
	}
	return out
}
