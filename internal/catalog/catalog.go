// Package catalog holds the read-only welfare scheme catalog and the
// eligibility filter evaluated against it.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed default_schemes.json
var defaultSchemes []byte

// NoIncomeLimit is the MaxIncome of a scheme whose catalog entry omits max_income.
const NoIncomeLimit = math.MaxInt

// Scheme is a government welfare program with numeric eligibility thresholds.
type Scheme struct {
	Name        string `json:"name"`
	MinAge      int    `json:"min_age"`
	MaxIncome   int    `json:"max_income"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// record is the on-disk shape of a catalog entry. Thresholds are pointers so
// that a missing field can be told apart from an explicit zero.
type record struct {
	Name        string `json:"name" yaml:"name"`
	MinAge      *int   `json:"min_age" yaml:"min_age"`
	MaxIncome   *int   `json:"max_income" yaml:"max_income"`
	Description string `json:"description" yaml:"description"`
	Link        string `json:"link" yaml:"link"`
}

// Catalog is an ordered, immutable list of schemes.
type Catalog struct {
	schemes []Scheme
	byName  map[string]int
}

// New builds a catalog from schemes, keeping the first scheme for each name.
// Dropped names are returned so the caller can report them.
func New(schemes []Scheme) (*Catalog, []string) {
	c := &Catalog{byName: make(map[string]int, len(schemes))}
	var dropped []string
	for _, s := range schemes {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		if _, dup := c.byName[s.Name]; dup {
			dropped = append(dropped, s.Name)
			continue
		}
		c.byName[s.Name] = len(c.schemes)
		c.schemes = append(c.schemes, s)
	}
	return c, dropped
}

// Empty returns a catalog with no schemes. Every eligibility query against it
// yields zero matches.
func Empty() *Catalog {
	c, _ := New(nil)
	return c
}

// Load reads a catalog file. JSON is the default format; files ending in
// .yaml or .yml are parsed as YAML. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, []string, error) {
	if path == "" {
		return Parse(defaultSchemes, "json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return Parse(data, format)
}

// Parse decodes catalog records in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, []string, error) {
	var records []record
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, nil, fmt.Errorf("parse yaml catalog: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&records); err != nil {
			return nil, nil, fmt.Errorf("parse json catalog: %w", err)
		}
	}

	schemes := make([]Scheme, 0, len(records))
	for _, r := range records {
		s := Scheme{
			Name:        r.Name,
			MaxIncome:   NoIncomeLimit,
			Description: strings.TrimSpace(r.Description),
			Link:        strings.TrimSpace(r.Link),
		}
		if r.MinAge != nil {
			s.MinAge = *r.MinAge
		}
		if r.MaxIncome != nil {
			s.MaxIncome = *r.MaxIncome
		}
		schemes = append(schemes, s)
	}
	c, dropped := New(schemes)
	return c, dropped, nil
}

// LoadOrEmpty loads the catalog at path and falls back to an empty catalog
// when the file is missing or malformed. The load error is still returned so
// callers can escalate it; the catalog is never nil.
func LoadOrEmpty(path string, logger *zap.Logger) (*Catalog, error) {
	c, dropped, err := Load(path)
	if err != nil {
		logger.Error("catalog unavailable, continuing with no schemes",
			zap.String("path", path), zap.Error(err))
		return Empty(), err
	}
	for _, name := range dropped {
		logger.Warn("duplicate scheme name ignored", zap.String("name", name))
	}
	logger.Info("catalog loaded", zap.String("path", path), zap.Int("schemes", c.Len()))
	return c, nil
}

// Len returns the number of schemes.
func (c *Catalog) Len() int { return len(c.schemes) }

// Schemes returns a copy of all schemes in catalog order.
func (c *Catalog) Schemes() []Scheme {
	out := make([]Scheme, len(c.schemes))
	copy(out, c.schemes)
	return out
}

// Lookup finds a scheme by its exact name.
func (c *Catalog) Lookup(name string) (Scheme, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Scheme{}, false
	}
	return c.schemes[i], true
}

// Eligible filters the catalog for the given age and annual income.
func (c *Catalog) Eligible(age, income int) []Scheme {
	return Filter(age, income, c.schemes)
}

// Filter returns the schemes s with age >= s.MinAge and income <= s.MaxIncome,
// preserving input order.
func Filter(age, income int, schemes []Scheme) []Scheme {
	var out []Scheme
	for _, s := range schemes {
		if age >= s.MinAge && income <= s.MaxIncome {
			out = append(out, s)
		}
	}
	return out
}
