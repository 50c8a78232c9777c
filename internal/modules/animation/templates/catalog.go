package templates

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogPathEnv names an optional YAML file that replaces the embedded catalog.
const CatalogPathEnv = "TEMPLATE_CATALOG_PATH"

//go:embed catalog.yaml
var catalogFS embed.FS

type yamlCatalog struct {
	Version   int            `yaml:"version"`
	Templates []yamlTemplate `yaml:"templates"`
}

type yamlTemplate struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name"`
	Category     string              `yaml:"category"`
	Description  string              `yaml:"description"`
	DefaultTitle string              `yaml:"default_title"`
	TopN         *int                `yaml:"top_n"`
	Axes         map[string]yamlAxis `yaml:"axes"`
}

type yamlAxis struct {
	Prompt       string `yaml:"prompt"`
	Description  string `yaml:"description"`
	DisplayLabel string `yaml:"display_label"`
}

// Catalog is parsed display metadata keyed by template id.
type Catalog struct {
	Version   int
	Templates map[string]yamlTemplate
}

var validCategories = map[Category]bool{
	CategoryRanking: true, CategoryTrend: true, CategoryCorrelation: true, CategoryDistribution: true,
	CategoryDashboard: true, CategoryCategorical: true, CategoryComparison: true, CategoryGeneral: true,
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	if len(raw.Templates) == 0 {
		return nil, errors.New("template catalog has no templates")
	}
	out := &Catalog{Version: raw.Version, Templates: make(map[string]yamlTemplate, len(raw.Templates))}
	for i, t := range raw.Templates {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("template catalog entry %d: missing id", i)
		}
		if _, dup := out.Templates[id]; dup {
			return nil, fmt.Errorf("template catalog: duplicate id %q", id)
		}
		if t.Category != "" && !validCategories[Category(t.Category)] {
			return nil, fmt.Errorf("template catalog %s: unknown category %q", id, t.Category)
		}
		if t.TopN != nil && *t.TopN < 0 {
			return nil, fmt.Errorf("template catalog %s: negative top_n", id)
		}
		out.Templates[id] = t
	}
	return out, nil
}

// EmbeddedCatalog returns the catalog compiled into the binary.
func EmbeddedCatalog() (*Catalog, error) {
	data, err := catalogFS.ReadFile("catalog.yaml")
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// LoadCatalog reads the override file when set, otherwise the embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return EmbeddedCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// apply overlays catalog metadata onto a code definition. Axis keys and types are not
// touched; catalog axes with unknown keys are ignored.
func (c *Catalog) apply(def Definition) Definition {
	if c == nil {
		return def
	}
	meta, ok := c.Templates[def.ID]
	if !ok {
		return def
	}
	if s := strings.TrimSpace(meta.Name); s != "" {
		def.Name = s
	}
	if s := strings.TrimSpace(meta.Category); s != "" {
		def.Category = Category(s)
	}
	if s := strings.TrimSpace(meta.Description); s != "" {
		def.Description = s
	}
	if s := strings.TrimSpace(meta.DefaultTitle); s != "" {
		def.DefaultTitle = s
	}
	if meta.TopN != nil {
		def.DefaultTopN = *meta.TopN
	}
	axes := make([]AxisRequirement, len(def.Axes))
	copy(axes, def.Axes)
	for i := range axes {
		am, ok := meta.Axes[axes[i].Key]
		if !ok {
			continue
		}
		if s := strings.TrimSpace(am.Prompt); s != "" {
			axes[i].Label = s
		}
		if s := strings.TrimSpace(am.Description); s != "" {
			axes[i].Description = s
		}
		if s := strings.TrimSpace(am.DisplayLabel); s != "" {
			axes[i].DisplayLabel = s
		}
	}
	def.Axes = axes
	return def
}
