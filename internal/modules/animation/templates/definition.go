package templates

import (
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
)

// AxisType is the semantic type an axis accepts.
type AxisType string

const (
	AxisNumeric     AxisType = "numeric"
	AxisCategorical AxisType = "categorical"
	AxisTemporal    AxisType = "temporal"
	AxisAny         AxisType = "any"
)

// Accepts reports column/axis compatibility. Temporal axes also take numeric columns so
// integer years stored as numbers still satisfy them.
func (a AxisType) Accepts(t dataset.SemanticType) bool {
	switch a {
	case AxisNumeric:
		return t == dataset.Numeric
	case AxisCategorical:
		return t == dataset.Categorical
	case AxisTemporal:
		return t == dataset.Temporal || t == dataset.Numeric
	case AxisAny:
		return t == dataset.Numeric || t == dataset.Categorical || t == dataset.Temporal
	}
	return false
}

type Category string

const (
	CategoryRanking      Category = "ranking"
	CategoryTrend        Category = "trend"
	CategoryCorrelation  Category = "correlation"
	CategoryDistribution Category = "distribution"
	CategoryDashboard    Category = "dashboard"
	CategoryCategorical  Category = "categorical"
	CategoryComparison   Category = "comparison"
	CategoryGeneral      Category = "general"
)

// AxisRequirement is one slot a template needs filled.
type AxisRequirement struct {
	Key         string   `json:"key"`
	Required    bool     `json:"required"`
	Type        AxisType `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	// DisplayLabel is the default on-screen axis title.
	DisplayLabel string `json:"display_label"`
}

// SkeletonInput carries everything a skeleton substitutes. Labels must be non-empty for
// every axis the skeleton prints.
type SkeletonInput struct {
	Title    string
	Columns  map[string]string
	Labels   map[string]string
	DataJSON string
	TopN     int
	// Style defaults to DefaultTheme when unset.
	Style Style
}

type SkeletonFunc func(in SkeletonInput) (string, error)

type Definition struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     Category          `json:"category"`
	Description  string            `json:"description"`
	Axes         []AxisRequirement `json:"axes"`
	DefaultTitle string            `json:"default_title"`
	DefaultTopN  int               `json:"default_top_n"`
	Skeleton     SkeletonFunc      `json:"-"`
}

func (d Definition) Axis(key string) (AxisRequirement, bool) {
	for _, a := range d.Axes {
		if a.Key == key {
			return a, true
		}
	}
	return AxisRequirement{}, false
}

func (d Definition) RequiredAxes() []AxisRequirement {
	var out []AxisRequirement
	for _, a := range d.Axes {
		if a.Required {
			out = append(out, a)
		}
	}
	return out
}

func (d Definition) OptionalAxes() []AxisRequirement {
	var out []AxisRequirement
	for _, a := range d.Axes {
		if !a.Required {
			out = append(out, a)
		}
	}
	return out
}

// HasAxis reports whether the template declares key.
func (d Definition) HasAxis(key string) bool {
	_, ok := d.Axis(key)
	return ok
}

// GenerativeFallbackID marks code produced by the generative backend.
const GenerativeFallbackID = "generative_fallback"
