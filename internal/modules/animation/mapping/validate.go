package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

// ValidationError lists every problem with a proposed mapping.
type ValidationError struct {
	// Missing holds the labels of required axes with no column.
	Missing []string `json:"missing,omitempty"`
	// Unknown holds mapped column names absent from the dataset.
	Unknown []string `json:"unknown,omitempty"`
	// Mismatched describes columns whose type the axis does not accept.
	Mismatched []string `json:"mismatched,omitempty"`
	// UnknownAxes holds keys the template does not declare.
	UnknownAxes []string `json:"unknown_axes,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing mapping for: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown columns: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "type mismatch: "+strings.Join(e.Mismatched, "; "))
	}
	if len(e.UnknownAxes) > 0 {
		parts = append(parts, "unknown axes: "+strings.Join(e.UnknownAxes, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing)+len(e.Unknown)+len(e.Mismatched)+len(e.UnknownAxes) == 0
}

// Validate checks a mapping against a template and dataset. Keys should already be canonical.
func Validate(def templates.Definition, m Mapping, n *dataset.Normalized) error {
	ve := &ValidationError{}
	for key := range m {
		if !def.HasAxis(key) {
			ve.UnknownAxes = append(ve.UnknownAxes, key)
		}
	}
	sort.Strings(ve.UnknownAxes)
	for _, a := range def.Axes {
		col := strings.TrimSpace(m.Col(a.Key))
		if col == "" {
			if a.Required {
				ve.Missing = append(ve.Missing, a.Label)
			}
			continue
		}
		if n == nil {
			continue
		}
		p, ok := n.Profile(col)
		if !ok {
			ve.Unknown = append(ve.Unknown, col)
			continue
		}
		if !a.Type.Accepts(p.Type) {
			ve.Mismatched = append(ve.Mismatched, fmt.Sprintf("%s: %q is %s, needs %s", a.Label, col, p.Type, a.Type))
		}
	}
	if ve.empty() {
		return nil
	}
	return ve
}

// confirmSchema describes the body of a confirm-mapping request.
var confirmSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"mapping"},
	"properties": map[string]interface{}{
		"mapping": map[string]interface{}{
			"type":          "object",
			"minProperties": 1,
			"additionalProperties": map[string]interface{}{
				"type":      []string{"string", "null"},
				"maxLength": 256,
			},
		},
		"labels": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type":      "string",
				"maxLength": 120,
			},
		},
		"title":   map[string]interface{}{"type": "string", "maxLength": 200},
		"top_n":   map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
		"aspect":  map[string]interface{}{"type": "string", "enum": []string{"16:9", "9:16", "1:1"}},
		"quality": map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high"}},
		"style":   map[string]interface{}{"type": "string", "maxLength": 2000},
		"theme":   map[string]interface{}{"type": "string", "enum": styleIDs(templates.Themes(), func(t templates.Theme) string { return t.ID })},
		"palette": map[string]interface{}{"type": "string", "enum": styleIDs(templates.Palettes(), func(p templates.Palette) string { return p.ID })},
	},
}

func styleIDs[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

var confirmSchemaLoader = gojsonschema.NewGoLoader(confirmSchema)

// ValidatePayload checks a raw confirm-mapping request body against its JSON schema.
func ValidatePayload(raw []byte) error {
	result, err := gojsonschema.Validate(confirmSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("mapping payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("mapping payload invalid: %s", strings.Join(errs, ", "))
}
