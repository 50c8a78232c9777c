package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

//go:embed skeletons/*.py.tmpl
var skeletonFS embed.FS

var skeletonTemplates = template.Must(
	template.New("skeletons").
		Option("missingkey=error").
		Funcs(template.FuncMap{"py": PyString, "pylist": pyList, "num": pyNumber}).
		ParseFS(skeletonFS, "skeletons/*.py.tmpl"),
)

// PyString renders s as an ASCII-only double-quoted literal that Python parses to the
// same string. Backticks are escaped so cell text can never form a markdown fence in the
// rendered source.
func PyString(s string) string {
	return strings.ReplaceAll(strconv.QuoteToASCII(s), "`", `\x60`)
}

func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = PyString(it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func pyNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type skeletonData struct {
	SkeletonInput
}

func (d skeletonData) Col(key string) string   { return d.Columns[key] }
func (d skeletonData) Label(key string) string { return d.Labels[key] }

// OptCol renders an optional column as a Python literal or None.
func (d skeletonData) OptCol(key string) string {
	if c := d.Columns[key]; c != "" {
		return PyString(c)
	}
	return "None"
}

func skeleton(id string) SkeletonFunc {
	name := id + ".py.tmpl"
	return func(in SkeletonInput) (string, error) {
		if in.Style.Palette.ID == "" {
			in.Style = ResolveStyle(in.Style.Theme, "")
		}
		var buf bytes.Buffer
		if err := skeletonTemplates.ExecuteTemplate(&buf, name, skeletonData{in}); err != nil {
			return "", fmt.Errorf("render %s skeleton: %w", id, err)
		}
		return strings.TrimSpace(buf.String()) + "\n", nil
	}
}
