package templates

import (
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
)

// nameSimilarity is the trigram Jaccard floor for near-miss spellings ("yearr").
const nameSimilarity = 0.65

// axisSynonyms lists name tokens that suggest a column fits an axis role. The role is
// the axis key without its "_column" suffix.
var axisSynonyms = map[string][]string{
	"time":     {"time", "year", "date", "period", "month", "day", "week", "quarter", "tahun", "periode", "bulan", "tanggal", "waktu"},
	"entity":   {"entity", "name", "country", "company", "item", "player", "team", "city", "state", "label", "id", "nama", "negara"},
	"value":    {"value", "amount", "total", "count", "score", "revenue", "sales", "gdp", "population", "price", "nilai", "jumlah"},
	"group":    {"group", "region", "continent", "category", "segment", "sector", "type", "class", "kategori", "wilayah"},
	"x":        {"x"},
	"y":        {"y"},
	"size":     {"size", "population", "volume", "weight", "radius", "ukuran"},
	"label":    {"label", "name", "metric", "kpi", "title", "indicator"},
	"change":   {"change", "delta", "growth", "pct", "percent", "diff", "perubahan"},
	"category": {"category", "item", "name", "label", "type", "kategori"},
}

// Role strips the column suffix from an axis key: "time_column" -> "time".
func Role(axisKey string) string {
	k := strings.ToLower(strings.TrimSpace(axisKey))
	k = strings.TrimSuffix(k, "_column")
	k = strings.TrimSuffix(k, "_col")
	return k
}

// NameHints reports whether a column name textually suggests the axis: a shared token
// with the role or its synonyms, or close trigram similarity to one of them.
func NameHints(axisKey, column string) bool {
	role := Role(axisKey)
	words := append([]string{role}, axisSynonyms[role]...)
	toks := dataset.Tokens(column)
	for _, tok := range toks {
		for _, w := range words {
			if tok == w || tok == w+"s" {
				return true
			}
		}
	}
	joined := strings.Join(toks, "")
	if len(joined) < 3 {
		return false
	}
	for _, w := range words {
		if len(w) >= 3 && trigramJaccard(joined, w) >= nameSimilarity {
			return true
		}
	}
	return false
}

func trigrams(s string) map[string]struct{} {
	out := map[string]struct{}{}
	r := []rune(s)
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = struct{}{}
	}
	return out
}

func trigramJaccard(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}
