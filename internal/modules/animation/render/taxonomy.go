package render

import (
	"regexp"
	"strings"
)

// FailureCategory is the closed failure taxonomy. Adding a value is a change to retry policy.
type FailureCategory string

const (
	MissingAxisLabel   FailureCategory = "MissingAxisLabel"
	SceneSyntax        FailureCategory = "SceneSyntax"
	MissingDataColumn  FailureCategory = "MissingDataColumn"
	DataTypeIssue      FailureCategory = "DataTypeIssue"
	PerformanceTimeout FailureCategory = "PerformanceTimeout"
	UnknownRuntime     FailureCategory = "UnknownRuntime"
)

var AllCategories = []FailureCategory{
	MissingAxisLabel, SceneSyntax, MissingDataColumn, DataTypeIssue, PerformanceTimeout, UnknownRuntime,
}

// RetryEligible is true only for SceneSyntax.
func (c FailureCategory) RetryEligible() bool {
	return c == SceneSyntax
}

func (c FailureCategory) Valid() bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}

func (c FailureCategory) Summary() string {
	switch c {
	case MissingAxisLabel:
		return "An axis label was empty when the scene was built. The generator must supply a default label."
	case SceneSyntax:
		return "The generated scene code is not valid and could not be compiled by the renderer."
	case MissingDataColumn:
		return "A mapped column is missing from the dataset. Re-check the column mapping."
	case DataTypeIssue:
		return "A column mapped as numeric contains values that are not numbers."
	case PerformanceTimeout:
		return "The render exceeded its time limit. Try fewer rows, a smaller top-N, or a lower quality."
	default:
		return "The renderer failed with an unexpected error."
	}
}

type rule struct {
	category FailureCategory
	match    func(s string) bool
}

var (
	reNoneType    = regexp.MustCompile(`nonetype`)
	reKeyError    = regexp.MustCompile(`\bkeyerror\b`)
	reConvert     = regexp.MustCompile(`could not convert|invalid literal for (int|float)|unsupported operand type`)
	reSyntax      = regexp.MustCompile(`\b(syntaxerror|indentationerror|nameerror|taberror)\b`)
	reTimeout     = regexp.MustCompile(`timed out|timeout expired|deadline exceeded`)
	reAxisLabel   = regexp.MustCompile(`\.find\b|\btext\(|\btex\(|label`)
	reNaNValue    = regexp.MustCompile(`\bnan\b`)
	reValueSignal = regexp.MustCompile(`value`)
)

// Order matters: the first matching rule wins.
var rules = []rule{
	{MissingAxisLabel, func(s string) bool { return reNoneType.MatchString(s) && reAxisLabel.MatchString(s) }},
	{MissingDataColumn, reKeyError.MatchString},
	{DataTypeIssue, func(s string) bool {
		return reConvert.MatchString(s) || (reNaNValue.MatchString(s) && reValueSignal.MatchString(s))
	}},
	{SceneSyntax, reSyntax.MatchString},
	{PerformanceTimeout, reTimeout.MatchString},
}

// Classify maps raw renderer error text to a category. It is called exactly once, where the
// raw text is received.
func Classify(raw string) FailureCategory {
	s := strings.ToLower(raw)
	if strings.TrimSpace(s) == "" {
		return UnknownRuntime
	}
	for _, r := range rules {
		if r.match(s) {
			return r.category
		}
	}
	return UnknownRuntime
}
