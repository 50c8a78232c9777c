package codegen

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// StructuralError rejects generated source before it reaches the renderer.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "generated source rejected: " + e.Reason
}

// SyntaxChecker parses source in the renderer's language.
type SyntaxChecker interface {
	CheckSyntax(ctx context.Context, source string) error
}

var (
	classRe     = regexp.MustCompile(`(?m)^class\s+` + EntryPoint + `\s*\(\s*(?:\w+\.)?\w*Scene\s*\)\s*:`)
	anyClassRe  = regexp.MustCompile(`(?m)^class\s+` + EntryPoint + `\b`)
	constructRe = regexp.MustCompile(`(?m)^\s+def\s+construct\s*\(\s*self\s*\)\s*:`)
)

// Validate enforces the structural contract: one GenScene(Scene) class with a
// construct(self) method, no markdown fences, balanced brackets.
func Validate(source string) error {
	if strings.TrimSpace(source) == "" {
		return &StructuralError{Reason: "empty source"}
	}
	if strings.Contains(source, "```") {
		return &StructuralError{Reason: "contains markdown code fences"}
	}
	switch n := len(anyClassRe.FindAllStringIndex(source, -1)); {
	case n == 0:
		return &StructuralError{Reason: "missing class " + EntryPoint}
	case n > 1:
		return &StructuralError{Reason: "class " + EntryPoint + " defined more than once"}
	}
	if !classRe.MatchString(source) {
		return &StructuralError{Reason: "expected class " + EntryPoint + "(Scene):"}
	}
	if !constructRe.MatchString(source) {
		return &StructuralError{Reason: "missing def construct(self): in " + EntryPoint}
	}
	if err := checkBrackets(source); err != nil {
		return &StructuralError{Reason: err.Error()}
	}
	return nil
}

// checkBrackets matches (), [] and {} outside string literals and comments.
func checkBrackets(src string) error {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	type open struct {
		ch   rune
		line int
	}
	var stack []open
	rs := []rune(src)
	line := 1
	for i := 0; i < len(rs); i++ {
		ch := rs[i]
		switch {
		case ch == '\n':
			line++
		case ch == '#':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			i--
		case ch == '\'' || ch == '"':
			end, nl, ok := skipString(rs, i)
			if !ok {
				return fmt.Errorf("unterminated string starting on line %d", line)
			}
			line += nl
			i = end
		case ch == '(' || ch == '[' || ch == '{':
			stack = append(stack, open{ch, line})
		case ch == ')' || ch == ']' || ch == '}':
			if len(stack) == 0 {
				return fmt.Errorf("unmatched %q on line %d", ch, line)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.ch != pairs[ch] {
				return fmt.Errorf("mismatched %q from line %d closed by %q on line %d", top.ch, top.line, ch, line)
			}
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Errorf("unclosed %q from line %d", top.ch, top.line)
	}
	return nil
}

// skipString returns the index of the closing quote of the literal starting at i and
// the number of newlines inside it.
func skipString(rs []rune, i int) (end, newlines int, ok bool) {
	q := rs[i]
	triple := i+2 < len(rs) && rs[i+1] == q && rs[i+2] == q
	j := i + 1
	if triple {
		j = i + 3
	}
	for ; j < len(rs); j++ {
		switch rs[j] {
		case '\\':
			if j+1 < len(rs) && rs[j+1] == '\n' {
				newlines++
			}
			j++
		case '\n':
			if !triple {
				return 0, 0, false
			}
			newlines++
		case q:
			if !triple {
				return j, newlines, true
			}
			if j+2 < len(rs) && rs[j+1] == q && rs[j+2] == q {
				return j + 2, newlines, true
			}
		}
	}
	return 0, 0, false
}
