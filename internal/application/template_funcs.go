package application

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"
)

// judgeTemplateFuncs returns the functions available to judge prompt
// templates. Every function is pure and never panics on bad input.
//
// Template usage:
//
//	Turn {{.Turn}}: {{truncate .Answer 2000}}
//	{{if contains (lower .Question) "code"}}Check the code compiles.{{end}}
//	Temperature: {{option .Options "temperature" "default"}}
func judgeTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },

		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"lower":     strings.ToLower,
		"upper":     strings.ToUpper,
		"trim":      strings.TrimSpace,
		"join":      func(elems []string, sep string) string { return strings.Join(elems, sep) },
		"split":     func(s, sep string) []string { return strings.Split(s, sep) },
		"replace":   func(s, old, new string) string { return strings.ReplaceAll(s, old, new) },

		"truncate": truncateRunes,
		"indent":   indentLines,
		"option":   lookupOption,
	}
}

// truncateRunes limits s to n runes, ending with "..." when shortened and
// there is room for it.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n > 3 {
		return string(runes[:n-3]) + "..."
	}
	return string(runes[:n])
}

// indentLines prefixes every line of s with n spaces.
func indentLines(n int, s string) string {
	if n <= 0 || s == "" {
		return s
	}
	pad := strings.Repeat(" ", n)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}

// lookupOption returns opts[key] formatted with %v, or fallback when the key
// is absent. It lets templates read judge options that may not be set
// without tripping missingkey=error.
func lookupOption(opts map[string]any, key, fallback string) string {
	v, ok := opts[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}
