package utils

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// FindPlaceholders lists the distinct {{name}} placeholders in order of appearance
func FindPlaceholders(texts ...string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, text := range texts {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	return names
}

// RenderPlaceholders substitutes {{name}} with values[name]. Placeholders
// without a value are left as written.
func RenderPlaceholders(text string, values map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := values[name]
		if !ok || v == nil {
			return match
		}
		return fmt.Sprint(v)
	})
}
