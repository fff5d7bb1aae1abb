// Package strcase converts identifiers between common naming conventions.
//
// It is deliberately minimal: just enough case conversion for column/table
// name derivation (Snake) and for journald field names (ScreamingSnake).
package strcase

import "strings"

// Snake converts a CamelCase or PascalCase identifier to snake_case.
func Snake(s string) string {
	return convert(s, '_', false)
}

// ScreamingSnake converts a CamelCase or PascalCase identifier to SCREAMING_SNAKE_CASE.
func ScreamingSnake(s string) string {
	return convert(s, '_', true)
}

func convert(s string, sep rune, upper bool) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/3)

	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevLower || (nextLower && runes[i-1] != sep) {
					b.WriteRune(sep)
				}
			}

			if upper {
				b.WriteRune(r)
			} else {
				b.WriteRune(r - 'A' + 'a')
			}
		} else {
			if upper && r >= 'a' && r <= 'z' {
				b.WriteRune(r - 'a' + 'A')
			} else {
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}
