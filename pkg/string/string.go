package string

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a Go field name into the snake_case form used in
// validation messages.
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EqualFoldSpace reports whether a and b are equal ignoring case and
// differences in whitespace.
func EqualFoldSpace(a, b string) bool {
	return strings.EqualFold(CollapseSpace(a), CollapseSpace(b))
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
