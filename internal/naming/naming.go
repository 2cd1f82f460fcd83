// Where: internal/naming/naming.go
// What: Logical-name normalization shared by template keys and repository names.
// Why: Resource ids must follow the deployment framework's normalized-name rules.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize upper-cases the first rune and spells out dashes and underscores.
func Normalize(name string) string {
	name = strings.ReplaceAll(name, "-", "Dash")
	name = strings.ReplaceAll(name, "_", "Underscore")
	return upperFirst(name)
}

// Logical strips dashes before normalizing, as done for service and function names.
func Logical(name string) string {
	return Normalize(strings.ReplaceAll(name, "-", ""))
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
