// Package sqlname normalizes quoted or bracketed SQL identifiers.
package sqlname

import "strings"

var closers = map[byte]byte{
	'"':  '"',
	'`':  '`',
	'[':  ']',
	'\'': '\'',
}

// Unquote strips one layer of quoting around an identifier token:
// "name", `name`, [name] or 'name'. Doubled quote characters inside the
// token are collapsed. Anything else is returned unchanged.
func Unquote(token string) string {
	if len(token) < 2 {
		return token
	}
	closer, ok := closers[token[0]]
	if !ok || token[len(token)-1] != closer {
		return token
	}
	inner := token[1 : len(token)-1]
	if token[0] == '[' {
		return strings.ReplaceAll(inner, "]]", "]")
	}
	q := string(closer)
	return strings.ReplaceAll(inner, q+q, q)
}

// Split separates a possibly qualified name ("schema.table") into its
// unquoted parts. Dots inside quotes do not split.
func Split(name string) []string {
	var parts []string
	var quote byte
	start := 0

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '`' || c == '\'':
			quote = c
		case c == '[':
			quote = ']'
		case c == '.':
			parts = append(parts, Unquote(strings.TrimSpace(name[start:i])))
			start = i + 1
		}
	}

	return append(parts, Unquote(strings.TrimSpace(name[start:])))
}

// Base returns the last part of a possibly qualified name
func Base(name string) string {
	parts := Split(name)
	return parts[len(parts)-1]
}
