package internal

import "strings"

// Indent prefixes every line of s, keeping a trailing newline.
func Indent(s, prefix string) string {
	endsWithNewline := strings.HasSuffix(s, "\n")
	split := strings.Split(strings.TrimSuffix(s, "\n"), "\n")

	for i, ss := range split {
		split[i] = prefix + ss
	}
	joined := strings.Join(split, "\n")
	if endsWithNewline {
		joined += "\n"
	}

	return joined
}
