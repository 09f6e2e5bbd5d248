package compress

import "strings"

// compressWhitespace normalizes each line: leading and trailing
// whitespace is trimmed, internal runs of spaces and tabs collapse to a
// single space, and blank lines are dropped entirely. This is the
// middle compression tier, used when structural compression is
// unavailable.
func compressWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		out = append(out, strings.Join(fields, " "))
	}

	return strings.Join(out, "\n")
}
