package activation

import "strings"

// Normalize terminates a one-line hook script with ";" so the interpreter
// does not echo its value. Scripts already ending in a terminator, a
// background "&" or a line continuation are left alone, as are multi-line
// scripts, whose last newline ends the final command. Blank scripts
// normalize to "".
func Normalize(script string) string {
	s := strings.TrimRight(script, " \t\r\n")
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "\n"):
		return script
	case strings.HasSuffix(s, ";"), strings.HasSuffix(s, "&"), strings.HasSuffix(s, `\`):
		return s
	}
	return s + ";"
}
