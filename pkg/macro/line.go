// Package macro builds and inspects the single-line commands understood by
// the playback engine: argument joining, space escaping, control markers and
// the engine's status sentinels.
package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// SpacePlaceholder replaces literal spaces in appended values so a value
// never splits the command line.
const SpacePlaceholder = "<SP>"

// Selection prefixes used by Join.
const (
	PrefixIndex = "#"
	PrefixCode  = "%"
	PrefixText  = "$"
)

// Join prefixes every value with prefix and joins them with ":".
// Join(["a","b"], "#") == "#a:#b". An empty slice yields "".
func Join(values []string, prefix string) string {
	if len(values) == 0 {
		return ""
	}
	return prefix + strings.Join(values, ":"+prefix)
}

// JoinInts is Join for integer selections.
func JoinInts(values []int, prefix string) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(v)
	}
	return Join(strs, prefix)
}

// EscapeSpaces replaces every literal space with SpacePlaceholder.
func EscapeSpaces(value string) string {
	return strings.ReplaceAll(value, " ", SpacePlaceholder)
}

// UnescapeSpaces reverses EscapeSpaces.
func UnescapeSpaces(value string) string {
	return strings.ReplaceAll(value, SpacePlaceholder, " ")
}

// Append concatenates an escaped value onto line.
func Append(line, value string) string {
	return line + EscapeSpaces(value)
}

// Skippable reports whether line carries no instruction: blank lines and
// comments (lines starting with a single quote) are never dispatched.
func Skippable(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	return line[0] == '\''
}

// WaitLine returns the engine command that waits the given seconds.
func WaitLine(seconds float64) string {
	return fmt.Sprintf("WAIT SECONDS=%s", strconv.FormatFloat(seconds, 'f', -1, 64))
}

// PauseLine is the engine command that suspends playback until the user resumes.
const PauseLine = "PAUSE"
