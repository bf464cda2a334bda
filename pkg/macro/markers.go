package macro

import "strings"

// Marker tokens embedded in command lines. They are plain substrings so the
// lines stay compatible with the engine's single-line format.
const (
	saveOpen   = "{{SAVE_TO:"
	valueOpen  = "{{VALUE_FROM:"
	markerEnd  = "}}"
	idAttr     = "ATTR=ID:"
	contentKey = "CONTENT="

	// IndexPlaceholder marks where Click substitutes a row/link index.
	IndexPlaceholder = "{{index}}"
)

// SaveMarker returns the marker requesting that the addressed element's
// value be captured into the named variable.
func SaveMarker(name string) string { return saveOpen + name + markerEnd }

// ValueMarker returns the marker requesting substitution of the named
// variable's value.
func ValueMarker(name string) string { return valueOpen + name + markerEnd }

// Line is a tokenized command line.
type Line struct {
	Raw string

	// SaveTo is the variable named by a save marker; HasSave reports
	// whether the marker was present at all.
	SaveTo  string
	HasSave bool
	saveAt  int

	// ValueFrom is the variable named by a substitution marker.
	ValueFrom string
	HasValue  bool
	valueAt   int

	// ElementID is the token following ATTR=ID:, if any.
	ElementID string
}

// Parse tokenizes raw, locating control markers and the element id.
func Parse(raw string) Line {
	l := Line{Raw: raw, saveAt: -1, valueAt: -1}
	if i := strings.Index(raw, saveOpen); i >= 0 {
		l.HasSave = true
		l.saveAt = i
		l.SaveTo = markerName(raw[i+len(saveOpen):])
	}
	if i := strings.Index(raw, valueOpen); i >= 0 {
		l.HasValue = true
		l.valueAt = i
		l.ValueFrom = markerName(raw[i+len(valueOpen):])
	}
	l.ElementID = ElementID(raw)
	return l
}

// markerName reads up to the closing braces, or to the end of the line when
// they are missing.
func markerName(rest string) string {
	if end := strings.Index(rest, markerEnd); end >= 0 {
		return rest[:end]
	}
	return rest
}

// WithoutSave returns the line with the save marker removed.
func (l Line) WithoutSave() string {
	if !l.HasSave {
		return l.Raw
	}
	rest := l.Raw[l.saveAt+len(saveOpen):]
	tail := ""
	if end := strings.Index(rest, markerEnd); end >= 0 {
		tail = rest[end+len(markerEnd):]
	}
	return strings.TrimRight(l.Raw[:l.saveAt]+tail, " ")
}

// Substitute replaces the substitution marker and everything after it with
// value. Lines without the marker are returned unchanged.
func (l Line) Substitute(value string) string {
	if !l.HasValue {
		return l.Raw
	}
	return l.Raw[:l.valueAt] + value
}

// ElementID extracts the element identifier addressed by ATTR=ID:. The id
// ends at the first space or marker. Returns "" when the line has none.
func ElementID(line string) string {
	i := strings.Index(line, idAttr)
	if i < 0 {
		return ""
	}
	rest := line[i+len(idAttr):]
	if j := strings.IndexAny(rest, " \t"); j >= 0 {
		rest = rest[:j]
	}
	if j := strings.Index(rest, "{{"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(strings.TrimSuffix(rest, contentKey))
}

// SaveLine rewrites a locator into a capture request: the CONTENT= key is
// dropped, any FORM…ATTR span collapses to ATTR and the save marker is
// appended.
func SaveLine(locator, name string) string {
	line := strings.Replace(locator, contentKey, "", 1)
	if f := strings.Index(line, "FORM"); f >= 0 {
		if a := strings.LastIndex(line, "ATTR"); a > f {
			line = line[:f] + line[a:]
		}
	}
	return line + SaveMarker(name)
}

// ValueLine appends the substitution marker for name to locator.
func ValueLine(locator, name string) string {
	return locator + ValueMarker(name)
}

// HasIndexPlaceholder reports whether locator carries IndexPlaceholder.
func HasIndexPlaceholder(locator string) bool {
	return strings.Contains(locator, IndexPlaceholder)
}

// FillIndex substitutes the first IndexPlaceholder with index.
func FillIndex(locator, index string) string {
	return strings.Replace(locator, IndexPlaceholder, index, 1)
}
