package browser

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/lazylink/pkg/macro"
)

// Command is one parsed macro line: the command word and its KEY=VALUE
// parameters. Keys are upper-cased; values are kept verbatim.
type Command struct {
	Name   string
	Params map[string]string
	Raw    string
}

// ParseCommand splits line into a command word and parameters.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	cmd := Command{
		Name:   strings.ToUpper(fields[0]),
		Params: make(map[string]string, len(fields)-1),
		Raw:    line,
	}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return Command{}, fmt.Errorf("%s: malformed parameter %q", cmd.Name, f)
		}
		cmd.Params[strings.ToUpper(key)] = value
	}
	return cmd, nil
}

// Target is the element a TAG command addresses.
type Target struct {
	ID   string // ATTR=ID:<id>
	Text string // ATTR=TXT:<text>
	Pos  int    // POS=<n>, 1-based; 0 when absent
}

// Target reads the ATTR and POS parameters.
func (c Command) Target() (Target, error) {
	attr, ok := c.Params["ATTR"]
	if !ok {
		return Target{}, fmt.Errorf("%s: missing ATTR", c.Name)
	}
	var t Target
	if pos := c.Params["POS"]; pos != "" {
		if _, err := fmt.Sscanf(pos, "%d", &t.Pos); err != nil || t.Pos < 1 {
			return Target{}, fmt.Errorf("%s: invalid POS %q", c.Name, pos)
		}
	}
	kind, value, _ := strings.Cut(attr, ":")
	switch strings.ToUpper(kind) {
	case "ID":
		t.ID = value
	case "TXT":
		t.Text = macro.UnescapeSpaces(value)
	default:
		return Target{}, fmt.Errorf("%s: unsupported ATTR %q", c.Name, attr)
	}
	if strings.Contains(value, "&&") || value == "" {
		return Target{}, fmt.Errorf("%s: unsupported ATTR %q", c.Name, attr)
	}
	return t, nil
}

// ContentKind tells how CONTENT is applied.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentFill
	ContentIndex
	ContentCode
	ContentText
)

// Content is a decoded CONTENT parameter.
type Content struct {
	Kind   ContentKind
	Values []string
}

// Content decodes CONTENT. Selections (#n, %code, $text) may list several
// values joined with ':'; anything else fills the field. Space
// placeholders are expanded.
func (c Command) Content() Content {
	raw, ok := c.Params["CONTENT"]
	if !ok {
		return Content{Kind: ContentNone}
	}
	raw = macro.UnescapeSpaces(raw)
	for prefix, kind := range map[string]ContentKind{
		macro.PrefixIndex: ContentIndex,
		macro.PrefixCode:  ContentCode,
		macro.PrefixText:  ContentText,
	} {
		if strings.HasPrefix(raw, prefix) {
			return Content{Kind: kind, Values: strings.Split(raw[len(prefix):], ":"+prefix)}
		}
	}
	return Content{Kind: ContentFill, Values: []string{raw}}
}
