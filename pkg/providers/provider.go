// Package providers defines the host contracts the harness consumes (the
// playback engine, the page, script loading and the display surface) and
// the stock implementations that do not need a browser.
package providers

import "context"

// Executor is the playback engine. Execute dispatches a single command line
// and returns the engine status code; it never returns a Go error, transport
// failures are reported as status codes with LastErrorText set.
// Implementations: CommandExecutor, replay.Executor, browser.Engine.
type Executor interface {
	Execute(ctx context.Context, line string) int
	LastErrorText() string
}

// Option is one entry of a select or list box.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Text  string `json:"text" yaml:"text"`
}

// ElementRef is a point-in-time snapshot of a page element.
type ElementRef struct {
	ID            string   `json:"id" yaml:"id"`
	Value         string   `json:"value" yaml:"value"`
	Text          string   `json:"text" yaml:"text"` // inner HTML
	SelectedIndex int      `json:"selected_index" yaml:"selected_index"`
	Options       []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// SelectedOption returns the option at SelectedIndex.
func (e *ElementRef) SelectedOption() (Option, bool) {
	if e.SelectedIndex < 0 || e.SelectedIndex >= len(e.Options) {
		return Option{}, false
	}
	return e.Options[e.SelectedIndex], true
}

// Page reads live element state. ElementByID returns nil, nil when no
// element carries the id.
type Page interface {
	ElementByID(ctx context.Context, id string) (*ElementRef, error)
}

// Loader resolves script references and fetches their text.
type Loader interface {
	ResolveURL(ref string) (string, error)
	LoadText(ctx context.Context, url string) (string, error)
}

// Display shows a message on the user-facing surface.
type Display interface {
	Display(msg string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(msg string)

// Display calls f(msg).
func (f DisplayFunc) Display(msg string) { f(msg) }
