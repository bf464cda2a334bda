package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/lazylink/pkg/config"
	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/providers"
	"github.com/ormasoftchile/lazylink/pkg/runtime"
)

type recordingExecutor struct {
	lines []string
	codes map[string]int
}

func (r *recordingExecutor) Execute(ctx context.Context, line string) int {
	r.lines = append(r.lines, line)
	if code, ok := r.codes[line]; ok {
		return code
	}
	return macro.StatusOK
}

func (r *recordingExecutor) LastErrorText() string { return "failed" }

type staticPage map[string]*providers.ElementRef

func (s staticPage) ElementByID(ctx context.Context, id string) (*providers.ElementRef, error) {
	return s[id], nil
}

type memLoader map[string]string

func (m memLoader) ResolveURL(ref string) (string, error) { return ref, nil }

func (m memLoader) LoadText(ctx context.Context, url string) (string, error) {
	text, ok := m[url]
	if !ok {
		return "", fmt.Errorf("no such script: %s", url)
	}
	return text, nil
}

const formDoc = `
login:
  user: "TAG POS=1 TYPE=INPUT:TEXT FORM=NAME:login ATTR=ID:user CONTENT="
  submit: "TAG POS=1 TYPE=BUTTON ATTR=ID:go"
profile:
  country: "TAG POS=1 TYPE=SELECT ATTR=ID:country CONTENT="
  nick: "TAG POS=1 TYPE=INPUT:TEXT ATTR=ID:nick CONTENT="
`

var formPage = staticPage{
	"user": {ID: "user", Value: "Ann Lee"},
	"country": {ID: "country", SelectedIndex: 1, Options: []providers.Option{
		{Value: "", Text: "Choose"},
		{Value: "cl", Text: "Chile"},
	}},
}

func newHost(t *testing.T, exec *recordingExecutor) *Host {
	t.Helper()
	cfg := config.Default()
	e := runtime.NewEngine(cfg, exec, log.New(io.Discard))
	e.Page = formPage
	e.Display = providers.DisplayFunc(func(string) {})

	root, err := locator.Parse([]byte(formDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return NewHost(e, locator.Extend(root, e, e.Page))
}

func TestEvalGlobals(t *testing.T) {
	exec := &recordingExecutor{}
	h := newHost(t, exec)

	err := h.Eval(context.Background(), "globals.lua", `
		playMacro("URL GOTO=http://example.com")
		playMacro("TAG ATTR=ID:q CONTENT=", "two words")
		playMacros("WAIT SECONDS=1\n' skipped\nREFRESH")
		wait(0.5)
		pause()
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	want := []string{
		"URL GOTO=http://example.com",
		"TAG ATTR=ID:q CONTENT=two<SP>words",
		"WAIT SECONDS=1",
		"REFRESH",
		"WAIT SECONDS=0.5",
		"PAUSE",
	}
	if fmt.Sprint(exec.lines) != fmt.Sprint(want) {
		t.Errorf("dispatched %q, want %q", exec.lines, want)
	}
}

func TestEvalElementChaining(t *testing.T) {
	exec := &recordingExecutor{}
	h := newHost(t, exec)

	err := h.Eval(context.Background(), "chain.lua", `
		elements.login.user:value("Ann")
			.profile.country:selectByIndexOrLast(0)
			.login.submit:click()
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	want := []string{
		"TAG POS=1 TYPE=INPUT:TEXT FORM=NAME:login ATTR=ID:user CONTENT=Ann",
		"TAG POS=1 TYPE=SELECT ATTR=ID:country CONTENT=#2",
		"TAG POS=1 TYPE=BUTTON ATTR=ID:go",
	}
	if fmt.Sprint(exec.lines) != fmt.Sprint(want) {
		t.Errorf("dispatched %q, want %q", exec.lines, want)
	}
}

func TestEvalVariablesAndReadAccessors(t *testing.T) {
	exec := &recordingExecutor{}
	h := newHost(t, exec)

	err := h.Eval(context.Background(), "vars.lua", `
		local country = elements.profile.country
		assert(country:id() == "country")
		assert(country:path() == "profile.country")
		assert(country:exists())
		assert(country:selectedIndex() == 1)
		assert(country:selectedCode() == "cl")
		assert(country:selectedText() == "Chile")
		assert(not elements.profile.nick:exists())
		local v, err = elements.profile.nick:selectedText()
		assert(v == nil and err ~= nil)

		assert(country:getId() == "country")
		assert(country:getMacro() == "TAG POS=1 TYPE=SELECT ATTR=ID:country CONTENT=")
		assert(country:getSelectedIndex() == 1)
		assert(country:getSelectedCode() == "cl")
		assert(country:getSelectedText() == "Chile")
		local el = country:getElement()
		assert(el.id == "country" and el.selectedIndex == 1)
		assert(#el.options == 2 and el.options[2].value == "cl" and el.options[2].text == "Chile")
		assert(elements.login.user:getElement().value == "Ann Lee")
		local none, why = elements.profile.nick:getElement()
		assert(none == nil and why ~= nil)

		elements.login.user:saveToVar("who")
		assert(getVar("who") == "Ann Lee")
		elements.profile.nick:valueFromVar("who")

		local missing, msg = getVar("nobody")
		assert(missing == nil and msg ~= nil)
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	last := exec.lines[len(exec.lines)-1]
	if last != "TAG POS=1 TYPE=INPUT:TEXT ATTR=ID:nick CONTENT=Ann<SP>Lee" {
		t.Errorf("last dispatched %q", last)
	}
}

func TestEvalStopUnwindsScript(t *testing.T) {
	exec := &recordingExecutor{}
	h := newHost(t, exec)

	err := h.Eval(context.Background(), "stop.lua", `
		playMacro("URL GOTO=a")
		stop("enough")
		playMacro("URL GOTO=b")
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(exec.lines) != 1 {
		t.Errorf("dispatched %q", exec.lines)
	}
	var stop *runtime.StopError
	if !errors.As(h.Engine.State.StopCause(), &stop) || stop.Message != "enough" {
		t.Errorf("stop cause = %v", h.Engine.State.StopCause())
	}
}

func TestEvalUserAbortUnwindsScript(t *testing.T) {
	exec := &recordingExecutor{codes: map[string]int{"URL GOTO=a": macro.StatusUserAbort}}
	h := newHost(t, exec)

	err := h.Eval(context.Background(), "abort.lua", `
		playMacro("URL GOTO=a")
		error("not reached")
	`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !errors.Is(h.Engine.State.StopCause(), runtime.ErrUserAbort) {
		t.Errorf("stop cause = %v", h.Engine.State.StopCause())
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax", "playMacro("},
		{"runtime", "local x = nil; x.y = 1"},
		{"no os library", "os.exit(1)"},
		{"no io library", "io.open('/etc/passwd')"},
		{"no load", "load('return 1')()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHost(t, &recordingExecutor{})
			if err := h.Eval(context.Background(), "bad.lua", tt.source); err == nil {
				t.Error("Eval() = nil, want error")
			}
		})
	}
}

func TestPlayThroughEngine(t *testing.T) {
	exec := &recordingExecutor{}
	h := newHost(t, exec)
	h.Engine.Config.ScriptsFolder = "/scripts/"
	h.Engine.State.RootPath = "/scripts/"
	h.Engine.Loader = memLoader{
		"/scripts/flows/main.lua":       `log("main"); play("./steps/fill.iim"); elements.login.submit:click()`,
		"/scripts/flows/steps/fill.iim": "TAG ATTR=ID:user CONTENT=x",
		"/scripts/flows/broken.lua":     `play("./missing.iim")`,
	}
	ctx := context.Background()

	h.Engine.Play(ctx, "flows/main.lua")
	if h.Engine.Stopped() {
		t.Fatalf("stopped: %v", h.Engine.State.StopCause())
	}
	want := []string{"TAG ATTR=ID:user CONTENT=x", "TAG POS=1 TYPE=BUTTON ATTR=ID:go"}
	if fmt.Sprint(exec.lines) != fmt.Sprint(want) {
		t.Errorf("dispatched %q, want %q", exec.lines, want)
	}

	h.Engine.Play(ctx, "flows/broken.lua")
	if !h.Engine.Stopped() {
		t.Error("missing nested script did not stop the run")
	}
	if h.Engine.State.RootPath != "/scripts/" {
		t.Errorf("root path = %q", h.Engine.State.RootPath)
	}
	if len(h.Engine.State.Errors) == 0 || !strings.Contains(h.Engine.State.Errors[0], "missing.iim") {
		t.Errorf("errors = %q", h.Engine.State.Errors)
	}
}

func TestEvalWithoutElements(t *testing.T) {
	cfg := config.Default()
	e := runtime.NewEngine(cfg, &recordingExecutor{}, log.New(io.Discard))
	h := NewHost(e, nil)
	if err := h.Eval(context.Background(), "empty.lua", `assert(next(elements) == nil)`); err != nil {
		t.Errorf("Eval: %v", err)
	}
}
