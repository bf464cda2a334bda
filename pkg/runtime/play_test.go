package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ormasoftchile/lazylink/pkg/config"
)

// memLoader serves scripts from memory and records every resolved URL.
type memLoader struct {
	files    map[string]string
	resolved []string
}

func (m *memLoader) ResolveURL(ref string) (string, error) {
	m.resolved = append(m.resolved, ref)
	return ref, nil
}

func (m *memLoader) LoadText(ctx context.Context, url string) (string, error) {
	text, ok := m.files[url]
	if !ok {
		return "", fmt.Errorf("no such script: %s", url)
	}
	return text, nil
}

type evalFunc func(ctx context.Context, name, source string) error

func (f evalFunc) Eval(ctx context.Context, name, source string) error { return f(ctx, name, source) }

func newPlayEngine(t *testing.T, files map[string]string) (*Engine, *scriptedExecutor, *memLoader) {
	t.Helper()
	exec := &scriptedExecutor{}
	e, _ := newTestEngine(t, exec, func(c *config.Config) {
		c.ScriptsFolder = "/root/"
	})
	loader := &memLoader{files: files}
	e.Loader = loader
	return e, exec, loader
}

func TestPlayMacroFile(t *testing.T) {
	e, exec, loader := newPlayEngine(t, map[string]string{
		"/root/sub/foo.iim": "URL GOTO=http://example.com\n' comment\nTAG ATTR=ID:go\n",
	})

	e.Play(context.Background(), "sub/foo.iim")
	if loader.resolved[0] != "/root/sub/foo.iim" {
		t.Errorf("resolved %q", loader.resolved[0])
	}
	if len(exec.lines) != 2 {
		t.Errorf("dispatched %q", exec.lines)
	}
	if e.State.RootPath != "/root/" {
		t.Errorf("root path = %q, want restored /root/", e.State.RootPath)
	}
	if e.State.RootScript != "sub/foo.iim" || e.State.CurrentScript != "" {
		t.Errorf("root script = %q current = %q", e.State.RootScript, e.State.CurrentScript)
	}
}

func TestPlayRootPathResolution(t *testing.T) {
	tests := []struct {
		name string
		root string
		ref  string
		want string
	}{
		{"scripts folder", "/root/other/", "sub/foo.iim", "/root/sub/foo.iim"},
		{"bare name", "/root/other/", "foo.iim", "/root/foo.iim"},
		{"relative to current", "/root/a/", "./b/foo.iim", "/root/a/b/foo.iim"},
		{"absolute path", "/root/a/", "/opt/m/foo.iim", "/opt/m/foo.iim"},
		{"http url", "/root/a/", "http://host/m/foo.iim", "http://host/m/foo.iim"},
		{"file url", "/root/a/", "file:///srv/foo.iim", "file:///srv/foo.iim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, loader := newPlayEngine(t, map[string]string{tt.want: ""})
			e.State.RootPath = tt.root

			e.Play(context.Background(), tt.ref)
			if loader.resolved[0] != tt.want {
				t.Errorf("resolved %q, want %q", loader.resolved[0], tt.want)
			}
			if e.State.RootPath != tt.root {
				t.Errorf("root path = %q, want restored %q", e.State.RootPath, tt.root)
			}
			if e.Stopped() {
				t.Errorf("stopped: %v", e.State.StopCause())
			}
		})
	}
}

func TestPlayNestedScriptsResolveAgainstCaller(t *testing.T) {
	e, exec, loader := newPlayEngine(t, map[string]string{
		"/root/flows/main.lua":        "main",
		"/root/flows/steps/child.iim": "TAG ATTR=ID:child",
		"/root/flows/after.iim":       "TAG ATTR=ID:after",
	})
	var roots []string
	e.Scripts = evalFunc(func(ctx context.Context, name, source string) error {
		roots = append(roots, e.State.RootPath)
		e.Play(ctx, "./steps/child.iim")
		roots = append(roots, e.State.RootPath)
		e.Play(ctx, "./after.iim")
		return nil
	})

	e.Play(context.Background(), "flows/main.lua")
	want := []string{"/root/flows/", "/root/flows/"}
	if fmt.Sprint(roots) != fmt.Sprint(want) {
		t.Errorf("roots = %q, want %q", roots, want)
	}
	if fmt.Sprint(exec.lines) != "[TAG ATTR=ID:child TAG ATTR=ID:after]" {
		t.Errorf("dispatched %q (resolved %q)", exec.lines, loader.resolved)
	}
}

func TestPlayScriptErrorStopsAndRestoresRoot(t *testing.T) {
	e, exec, _ := newPlayEngine(t, map[string]string{
		"/root/sub/bad.lua": "boom",
	})
	boom := errors.New("attempt to call a nil value")
	e.Scripts = evalFunc(func(ctx context.Context, name, source string) error {
		return boom
	})
	e.State.RootPath = "/root/"

	e.Play(context.Background(), "sub/bad.lua")
	if !e.Stopped() {
		t.Fatal("script error did not stop the run")
	}
	var serr *ScriptError
	if !errors.As(e.State.StopCause(), &serr) || serr.Script != "sub/bad.lua" || !errors.Is(serr, boom) {
		t.Errorf("stop cause = %v", e.State.StopCause())
	}
	if !strings.Contains(e.State.Errors[0], "On script: sub/bad.lua") {
		t.Errorf("errors = %q", e.State.Errors)
	}
	if e.State.RootPath != "/root/" {
		t.Errorf("root path = %q", e.State.RootPath)
	}
	e.PlayMacro(context.Background(), "URL GOTO=x")
	if len(exec.lines) != 0 {
		t.Error("dispatched after script error")
	}
}

func TestPlayMissingScriptStops(t *testing.T) {
	e, _, _ := newPlayEngine(t, nil)
	e.Play(context.Background(), "missing.iim")
	if !e.Stopped() {
		t.Error("missing script did not stop the run")
	}
}

func TestPlayUnknownExtensionIsReported(t *testing.T) {
	e, exec, _ := newPlayEngine(t, map[string]string{"/root/notes.txt": "URL GOTO=x"})
	e.Play(context.Background(), "notes.txt")
	if e.Stopped() {
		t.Error("unknown extension stopped the run")
	}
	if len(exec.lines) != 0 {
		t.Errorf("dispatched %q", exec.lines)
	}
	if len(e.State.Errors) != 1 || !strings.Contains(e.State.Errors[0], ".txt") {
		t.Errorf("errors = %q", e.State.Errors)
	}
}

func TestPlayScriptWithoutEvaluatorStops(t *testing.T) {
	e, _, _ := newPlayEngine(t, map[string]string{"/root/x.lua": ""})
	e.Play(context.Background(), "x.lua")
	if !e.Stopped() {
		t.Error("script without evaluator did not stop the run")
	}
}

func TestPlayDepthLimit(t *testing.T) {
	e, _, _ := newPlayEngine(t, map[string]string{"/root/loop.lua": ""})
	e.Config.MaxDepth = 3
	calls := 0
	e.Scripts = evalFunc(func(ctx context.Context, name, source string) error {
		calls++
		e.Play(ctx, "loop.lua")
		return nil
	})

	e.Play(context.Background(), "loop.lua")
	if calls != 3 {
		t.Errorf("evaluated %d times, want 3", calls)
	}
	if !e.Stopped() || !strings.Contains(e.State.StopCause().Error(), "depth") {
		t.Errorf("stop cause = %v", e.State.StopCause())
	}
	if e.State.Depth != 0 {
		t.Errorf("depth = %d after unwinding", e.State.Depth)
	}
}

func TestPlayStopFromScriptUnwinds(t *testing.T) {
	e, exec, _ := newPlayEngine(t, map[string]string{
		"/root/s.lua":    "",
		"/root/next.iim": "URL GOTO=x",
	})
	e.Scripts = evalFunc(func(ctx context.Context, name, source string) error {
		return e.Stop("done here")
	})

	e.Play(context.Background(), "s.lua")
	e.Play(context.Background(), "next.iim")
	var stop *StopError
	if !errors.As(e.State.StopCause(), &stop) {
		t.Errorf("stop cause = %v, want *StopError", e.State.StopCause())
	}
	if len(exec.lines) != 0 {
		t.Errorf("dispatched %q", exec.lines)
	}
	if len(e.State.Errors) != 1 || e.State.Errors[0] != "done here\nOn script: s.lua" {
		t.Errorf("errors = %q", e.State.Errors)
	}
}
