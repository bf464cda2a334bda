package runtime

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Script kinds dispatched by Play.
const (
	MacroExt  = ".iim"
	ScriptExt = ".lua"
)

// Play loads and runs a script reference. Macro files are played line by
// line; executable scripts are evaluated in-process so they can call back
// into the engine. A failure to load or evaluate stops the run; it never
// escapes Play. The root path is restored on return, so relative
// references in the caller keep resolving against its own directory.
func (e *Engine) Play(ctx context.Context, ref string) {
	if e.State.Stopped() {
		return
	}
	start := time.Now()
	savedRoot, savedScript := e.State.RootPath, e.State.CurrentScript
	if e.State.RootScript == "" {
		e.State.RootScript = ref
	}
	e.State.CurrentScript = ref

	defer func() {
		e.Log.Info("script finished", "script", ref, "elapsed", time.Since(start).Round(time.Millisecond))
		e.State.RootPath = savedRoot
		e.State.CurrentScript = savedScript
	}()

	if err := e.playScript(ctx, ref); err != nil {
		var stop *StopError
		if errors.As(err, &stop) {
			e.State.stop(stop)
			return
		}
		serr := &ScriptError{Script: ref, Err: err}
		e.ReportError(serr.Error())
		e.State.stop(serr)
	}
}

func (e *Engine) playScript(ctx context.Context, ref string) error {
	e.State.Depth++
	defer func() { e.State.Depth-- }()
	if e.State.Depth > e.Config.MaxDepth {
		return fmt.Errorf("script nesting depth %d exceeds maximum %d", e.State.Depth, e.Config.MaxDepth)
	}

	name := e.changeRootPath(ref)
	url, err := e.Loader.ResolveURL(e.State.RootPath + name)
	if err != nil {
		return fmt.Errorf("resolve script: %w", err)
	}
	text, err := e.Loader.LoadText(ctx, url)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	switch ext := strings.ToLower(path.Ext(name)); ext {
	case MacroExt:
		e.PlayMacros(ctx, text)
	case ScriptExt:
		if e.Scripts == nil {
			return fmt.Errorf("no script evaluator configured for %s", name)
		}
		if err := e.Scripts.Eval(ctx, ref, text); err != nil {
			return err
		}
	default:
		e.ReportError(fmt.Sprintf("incorrect path or file extension %q: supported extensions are %s, %s", ext, MacroExt, ScriptExt))
	}
	return nil
}

// changeRootPath points the root path at ref's directory and returns the
// bare file name. URLs and absolute paths set the root outright, ./ paths
// extend the current root and anything else is taken relative to the
// scripts folder.
func (e *Engine) changeRootPath(ref string) string {
	name := ref[strings.LastIndex(ref, "/")+1:]
	dir := ref[:len(ref)-len(name)]

	switch {
	case isAbsoluteRef(ref):
		e.State.RootPath = dir
	case strings.HasPrefix(ref, "./"):
		e.State.RootPath += strings.TrimPrefix(dir, "./")
	default:
		e.State.RootPath = e.Config.ScriptsFolder + dir
	}
	e.Log.Debug("root path", "path", e.State.RootPath)
	return name
}

func isAbsoluteRef(ref string) bool {
	for _, prefix := range []string{"file:", "http://", "https://", "/"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}
