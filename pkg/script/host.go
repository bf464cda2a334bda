// Package script evaluates executable sub-scripts with gopher-lua. A script
// runs in-process against the caller's engine and locator map, so its
// dispatches share the run's variables, root path and stop flag.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/runtime"
)

// errUnwind is raised inside Lua once the run stops so the rest of the
// script is skipped.
var errUnwind = errors.New("run stopped")

// Host implements runtime.Evaluator.
type Host struct {
	Engine   *runtime.Engine
	Elements *locator.Map // nil exposes an empty elements table
	Log      *log.Logger
}

// NewHost creates a host bound to engine. It registers itself as the
// engine's evaluator.
func NewHost(engine *runtime.Engine, elements *locator.Map) *Host {
	h := &Host{Engine: engine, Elements: elements, Log: engine.Log}
	engine.Scripts = h
	return h
}

// Eval runs source in a fresh sandboxed state. Errors raised after the run
// stopped are the unwinding of a stop and are not returned.
func (h *Host) Eval(ctx context.Context, name, source string) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibraries(L)
	L.SetContext(ctx)
	h.registerGlobals(L)
	h.registerElements(L)

	fn, err := L.Load(strings.NewReader(source), name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	L.Push(fn)
	err = L.PCall(0, lua.MultRet, nil)
	if err != nil && h.Engine.Stopped() {
		h.Log.Debug("script unwound", "script", name, "err", err)
		return nil
	}
	return err
}

// openSafeLibraries opens base, table, string and math. io, os, debug and
// package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (h *Host) registerGlobals(L *lua.LState) {
	L.SetGlobal("play", L.NewFunction(h.play))
	L.SetGlobal("playMacros", L.NewFunction(h.playMacros))
	L.SetGlobal("playMacro", L.NewFunction(h.playMacro))
	L.SetGlobal("pause", L.NewFunction(h.pause))
	L.SetGlobal("wait", L.NewFunction(h.wait))
	L.SetGlobal("stop", L.NewFunction(h.stop))
	L.SetGlobal("log", L.NewFunction(h.log))
	L.SetGlobal("logError", L.NewFunction(h.logError))
	L.SetGlobal("display", L.NewFunction(h.display))
	L.SetGlobal("getVar", L.NewFunction(h.getVar))
}

// unwind raises errUnwind when the last call stopped the run.
func (h *Host) unwind(L *lua.LState) {
	if h.Engine.Stopped() {
		L.RaiseError("%v", errUnwind)
	}
}

// play(ref)
func (h *Host) play(L *lua.LState) int {
	h.Engine.Play(L.Context(), L.CheckString(1))
	h.unwind(L)
	return 0
}

// playMacros(text)
func (h *Host) playMacros(L *lua.LState) int {
	h.Engine.PlayMacros(L.Context(), L.CheckString(1))
	h.unwind(L)
	return 0
}

// playMacro(line [, value])
func (h *Host) playMacro(L *lua.LState) int {
	line := L.CheckString(1)
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		h.Engine.PlayMacroValue(L.Context(), line, L.ToString(2))
	} else {
		h.Engine.PlayMacro(L.Context(), line)
	}
	h.unwind(L)
	return 0
}

// pause([message])
func (h *Host) pause(L *lua.LState) int {
	h.Engine.Pause(L.Context(), L.OptString(1, ""))
	h.unwind(L)
	return 0
}

// wait(seconds)
func (h *Host) wait(L *lua.LState) int {
	h.Engine.Wait(L.Context(), float64(L.CheckNumber(1)))
	h.unwind(L)
	return 0
}

// stop([message]) never returns to the script.
func (h *Host) stop(L *lua.LState) int {
	err := h.Engine.Stop(L.OptString(1, "stopped by script"))
	L.RaiseError("%v", err)
	return 0
}

// log(message, ...)
func (h *Host) log(L *lua.LState) int {
	h.Log.Info(joinArgs(L))
	return 0
}

// logError(message, ...)
func (h *Host) logError(L *lua.LState) int {
	h.Engine.ReportError(joinArgs(L))
	return 0
}

// display(message)
func (h *Host) display(L *lua.LState) int {
	h.Engine.Display.Display(L.CheckString(1))
	return 0
}

// getVar(name) -> value | nil, err
func (h *Host) getVar(L *lua.LState) int {
	rec, err := h.Engine.State.Vars.Lookup(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(rec.Value))
	return 1
}

func joinArgs(L *lua.LState) string {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	return strings.Join(parts, " ")
}
