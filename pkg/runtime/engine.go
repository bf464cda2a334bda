package runtime

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/lazylink/pkg/config"
	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return ts
	}
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// ErrUserAbort is the stop cause when the engine reports that the user
// pressed its stop button.
var ErrUserAbort = errors.New("user pressed stop")

// StopError is returned by Engine.Stop. Callers return it to unwind the
// current script.
type StopError struct {
	Message string
}

func (e *StopError) Error() string {
	return "stopped: " + e.Message
}

// EngineError is the stop cause when the stop-on-error policy fires.
type EngineError struct {
	Code int
	Text string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Text)
}

// ScriptError is the stop cause when a script fails to load or evaluate.
type ScriptError struct {
	Script string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%v\nOn script: %s", e.Err, e.Script)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Evaluator runs executable sub-scripts in-process against the same engine.
type Evaluator interface {
	Eval(ctx context.Context, name, source string) error
}

// Engine dispatches command lines one at a time and plays scripts. An
// Engine serves a single run and is not safe for concurrent use.
type Engine struct {
	Config   config.Config
	Executor providers.Executor
	Page     providers.Page      // nil disables variable capture and busy polling
	Loader   providers.Loader    // defaults to providers.ResourceLoader
	Display  providers.Display   // defaults to the logger
	Scripts  Evaluator           // nil rejects executable scripts
	Trace    *TraceWriter        // nil disables tracing
	Redact   func(string) string // applied to traced lines and error text
	Log      *log.Logger
	State    *RunState
	BaseDir  string // .lazylink/runs/<run_id>/ once tracing is enabled
}

// NewEngine creates an engine with a fresh run state.
func NewEngine(cfg config.Config, executor providers.Executor, logger *log.Logger) *Engine {
	e := &Engine{
		Config:   cfg,
		Executor: executor,
		Loader:   providers.NewResourceLoader(),
		Log:      logger,
		State:    NewRunState(GenerateRunID()),
	}
	e.Display = providers.DisplayFunc(func(msg string) {
		e.Log.Warn(msg)
	})
	e.State.RootPath = cfg.ScriptsFolder
	return e
}

// Stopped reports whether the run has been stopped.
func (e *Engine) Stopped() bool {
	return e.State.Stopped()
}

// PlayMacro plays one command line.
func (e *Engine) PlayMacro(ctx context.Context, line string) {
	e.playLine(ctx, line, "", false)
}

// PlayMacroValue appends value (spaces escaped) to line and plays it.
func (e *Engine) PlayMacroValue(ctx context.Context, line, value string) {
	e.playLine(ctx, line, value, true)
}

// PlayMacros plays every line of text in order.
func (e *Engine) PlayMacros(ctx context.Context, text string) {
	e.Log.Debug("macros", "text", text)
	for _, line := range strings.Split(text, "\n") {
		e.PlayMacro(ctx, strings.TrimSuffix(line, "\r"))
	}
}

// Pause shows an optional message and suspends playback until the user
// resumes it in the engine.
func (e *Engine) Pause(ctx context.Context, message string) {
	if message != "" {
		e.Display.Display(message)
	}
	e.PlayMacro(ctx, macro.PauseLine)
}

// Wait makes the engine wait. Non-positive durations are ignored.
func (e *Engine) Wait(ctx context.Context, seconds float64) {
	if seconds > 0 {
		e.PlayMacro(ctx, macro.WaitLine(seconds))
	}
}

// Stop reports message against the current script, stops the run and
// returns the error that unwinds the calling script. It always returns a
// non-nil *StopError.
func (e *Engine) Stop(message string) error {
	if e.State.CurrentScript != "" {
		e.ReportError(fmt.Sprintf("%s\nOn script: %s", message, e.State.CurrentScript))
	} else {
		e.ReportError(message)
	}
	err := &StopError{Message: message}
	e.State.stop(err)
	return err
}

// ReportError records and logs a non-fatal error.
func (e *Engine) ReportError(msg string) {
	e.State.Errors = append(e.State.Errors, msg)
	e.Log.Error(msg)
}

// Debugf logs at debug level.
func (e *Engine) Debugf(format string, args ...any) {
	e.Log.Debugf(format, args...)
}

func (e *Engine) playLine(ctx context.Context, line, value string, hasValue bool) {
	if e.State.Stopped() || macro.Skippable(line) {
		return
	}
	if hasValue {
		line = macro.Append(line, value)
	}

	parsed := macro.Parse(line)
	if parsed.HasSave {
		e.saveVariable(ctx, parsed)
		parsed = macro.Parse(parsed.WithoutSave())
	}
	line = e.substituteVariable(parsed)

	code, ok := e.dispatch(ctx, line)
	if !ok {
		return
	}
	e.interpret(ctx, code, true)
	if code != macro.StatusNavigationTimeout {
		e.waitWhileBusy(ctx)
	}
}

// dispatch sends line to the executor. It refuses once the run is stopped
// and converts a cancelled context into a stop.
func (e *Engine) dispatch(ctx context.Context, line string) (int, bool) {
	if e.State.Stopped() {
		return 0, false
	}
	if err := ctx.Err(); err != nil {
		e.Log.Info("run cancelled", "err", err)
		e.State.stop(err)
		return 0, false
	}

	e.Log.Debug("play macro", "line", line)
	code := e.Executor.Execute(ctx, line)
	e.State.Dispatched++
	e.Log.Debug("returned code", "code", code)

	if e.Trace != nil {
		ev := LineEvent{
			Timestamp: time.Now(),
			RunID:     e.State.RunID,
			Script:    e.State.CurrentScript,
			Line:      line,
			Code:      code,
		}
		if code != macro.StatusOK {
			ev.ErrorText = e.Executor.LastErrorText()
		}
		if e.Redact != nil {
			ev.Line = e.Redact(ev.Line)
			ev.ErrorText = e.Redact(ev.ErrorText)
		}
		if err := e.Trace.Write(ev); err != nil {
			e.Log.Warn("trace write failed", "err", err)
		}
	}
	return code, true
}

// interpret reacts to a status code. retry allows the single page-timeout
// wait; codes returned by that wait are interpreted without it.
func (e *Engine) interpret(ctx context.Context, code int, retry bool) {
	if code == macro.StatusOK {
		return
	}
	errText := e.Executor.LastErrorText()

	switch code {
	case macro.StatusPageTimeout:
		e.Display.Display(errText)
		if retry {
			if next, ok := e.dispatch(ctx, macro.WaitLine(e.Config.PageTimeoutWaitSeconds)); ok {
				e.interpret(ctx, next, false)
			}
		}
		e.ReportError(errText)
	case macro.StatusNavigationTimeout:
		// Navigation timeouts are routine on slow pages and not worth reporting.
	case macro.StatusUserAbort:
		e.Log.Info("user pressed stop")
		e.State.stop(ErrUserAbort)
	default:
		e.onError(ctx, code, errText)
	}
}

// onError applies the configured error policy.
func (e *Engine) onError(ctx context.Context, code int, errText string) {
	msg := fmt.Sprintf("%s\n%s\n%s code: %d", e.State.CurrentScript, errText, macro.ErrorCodesURL, code)
	switch {
	case e.Config.StopOnError:
		e.Display.Display(msg)
		e.ReportError(msg)
		e.State.stop(&EngineError{Code: code, Text: errText})
	case e.Config.PauseOnError:
		e.ReportError(msg)
		if next, ok := e.dispatch(ctx, macro.PauseLine); ok {
			e.interpret(ctx, next, true)
		}
	}
}

// waitWhileBusy polls the page busy indicator, letting the engine wait
// between polls, until it clears or the run stops.
func (e *Engine) waitWhileBusy(ctx context.Context) {
	for !e.State.Stopped() {
		busy, err := e.busy(ctx)
		if err != nil {
			e.Log.Warn("busy indicator", "err", err)
			return
		}
		if !busy {
			return
		}
		code, ok := e.dispatch(ctx, macro.WaitLine(e.Config.Busy.PollSeconds))
		if !ok {
			return
		}
		e.interpret(ctx, code, true)
	}
}

func (e *Engine) busy(ctx context.Context) (bool, error) {
	if e.Page == nil || e.Config.Busy.ElementID == "" {
		return false, nil
	}
	ref, err := e.Page.ElementByID(ctx, e.Config.Busy.ElementID)
	if err != nil || ref == nil {
		return false, err
	}
	return strings.TrimSpace(ref.Text) == e.Config.Busy.Value, nil
}

// saveVariable reads the addressed element from the page and records its
// value. The engine cannot chain SET/EXTRACT across separately dispatched
// lines, so the capture happens here before the line is sent.
func (e *Engine) saveVariable(ctx context.Context, l macro.Line) {
	if l.ElementID == "" {
		e.ReportError(fmt.Sprintf("couldn't save variable %q: line has no ATTR=ID", l.SaveTo))
		return
	}
	if e.Page == nil {
		e.ReportError(fmt.Sprintf("couldn't save variable %q: no page attached", l.SaveTo))
		return
	}
	ref, err := e.Page.ElementByID(ctx, l.ElementID)
	if err != nil {
		e.ReportError(fmt.Sprintf("couldn't save variable %q: %v", l.SaveTo, err))
		return
	}
	if ref == nil {
		e.ReportError(fmt.Sprintf("couldn't save variable %q: element %q not found", l.SaveTo, l.ElementID))
		return
	}
	e.State.Vars.Save(l.SaveTo, ref.Value)
	e.Log.Info("extracted value", "value", ref.Value, "element", l.ElementID, "var", l.SaveTo)
}

// substituteVariable replaces a substitution marker with the saved value.
// Unknown names are reported and substitute the empty string.
func (e *Engine) substituteVariable(l macro.Line) string {
	if !l.HasValue {
		return l.Raw
	}
	rec, err := e.State.Vars.Lookup(l.ValueFrom)
	if err != nil {
		e.ReportError(fmt.Sprintf("couldn't get variable by given name: %s", l.ValueFrom))
		return l.Substitute("")
	}
	e.Log.Debug("replaced variable", "var", l.ValueFrom, "value", rec.Value)
	return l.Substitute(macro.EscapeSpaces(rec.Value))
}
