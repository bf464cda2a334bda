// Package repl implements the interactive macro prompt and the PAUSE
// prompt used by the browser engine.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/lazylink/pkg/console"
	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/runtime"
)

// Repl reads macro lines and colon commands and plays them on an engine.
type Repl struct {
	engine   *runtime.Engine
	elements *locator.Map
	output   io.Writer
	rl       *readline.Instance
}

// New creates a prompt over engine. elements may be nil.
func New(engine *runtime.Engine, elements *locator.Map) *Repl {
	return &Repl{engine: engine, elements: elements, output: os.Stdout}
}

var commands = []string{":play", ":element", ":vars", ":errors", ":elements", ":help", ":quit"}

// Run starts the interactive loop. It returns when the user quits or the
// run stops.
func (r *Repl) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}
	for _, verb := range []string{"URL GOTO=", "TAG ", "WAIT SECONDS=", "PAUSE", "REFRESH", "BACK"} {
		completer.Children = append(completer.Children, readline.PcItem(verb))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	r.rl = rl
	r.output = rl.Stdout()
	defer rl.Close()

	fmt.Fprintf(r.output, "lazylink repl, run %s\n", r.engine.State.RunID)
	fmt.Fprintf(r.output, "Type macro lines to play them, ':help' for commands.\n\n")

	for {
		rl.SetPrompt(r.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
}

func (r *Repl) buildPrompt() string {
	if r.engine.Stopped() {
		return "lazylink[stopped]> "
	}
	return fmt.Sprintf("lazylink[%d]> ", r.engine.State.Dispatched)
}

// handle processes one input line and reports whether the loop ends.
func (r *Repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		r.playLine(ctx, line)
		return r.engine.Stopped()
	}

	parts := strings.Fields(line)
	switch parts[0] {
	case ":play", ":p":
		if len(parts) < 2 {
			fmt.Fprintf(r.output, "Usage: :play <script>\n")
			return false
		}
		r.engine.Play(ctx, parts[1])
		r.report()
	case ":element", ":e":
		r.handleElement(ctx, parts)
	case ":vars", ":v":
		r.handleVars()
	case ":errors":
		r.handleErrors()
	case ":elements":
		r.handleElements()
	case ":help", ":?":
		r.handleHelp()
	case ":quit", ":q":
		fmt.Fprintf(r.output, "Exiting.\n")
		return true
	default:
		fmt.Fprintf(r.output, "Unknown command: %q. Type ':help' for available commands.\n", parts[0])
	}
	return r.engine.Stopped()
}

func (r *Repl) playLine(ctx context.Context, line string) {
	before := len(r.engine.State.Errors)
	r.engine.PlayMacro(ctx, line)
	if len(r.engine.State.Errors) > before {
		fmt.Fprintf(r.output, "  %s\n", console.Failed("%s", r.engine.State.Errors[len(r.engine.State.Errors)-1]))
		return
	}
	r.report()
}

// report prints the outcome of the last action.
func (r *Repl) report() {
	if r.engine.Stopped() {
		fmt.Fprintf(r.output, "  %s\n", console.Failed("run stopped: %v", r.engine.State.StopCause()))
		return
	}
	fmt.Fprintf(r.output, "  %s\n", console.Passed("ok"))
}

// handleElement clicks an element or enters a value: ":element login.user Ann".
func (r *Repl) handleElement(ctx context.Context, parts []string) {
	if r.elements == nil {
		fmt.Fprintf(r.output, "No locator map loaded.\n")
		return
	}
	if len(parts) < 2 {
		fmt.Fprintf(r.output, "Usage: :element <path> [value]\n")
		return
	}
	el, err := r.elements.Element(parts[1])
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	if len(parts) == 2 {
		el.Click(ctx)
	} else {
		el.Value(ctx, strings.Join(parts[2:], " "))
	}
	r.report()
}

func (r *Repl) handleVars() {
	records := r.engine.State.Vars.Records()
	if len(records) == 0 {
		fmt.Fprintf(r.output, "No variables saved.\n")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(r.output, "  %s = %q\n", rec.Name, rec.Value)
	}
}

func (r *Repl) handleErrors() {
	if len(r.engine.State.Errors) == 0 {
		fmt.Fprintf(r.output, "No errors reported.\n")
		return
	}
	for i, msg := range r.engine.State.Errors {
		fmt.Fprintf(r.output, "  %d. %s\n", i+1, strings.ReplaceAll(msg, "\n", " | "))
	}
}

func (r *Repl) handleElements() {
	if r.elements == nil {
		fmt.Fprintf(r.output, "No locator map loaded.\n")
		return
	}
	r.elements.Walk(func(el *locator.Element) {
		fmt.Fprintf(r.output, "  %s  %s\n", el.Path(), console.Dim("%s", el.Macro()))
	})
}

func (r *Repl) handleHelp() {
	fmt.Fprintf(r.output, `Commands:
  <macro line>              Play a macro line (e.g. URL GOTO=https://example.com)
  :play, :p <script>        Play a macro file or Lua script
  :element, :e <path> [v]   Click an element, or enter value v
  :vars, :v                 Print saved variables
  :errors                   Print reported errors
  :elements                 List the locator map
  :help, :?                 Show this help
  :quit, :q                 Exit
`)
}
