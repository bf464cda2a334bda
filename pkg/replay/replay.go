package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// StatusRuleFailure is returned when a rule condition fails to evaluate.
const StatusRuleFailure = -1

// Executor implements providers.Executor against a scenario. It records
// every line it receives.
type Executor struct {
	scenario *Scenario
	programs []*vm.Program
	fired    []int
	busyWhen *vm.Program
	page     *Page
	lines    []string
	lastErr  string
}

// NewExecutor compiles the scenario's rules.
func NewExecutor(s *Scenario) (*Executor, error) {
	e := &Executor{
		scenario: s,
		programs: make([]*vm.Program, len(s.Rules)),
		fired:    make([]int, len(s.Rules)),
		page:     &Page{elements: s.Elements, busy: s.Busy},
	}
	for i, r := range s.Rules {
		p, err := compile(r.When)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		e.programs[i] = p
	}
	p, err := compile(s.Busy.When)
	if err != nil {
		return nil, fmt.Errorf("busy: %w", err)
	}
	e.busyWhen = p
	return e, nil
}

// Page returns the scenario page driven by this executor.
func (e *Executor) Page() *Page { return e.page }

// Lines returns the dispatched lines in order.
func (e *Executor) Lines() []string {
	out := make([]string, len(e.lines))
	copy(out, e.lines)
	return out
}

// Execute answers line with the code of the first matching rule, or
// StatusOK when none matches.
func (e *Executor) Execute(ctx context.Context, line string) int {
	e.lines = append(e.lines, line)
	e.lastErr = ""
	env := ruleEnv{Line: line, Command: command(line), Count: len(e.lines)}

	if env.Command != "WAIT" && e.scenario.Busy.Polls > 0 {
		ok, err := matches(e.busyWhen, env)
		if err != nil {
			e.lastErr = fmt.Sprintf("busy: %v", err)
			return StatusRuleFailure
		}
		if ok {
			e.page.remaining = e.scenario.Busy.Polls
		}
	}

	for i, r := range e.scenario.Rules {
		if r.Times > 0 && e.fired[i] >= r.Times {
			continue
		}
		ok, err := matches(e.programs[i], env)
		if err != nil {
			e.lastErr = fmt.Sprintf("rule %d: %v", i+1, err)
			return StatusRuleFailure
		}
		if !ok {
			continue
		}
		e.fired[i]++
		e.lastErr = r.Error
		if r.Code == 0 {
			return macro.StatusOK
		}
		return r.Code
	}
	return macro.StatusOK
}

// LastErrorText returns the error of the last matched rule.
func (e *Executor) LastErrorText() string { return e.lastErr }

func command(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}

// Page implements providers.Page from the scenario's static elements.
type Page struct {
	elements  map[string]*providers.ElementRef
	busy      Busy
	remaining int
}

// ElementByID returns a copy of the scripted element, or nil. The busy
// indicator reads busy.Value while polls remain and "off" afterwards.
func (p *Page) ElementByID(ctx context.Context, id string) (*providers.ElementRef, error) {
	if id == p.busy.ElementID && p.busy.Polls > 0 {
		if p.remaining > 0 {
			p.remaining--
			return &providers.ElementRef{ID: id, Text: p.busy.Value}, nil
		}
		return &providers.ElementRef{ID: id, Text: "off"}, nil
	}
	ref, ok := p.elements[id]
	if !ok || ref == nil {
		return nil, nil
	}
	cp := *ref
	cp.ID = id
	return &cp, nil
}
