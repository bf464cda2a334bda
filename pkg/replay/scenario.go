// Package replay implements an offline engine for deterministic runs: a
// YAML scenario decides the status code of every dispatched line and
// serves static page state.
package replay

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// Scenario is a scripted engine: ordered rules plus page state.
type Scenario struct {
	Rules    []Rule                           `yaml:"rules"`
	Elements map[string]*providers.ElementRef `yaml:"elements"`
	Busy     Busy                             `yaml:"busy"`
}

// Rule maps matching lines to a status code. The first rule whose When
// condition holds wins. Times limits how often a rule fires; 0 means
// unlimited.
type Rule struct {
	When  string `yaml:"when"`
	Code  int    `yaml:"code"`
	Error string `yaml:"error"`
	Times int    `yaml:"times"`
}

// Busy scripts the busy indicator. After a line matching When is
// dispatched the indicator reads Value for the next Polls lookups. WAIT
// lines never arm it.
type Busy struct {
	ElementID string `yaml:"element_id"`
	Value     string `yaml:"value"`
	When      string `yaml:"when"`
	Polls     int    `yaml:"polls"`
}

// ruleEnv is the expression environment of rule and busy conditions.
type ruleEnv struct {
	Line    string `expr:"line"`
	Command string `expr:"command"`
	Count   int    `expr:"count"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes and checks every condition
// compiles.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Rules) == 0 && len(s.Elements) == 0 && s.Busy.Polls == 0 {
		return nil, fmt.Errorf("scenario must have at least one rule, element or busy entry")
	}
	for i, r := range s.Rules {
		if r.Times < 0 {
			return nil, fmt.Errorf("rule %d: times must be non-negative", i+1)
		}
		if _, err := compile(r.When); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	if _, err := compile(s.Busy.When); err != nil {
		return nil, fmt.Errorf("busy: %w", err)
	}
	if s.Busy.ElementID == "" {
		s.Busy.ElementID = "ajaxStatus"
	}
	if s.Busy.Value == "" {
		s.Busy.Value = "on"
	}
	return &s, nil
}

// compile returns nil for an empty condition, which always holds.
func compile(cond string) (*vm.Program, error) {
	if cond == "" {
		return nil, nil
	}
	program, err := expr.Compile(cond, expr.Env(ruleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", cond, err)
	}
	return program, nil
}

func matches(program *vm.Program, env ruleEnv) (bool, error) {
	if program == nil {
		return true, nil
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}
