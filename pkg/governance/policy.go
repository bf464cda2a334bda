// Package governance applies the run's command policy, redacts trace
// output and filters the environment handed to engine processes.
package governance

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ormasoftchile/lazylink/pkg/config"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

// StatusDenied is returned for lines whose command the policy rejects.
const StatusDenied = -1

// Policy evaluates governance rules before and during playback.
type Policy struct {
	AllowedCommands []string
	DeniedCommands  []string
	DenyEnvVars     []string
	redactions      []*compiledRedaction
}

type compiledRedaction struct {
	pattern *regexp.Regexp
	replace string
}

// New compiles a policy from configuration. A zero config yields a
// permissive policy.
func New(cfg config.GovernanceConfig) (*Policy, error) {
	p := &Policy{
		AllowedCommands: upper(cfg.AllowedCommands),
		DeniedCommands:  upper(cfg.DeniedCommands),
		DenyEnvVars:     cfg.DenyEnvVars,
	}
	for _, r := range cfg.Redact {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction pattern %q: %w", r.Pattern, err)
		}
		p.redactions = append(p.redactions, &compiledRedaction{pattern: re, replace: r.Replace})
	}
	for _, pattern := range p.DenyEnvVars {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("env var deny pattern %q: %w", pattern, err)
		}
	}
	return p, nil
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// CheckLine validates the line's command word against the allowlist and
// denylist. Deny takes precedence over allow.
func (p *Policy) CheckLine(line string) error {
	command := strings.ToUpper(line)
	if i := strings.IndexAny(command, " \t"); i >= 0 {
		command = command[:i]
	}
	for _, denied := range p.DeniedCommands {
		if command == denied {
			return fmt.Errorf("command %q is denied by governance policy", command)
		}
	}
	if len(p.AllowedCommands) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedCommands {
		if command == allowed {
			return nil
		}
	}
	return fmt.Errorf("command %q is not in the governance allowlist", command)
}

// Redact applies every redaction rule in order.
func (p *Policy) Redact(s string) string {
	for _, r := range p.redactions {
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return s
}

// FilterEnv drops variables matching a denied pattern and returns the
// names it blocked.
func (p *Policy) FilterEnv(env []string) ([]string, []string) {
	if len(p.DenyEnvVars) == 0 {
		return env, nil
	}
	var filtered, blocked []string
	for _, e := range env {
		name, _, _ := strings.Cut(e, "=")
		if p.envDenied(name) {
			blocked = append(blocked, name)
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, blocked
}

func (p *Policy) envDenied(name string) bool {
	for _, pattern := range p.DenyEnvVars {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Guard wraps an executor so lines the policy rejects never reach it.
type Guard struct {
	next    providers.Executor
	policy  *Policy
	denied  bool
	lastErr string
}

// NewGuard returns next guarded by p.
func NewGuard(next providers.Executor, p *Policy) *Guard {
	return &Guard{next: next, policy: p}
}

// Execute forwards line unless the policy rejects it.
func (g *Guard) Execute(ctx context.Context, line string) int {
	if err := g.policy.CheckLine(line); err != nil {
		g.denied = true
		g.lastErr = err.Error()
		return StatusDenied
	}
	g.denied = false
	return g.next.Execute(ctx, line)
}

// LastErrorText returns the denial or the wrapped executor's error.
func (g *Guard) LastErrorText() string {
	if g.denied {
		return g.lastErr
	}
	return g.next.LastErrorText()
}
