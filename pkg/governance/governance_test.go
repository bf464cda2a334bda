package governance

import (
	"context"
	"reflect"
	"testing"

	"github.com/ormasoftchile/lazylink/pkg/config"
)

// TestAllowlistAcceptsAllowedCommand verifies allowed commands pass.
func TestAllowlistAcceptsAllowedCommand(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{AllowedCommands: []string{"url", "TAG", "WAIT"}})
	if err := p.CheckLine("URL GOTO=http://example.com"); err != nil {
		t.Errorf("expected allowed, got: %v", err)
	}
	if err := p.CheckLine("tag ATTR=ID:x"); err != nil {
		t.Errorf("command match should ignore case, got: %v", err)
	}
}

// TestAllowlistRejectsUnlistedCommand verifies non-allowed commands are blocked.
func TestAllowlistRejectsUnlistedCommand(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{AllowedCommands: []string{"URL", "TAG"}})
	if err := p.CheckLine("SAVEAS TYPE=PNG"); err == nil {
		t.Error("expected rejection for unlisted command SAVEAS")
	}
}

// TestCombinedAllowDenyMode verifies deny takes precedence.
func TestCombinedAllowDenyMode(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{
		AllowedCommands: []string{"URL", "TAG", "ONDOWNLOAD"},
		DeniedCommands:  []string{"ONDOWNLOAD"},
	})
	if err := p.CheckLine("TAG ATTR=ID:x"); err != nil {
		t.Errorf("TAG should pass: %v", err)
	}
	if err := p.CheckLine("ONDOWNLOAD FOLDER=*"); err == nil {
		t.Error("ONDOWNLOAD should be denied (deny takes precedence)")
	}
}

// TestNoGovernanceAllowsAll verifies that an empty policy permits everything.
func TestNoGovernanceAllowsAll(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{})
	if err := p.CheckLine("ANYTHING"); err != nil {
		t.Errorf("empty governance should allow all: %v", err)
	}
	if got := p.Redact("CONTENT=secret"); got != "CONTENT=secret" {
		t.Errorf("Redact() = %q", got)
	}
}

// TestRedact verifies rules apply in order.
func TestRedact(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{Redact: []config.RedactionRule{
		{Pattern: `(ATTR=ID:pass\S* CONTENT=)\S+`, Replace: "${1}***"},
		{Pattern: `\d{16}`, Replace: "[card]"},
	}})
	got := p.Redact("TAG ATTR=ID:password CONTENT=hunter2 4111111111111111")
	if got != "TAG ATTR=ID:password CONTENT=*** [card]" {
		t.Errorf("Redact() = %q", got)
	}
}

// TestInvalidPatterns verifies bad patterns are rejected at compile time.
func TestInvalidPatterns(t *testing.T) {
	if _, err := New(config.GovernanceConfig{Redact: []config.RedactionRule{{Pattern: "("}}}); err == nil {
		t.Error("expected error for invalid redaction pattern")
	}
	if _, err := New(config.GovernanceConfig{DenyEnvVars: []string{"["}}); err == nil {
		t.Error("expected error for invalid env var pattern")
	}
}

// TestFilterEnv verifies denied env var patterns.
func TestFilterEnv(t *testing.T) {
	p := mustPolicy(t, config.GovernanceConfig{DenyEnvVars: []string{"SECRET_*", "TOKEN", "AWS_*"}})
	env := []string{"SECRET_KEY=a", "TOKEN=b", "AWS_ACCESS_KEY=c", "HOME=/root", "PATH=/bin", "TOKENS=d"}
	filtered, blocked := p.FilterEnv(env)
	if !reflect.DeepEqual(filtered, []string{"HOME=/root", "PATH=/bin", "TOKENS=d"}) {
		t.Errorf("filtered = %v", filtered)
	}
	if !reflect.DeepEqual(blocked, []string{"SECRET_KEY", "TOKEN", "AWS_ACCESS_KEY"}) {
		t.Errorf("blocked = %v", blocked)
	}
}

type stubExecutor struct {
	calls int
}

func (s *stubExecutor) Execute(ctx context.Context, line string) int {
	s.calls++
	return -921
}

func (s *stubExecutor) LastErrorText() string { return "not found" }

// TestGuard verifies denied lines never reach the engine.
func TestGuard(t *testing.T) {
	next := &stubExecutor{}
	g := NewGuard(next, mustPolicy(t, config.GovernanceConfig{DeniedCommands: []string{"SAVEAS"}}))
	ctx := context.Background()

	if code := g.Execute(ctx, "SAVEAS TYPE=PNG"); code != StatusDenied {
		t.Errorf("denied code = %d", code)
	}
	if next.calls != 0 || g.LastErrorText() == "" {
		t.Errorf("calls = %d, error = %q", next.calls, g.LastErrorText())
	}
	if code := g.Execute(ctx, "TAG ATTR=ID:x"); code != -921 {
		t.Errorf("forwarded code = %d", code)
	}
	if g.LastErrorText() != "not found" {
		t.Errorf("error = %q", g.LastErrorText())
	}
}

func mustPolicy(t *testing.T, cfg config.GovernanceConfig) *Policy {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}
