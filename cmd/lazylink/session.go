package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/lazylink/pkg/browser"
	"github.com/ormasoftchile/lazylink/pkg/config"
	"github.com/ormasoftchile/lazylink/pkg/console"
	"github.com/ormasoftchile/lazylink/pkg/governance"
	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/providers"
	"github.com/ormasoftchile/lazylink/pkg/repl"
	"github.com/ormasoftchile/lazylink/pkg/replay"
	"github.com/ormasoftchile/lazylink/pkg/runtime"
	"github.com/ormasoftchile/lazylink/pkg/script"
)

// session is one wired run: engine, page, locator map and script host.
type session struct {
	engine   *runtime.Engine
	elements *locator.Map
	closers  []func() error
}

// openSession builds the executor named by cfg.Engine.Kind and wires it
// into a fresh engine.
func openSession(cfg config.Config, mapPath string, trace bool, logger *log.Logger) (*session, error) {
	policy, err := governance.New(cfg.Governance)
	if err != nil {
		return nil, err
	}
	s := &session{}
	executor, page, err := s.openExecutor(cfg, policy, logger)
	if err != nil {
		return nil, err
	}

	eng := runtime.NewEngine(cfg, governance.NewGuard(executor, policy), logger)
	eng.Page = page
	eng.Redact = policy.Redact
	eng.Display = console.NewSurface(os.Stderr)
	s.engine = eng

	if mapPath != "" {
		root, err := locator.LoadFile(mapPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.elements = locator.Extend(root, eng, page)
	}
	script.NewHost(eng, s.elements)

	if trace {
		if err := eng.EnableTrace(cfg.TraceDir); err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, eng.WriteManifest, eng.Close)
	}
	return s, nil
}

func (s *session) openExecutor(cfg config.Config, policy *governance.Policy, logger *log.Logger) (providers.Executor, providers.Page, error) {
	timeout := time.Duration(cfg.Engine.TimeoutSeconds * float64(time.Second))
	switch cfg.Engine.Kind {
	case config.EngineBrowser:
		b, err := browser.Launch(browser.Options{
			Headless: cfg.Engine.Headless,
			Timeout:  timeout,
			StartURL: cfg.Engine.StartURL,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		b.Pause = repl.PausePrompt()
		s.closers = append(s.closers, b.Close)
		return b, b, nil
	case config.EngineCommand:
		c, err := providers.NewCommandExecutor(cfg.Engine.Command, timeout)
		if err != nil {
			return nil, nil, err
		}
		if len(policy.DenyEnvVars) > 0 {
			env, blocked := policy.FilterEnv(os.Environ())
			c.Env = env
			logger.Debug("withheld from engine", "vars", blocked)
		}
		return c, nil, nil
	case config.EngineScenario:
		sc, err := replay.LoadScenario(cfg.Engine.Scenario)
		if err != nil {
			return nil, nil, err
		}
		e, err := replay.NewExecutor(sc)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Page(), nil
	default:
		return nil, nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

// Close writes the manifest and releases the engine in order.
func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// summarize prints the run outcome and returns an error when the run
// stopped on a failure.
func (s *session) summarize(w io.Writer) error {
	st := s.engine.State
	if st.Stopped() {
		fmt.Fprintln(w, console.Failed("stopped after %d lines: %v", st.Dispatched, st.StopCause()))
	} else {
		fmt.Fprintln(w, console.Passed("%d lines played", st.Dispatched))
	}
	if n := len(st.Errors); n > 0 {
		fmt.Fprintln(w, console.Dim("%d error(s) reported", n))
	}
	if s.engine.BaseDir != "" {
		fmt.Fprintln(w, console.Dim("trace: %s", s.engine.BaseDir))
	}

	cause := st.StopCause()
	var stop *runtime.StopError
	if cause == nil || errors.As(cause, &stop) {
		return nil
	}
	return fmt.Errorf("run %s stopped: %w", st.RunID, cause)
}
