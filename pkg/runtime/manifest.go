package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnableTrace creates <dir>/<run_id>/ and starts writing trace.jsonl there.
func (e *Engine) EnableTrace(dir string) error {
	baseDir := filepath.Join(dir, e.State.RunID)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	tw, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"))
	if err != nil {
		return fmt.Errorf("create trace writer: %w", err)
	}
	e.Trace = tw
	e.BaseDir = baseDir
	return nil
}

// Manifest summarizes the run so far.
func (e *Engine) Manifest() RunManifest {
	m := RunManifest{
		RunID:      e.State.RunID,
		Script:     e.State.RootScript,
		StartedAt:  e.State.StartedAt.Format(time.RFC3339),
		EndedAt:    time.Now().Format(time.RFC3339),
		Dispatched: e.State.Dispatched,
		Stopped:    e.State.Stopped(),
		Errors:     e.State.Errors,
		Variables:  e.State.Vars.Records(),
	}
	if cause := e.State.StopCause(); cause != nil {
		m.StopCause = cause.Error()
	}
	return m
}

// WriteManifest writes run.yaml next to the trace. It is a no-op when
// tracing is disabled.
func (e *Engine) WriteManifest() error {
	if e.BaseDir == "" {
		return nil
	}
	data, err := yaml.Marshal(e.Manifest())
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.BaseDir, "run.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Close flushes and closes the trace.
func (e *Engine) Close() error {
	if e.Trace == nil {
		return nil
	}
	err := e.Trace.Close()
	e.Trace = nil
	return err
}
