// Package runtime implements the macro execution loop and the script runner.
package runtime

import (
	"time"

	"github.com/ormasoftchile/lazylink/pkg/vars"
)

// RunState is the run-scoped execution context shared by every nested
// script of one top-level invocation. It is not safe for concurrent use:
// a run has a single thread of control.
type RunState struct {
	RunID         string
	StartedAt     time.Time
	RootScript    string
	CurrentScript string
	RootPath      string
	Vars          *vars.Store
	Errors        []string
	Depth         int
	Dispatched    int

	stopped   bool
	stopCause error
}

// NewRunState returns a fresh, running state.
func NewRunState(runID string) *RunState {
	return &RunState{
		RunID:     runID,
		StartedAt: time.Now(),
		Vars:      vars.New(),
	}
}

// Stopped reports whether the run has been stopped.
func (s *RunState) Stopped() bool {
	return s.stopped
}

// StopCause returns the reason the run stopped, or nil.
func (s *RunState) StopCause() error {
	return s.stopCause
}

// stop sets the terminal flag. The first cause is kept.
func (s *RunState) stop(cause error) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.stopCause = cause
}

// LineEvent is one dispatched line, written to the JSONL trace.
type LineEvent struct {
	Type      string    `json:"type"` // macro_line
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Script    string    `json:"script,omitempty"`
	Line      string    `json:"line"`
	Code      int       `json:"code"`
	ErrorText string    `json:"error_text,omitempty"`
}

// RunManifest summarizes a finished run. Written as run.yaml.
type RunManifest struct {
	RunID      string        `yaml:"run_id"`
	Script     string        `yaml:"script"`
	StartedAt  string        `yaml:"started_at"`
	EndedAt    string        `yaml:"ended_at"`
	Dispatched int           `yaml:"dispatched"`
	Stopped    bool          `yaml:"stopped"`
	StopCause  string        `yaml:"stop_cause,omitempty"`
	Errors     []string      `yaml:"errors,omitempty"`
	Variables  []vars.Record `yaml:"variables,omitempty"`
}
