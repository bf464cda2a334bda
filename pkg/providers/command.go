package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/lazylink/pkg/macro"
)

// StatusExecFailure is returned when the engine process could not be run or
// its output could not be understood.
const StatusExecFailure = -1

// CommandExecutor drives an external engine process, one invocation per
// command line. The line is passed as the last argument. The first
// whitespace-separated token on stdout is the status code (an empty stdout
// means success) and stderr carries the error text.
type CommandExecutor struct {
	Argv    []string
	Timeout time.Duration
	Env     []string // nil inherits the harness environment

	lastErr string
}

// NewCommandExecutor returns an executor for the given engine argv.
func NewCommandExecutor(argv []string, timeout time.Duration) (*CommandExecutor, error) {
	if len(argv) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return &CommandExecutor{Argv: argv, Timeout: timeout}, nil
}

// Execute runs the engine command for line.
func (c *CommandExecutor) Execute(ctx context.Context, line string) int {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Argv[1:]...), line)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...) //#nosec G204 -- argv comes from the harness config
	var stdout, stderr bytes.Buffer
	if c.Env != nil {
		cmd.Env = c.Env
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	c.lastErr = strings.TrimSpace(stderr.String())
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			c.lastErr = fmt.Sprintf("execute engine %q: %v", c.Argv[0], err)
			return StatusExecFailure
		}
	}

	code, perr := parseStatus(stdout.String())
	if perr != nil {
		c.lastErr = perr.Error()
		return StatusExecFailure
	}
	if err != nil && code == macro.StatusOK {
		// A failing process never reports success.
		if c.lastErr == "" {
			c.lastErr = err.Error()
		}
		return StatusExecFailure
	}
	return code
}

// LastErrorText returns stderr of the last invocation.
func (c *CommandExecutor) LastErrorText() string {
	return c.lastErr
}

// parseStatus reads the status code from engine stdout.
func parseStatus(out string) (int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return macro.StatusOK, nil
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("engine status %q is not an integer", fields[0])
	}
	return code, nil
}
