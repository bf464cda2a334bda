package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrAborted is returned by a pause prompt when the user stops the run.
var ErrAborted = errors.New("user pressed stop")

// PausePrompt returns a PAUSE handler that blocks until the user presses
// Enter. Typing "stop" or closing the input aborts the run.
func PausePrompt() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		rl, err := readline.NewEx(&readline.Config{Prompt: "paused (enter to continue, 'stop' to abort)> "})
		if err != nil {
			return fmt.Errorf("init readline: %w", err)
		}
		defer rl.Close()
		return waitForResume(ctx, rl.Readline)
	}
}

func waitForResume(ctx context.Context, readLine func() (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := readLine()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return ErrAborted
		}
		return err
	}
	if strings.EqualFold(strings.TrimSpace(line), "stop") {
		return ErrAborted
	}
	return nil
}
