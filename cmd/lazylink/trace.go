package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/lazylink/pkg/console"
	"github.com/ormasoftchile/lazylink/pkg/macro"
	"github.com/ormasoftchile/lazylink/pkg/runtime"
)

var traceCmd = &cobra.Command{
	Use:   "trace [trace.jsonl]",
	Short: "Print the dispatched lines of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func runTrace(cmd *cobra.Command, args []string) error {
	events, err := runtime.ReadTrace(args[0])
	if err != nil {
		return err
	}
	failed := 0
	for _, ev := range events {
		fmt.Println(formatEvent(ev))
		if ev.Code != macro.StatusOK {
			failed++
		}
	}
	fmt.Println(console.Dim("%d lines, %d non-OK", len(events), failed))
	return nil
}

func formatEvent(ev runtime.LineEvent) string {
	ts := ev.Timestamp.Format("15:04:05.000")
	if ev.Code == macro.StatusOK {
		return fmt.Sprintf("%s %s", console.Dim("%s", ts), console.Passed("%s", ev.Line))
	}
	detail := macro.DescribeStatus(ev.Code)
	if ev.ErrorText != "" {
		detail += ": " + ev.ErrorText
	}
	return fmt.Sprintf("%s %s\n    %s", console.Dim("%s", ts), console.Failed("%s", ev.Line), detail)
}
