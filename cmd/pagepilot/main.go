// File: cmd/pagepilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/pagepilot/cmd"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

const panicLogFile = "pagepilot-panic.log"

// Swapped out in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// SIGINT and SIGTERM cancel in-flight waits and navigations.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(exitCode(cmd.Execute(ctx)))
}

// exitCode maps the command result to the process status. An interrupted
// run exits cleanly.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}

// handlePanic writes the stack of an unrecovered panic to panicLogFile.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	msg := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(msg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n%s\n", err, msg)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "pagepilot crashed. Details logged to %s\n", panicLogFile)
	osExit(2)
}
