package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	code := exitCode(os.Stderr, err)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// exitCode reports err on w and maps it to a process exit status. An
// interrupted run exits with 130 and prints nothing.
func exitCode(w io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
}
