package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

func init() {
	// The tray's UI loop has to own the main thread.
	runtime.LockOSThread()
}

func main() {
	setupLogging(slog.LevelInfo)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the default text logger at level
func setupLogging(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
