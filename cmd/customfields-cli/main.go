// Command customfields renders, fills and validates custom field definitions
// from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/goliatone/go-customfields/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	err := cli.Run(ctx, cli.Env{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}, os.Args[1:])
	if err == nil {
		return
	}
	if !errors.Is(err, cli.ErrInvalid) {
		fmt.Fprintf(os.Stderr, "customfields: %v\n", err)
	}
	os.Exit(1)
}
