package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/okian/movie-elo/internal/cli"
	"github.com/okian/movie-elo/pkg/logger"
)

func main() {
	// Logs go to stderr so they never interleave with the prompts.
	log, err := logger.New(os.Stderr, logger.FormatText)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	level := os.Getenv("MOVIELO_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	if err := logger.SetLevelString(level); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	cfg := cli.DefaultConfig()
	cfg.Logger = log.Named("cli")

	if err := cli.Run(context.Background(), os.Args[1:], cfg); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}
