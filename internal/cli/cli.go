// Package cli implements the file-based rating workflow: seed a movies file
// from a ratings export, add newly rated movies to it and rank it through
// pairwise comparisons in the terminal.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

// Command names.
const (
	CommandSeed  = "seed"
	CommandAdd   = "add"
	CommandMatch = "match"
)

// Run parses args (without the program name) on top of base and executes
// the selected command.
func Run(ctx context.Context, args []string, base Config) error {
	if len(args) == 0 {
		ShowHelp(base.Stdout)
		return fmt.Errorf("%w: missing command", ErrUnknownCommand)
	}

	name, rest := args[0], args[1:]
	switch name {
	case "-h", "-help", "--help", "help":
		ShowHelp(base.Stdout)
		return nil
	case CommandSeed, CommandAdd, CommandMatch:
	default:
		ShowHelp(base.Stdout)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	cfg, err := parseFlags(name, rest, base)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	switch name {
	case CommandSeed:
		return RunSeed(ctx, cfg)
	case CommandAdd:
		return RunAdd(ctx, cfg)
	default:
		return RunMatch(ctx, cfg)
	}
}

func parseFlags(name string, args []string, cfg Config) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cfg.Stdout)

	switch name {
	case CommandSeed:
		fs.StringVar(&cfg.In, "in", cfg.In, "ratings CSV export")
		fs.StringVar(&cfg.Out, "out", cfg.DB, "movies JSON to write")
		fs.Float64Var(&cfg.StdDev, "stddev", cfg.StdDev, "target Elo standard deviation")
	case CommandAdd:
		fs.StringVar(&cfg.In, "in", cfg.In, "ratings CSV export")
		fs.StringVar(&cfg.DB, "db", cfg.DB, "movies JSON to extend")
		fs.Float64Var(&cfg.StdDev, "stddev", cfg.StdDev, "target Elo standard deviation of the new batch")
	case CommandMatch:
		fs.StringVar(&cfg.DB, "db", cfg.DB, "movies JSON to rank")
		fs.IntVar(&cfg.K, "k", cfg.K, "Elo K-factor")
		fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 picks one)")
	}
	if name != CommandMatch {
		fs.Float64Var(&cfg.Mean, "mean", cfg.Mean, "target Elo mean")
		fs.BoolVar(&cfg.YearInTitle, "year", cfg.YearInTitle, `title movies as "Name Year"`)
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("%s: unexpected argument %q", name, fs.Arg(0))
	}
	return cfg, nil
}

// ShowHelp prints usage information for the tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Movie Elo
=========

Rank your rated movies by comparing them two at a time.

Usage:
  elo-cli <command> [options]

Commands:
  seed   -in ratings.csv -out movies-with-elo.json
        Assign initial Elo scores (mean 1500, stddev 350) from your ratings.
  add    -in ratings.csv -db movies-with-elo.json
        Seed movies not yet in the file and append them.
  match  -db movies-with-elo.json
        Pick the better of two movies until you enter q.

Common options:
  -mean float     target Elo mean (seed, add)
  -stddev float   target Elo standard deviation (seed, add)
  -year           title movies as "Name Year" (seed, add)
  -k int          Elo K-factor (match, default 32)
  -seed int       random seed for matchups (match)
`)
}
