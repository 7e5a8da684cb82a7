package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/pkg/logger"
)

// RunMatch runs the interactive comparison loop over cfg.DB. Each round shows
// two movies; "1" or "2" picks the winner and "q" saves and exits. End of
// input saves too.
func RunMatch(ctx context.Context, cfg Config) error {
	movies, err := LoadMovies(cfg.DB)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel := elo.NewSelector(elo.WithSource(rand.New(rand.NewSource(seed)))) //nolint:gosec // matchup picking is not security sensitive

	m := &matcher{cfg: cfg, movies: model.Population(movies), sel: sel, in: bufio.NewScanner(cfg.Stdin)}
	return m.loop(ctx)
}

type matcher struct {
	cfg    Config
	movies model.Population
	sel    *elo.Selector
	in     *bufio.Scanner
	votes  int
}

func (m *matcher) loop(ctx context.Context) error {
	out := m.cfg.Stdout
	for {
		if err := ctx.Err(); err != nil {
			return m.save(ctx)
		}

		a, b, err := m.sel.Next(m.movies)
		if err != nil {
			return err
		}
		prompt(out, a, b)

		if !m.in.Scan() {
			if err := m.in.Err(); err != nil {
				m.cfg.Logger.Warn(ctx, "reading input failed", logger.Error(err))
			}
			_, _ = fmt.Fprintln(out, "\nSaving and exiting...")
			return m.save(ctx)
		}

		var winner, loser model.Movie
		switch strings.ToLower(strings.TrimSpace(m.in.Text())) {
		case "1":
			winner, loser = a, b
		case "2":
			winner, loser = b, a
		case "q":
			_, _ = fmt.Fprintln(out, "Saving and exiting...")
			return m.save(ctx)
		default:
			_, _ = fmt.Fprintln(out, "Invalid input.")
			continue
		}
		m.vote(winner, loser)
	}
}

func (m *matcher) vote(winner, loser model.Movie) {
	oldWinner, oldLoser := winner.Elo, loser.Elo
	winner, loser = elo.Update(winner, loser, m.cfg.K)
	m.movies[m.movies.Find(winner.Title)] = winner
	m.movies[m.movies.Find(loser.Title)] = loser
	m.votes++

	out := m.cfg.Stdout
	_, _ = fmt.Fprintf(out, "\nResult:\n%s won!\n", winner.Title)
	printChange(out, winner.Title, oldWinner, winner.Elo)
	printChange(out, loser.Title, oldLoser, loser.Elo)
}

func (m *matcher) save(ctx context.Context) error {
	if err := SaveMovies(m.cfg.DB, m.movies); err != nil {
		return err
	}
	m.cfg.Logger.Info(ctx, "saved comparisons",
		logger.String("db", m.cfg.DB),
		logger.Int("votes", m.votes))
	return nil
}

func prompt(w io.Writer, a, b model.Movie) {
	_, _ = fmt.Fprintf(w, "\nWhich movie is better?\n1: %s\n2: %s\nq: Quit\n\nYour choice (1/2/q): ", a.Title, b.Title)
}

func printChange(w io.Writer, title string, from, to int) {
	_, _ = fmt.Fprintf(w, "%s: %d → %d (Δ %+d)\n", title, from, to, to-from)
}
