package elo_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func population(elos ...int) []model.Movie {
	out := make([]model.Movie, len(elos))
	for i, e := range elos {
		out[i] = model.Movie{Title: string(rune('A' + i)), Elo: e}
	}
	return out
}

func TestSelector(t *testing.T) {
	Convey("Given a selector over a spread population", t, func() {
		pop := population(1000, 1050, 1100, 1500, 1520, 1560, 1900, 1950, 2000, 2010, 1700)
		sel := elo.NewSelector(elo.WithSource(rand.New(rand.NewSource(42))))

		Convey("When many matchups are drawn", func() {
			seen := make([]string, 0, 200)
			for i := 0; i < 200; i++ {
				a, b, err := sel.Next(pop)
				So(err, ShouldBeNil)
				So(a.Title, ShouldNotEqual, b.Title)
				seen = append(seen, model.MatchupKey(a.Title, b.Title))
			}

			Convey("Then no key should repeat inside the window", func() {
				for i := range seen {
					for j := i + 1; j < len(seen) && j <= i+elo.DefaultWindowSize; j++ {
						So(seen[j], ShouldNotEqual, seen[i])
					}
				}
			})

			Convey("Then the window should be full", func() {
				So(sel.Window().Len(), ShouldEqual, elo.DefaultWindowSize)
			})
		})

		Convey("When a movie has close neighbours", func() {
			near := 0
			for i := 0; i < 100; i++ {
				a, b, err := sel.Next(pop)
				So(err, ShouldBeNil)
				d := a.Elo - b.Elo
				if d < 0 {
					d = -d
				}
				if d < elo.DefaultCloseness {
					near++
				}
			}

			Convey("Then pairs should be within closeness", func() {
				So(near, ShouldEqual, 100)
			})
		})
	})

	Convey("Given movies too far apart to be close", t, func() {
		pop := population(1000, 2000)
		sel := elo.NewSelector(elo.WithSource(rand.New(rand.NewSource(7))), elo.WithWindowSize(0))

		Convey("When a matchup is drawn", func() {
			a, b, err := sel.Next(pop)

			Convey("Then it should fall back to any other movie", func() {
				So(err, ShouldBeNil)
				So(a.Title, ShouldNotEqual, b.Title)
			})
		})
	})

	Convey("Given three movies and a window of ten", t, func() {
		pop := population(1500, 1500, 1500)

		Convey("When relaxation is enabled", func() {
			var relaxed int
			sel := elo.NewSelector(
				elo.WithSource(rand.New(rand.NewSource(1))),
				elo.WithObserver(func(_ int, r bool) {
					if r {
						relaxed++
					}
				}),
			)
			for i := 0; i < 6; i++ {
				a, b, err := sel.Next(pop)
				So(err, ShouldBeNil)
				So(a.Title, ShouldNotEqual, b.Title)
			}

			Convey("Then repeats should be served once every pair is recent", func() {
				So(relaxed, ShouldBeGreaterThanOrEqualTo, 3)
			})
		})

		Convey("When relaxation is disabled", func() {
			sel := elo.NewSelector(
				elo.WithSource(rand.New(rand.NewSource(1))),
				elo.WithRelaxOnExhaustion(false),
			)
			keys := map[string]bool{}
			failures := 0
			for i := 0; i < 6; i++ {
				a, b, err := sel.Next(pop)
				if err != nil {
					So(errors.Is(err, elo.ErrInsufficientItems), ShouldBeTrue)
					So(errors.Is(err, elo.ErrWindowExhausted), ShouldBeTrue)
					failures++
					continue
				}
				key := model.MatchupKey(a.Title, b.Title)
				So(keys[key], ShouldBeFalse)
				keys[key] = true
			}

			Convey("Then at most three distinct pairs should be served before failing", func() {
				So(len(keys), ShouldBeLessThanOrEqualTo, 3)
				So(failures, ShouldBeGreaterThanOrEqualTo, 3)
			})
		})
	})

	Convey("Given too few movies", t, func() {
		sel := elo.NewSelector()

		Convey("When the population is empty or a single movie", func() {
			_, _, err0 := sel.Next(nil)
			_, _, err1 := sel.Next(population(1500))

			Convey("Then ErrInsufficientItems should be returned", func() {
				So(errors.Is(err0, elo.ErrInsufficientItems), ShouldBeTrue)
				So(errors.Is(err1, elo.ErrInsufficientItems), ShouldBeTrue)
			})
		})

		Convey("When two entries share a title", func() {
			pop := []model.Movie{{Title: "Same", Elo: 1500}, {Title: "Same", Elo: 1500}}
			_, _, err := sel.Next(pop)

			Convey("Then no pair should be produced", func() {
				So(errors.Is(err, elo.ErrInsufficientItems), ShouldBeTrue)
			})
		})
	})
}

func TestRecentWindow(t *testing.T) {
	Convey("Given a window of two", t, func() {
		w := elo.NewRecentWindow(2)

		Convey("When three keys are pushed", func() {
			w.Push("A vs B")
			w.Push("A vs C")
			w.Push("B vs C")

			Convey("Then the oldest should be evicted", func() {
				So(w.Len(), ShouldEqual, 2)
				So(w.Contains("A vs B"), ShouldBeFalse)
				So(w.Contains("A vs C"), ShouldBeTrue)
				So(w.Contains("B vs C"), ShouldBeTrue)
			})

			Convey("Then reset should empty it", func() {
				w.Reset()
				So(w.Len(), ShouldEqual, 0)
				So(w.Size(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a zero sized window", t, func() {
		w := elo.NewRecentWindow(0)
		w.Push("A vs B")

		Convey("Then it should hold nothing", func() {
			So(w.Contains("A vs B"), ShouldBeFalse)
		})
	})
}
