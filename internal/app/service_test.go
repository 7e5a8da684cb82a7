package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/adapters/poster"
	"github.com/okian/movie-elo/internal/adapters/repository"
	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const owner = "alice"

func rows(titles ...string) []model.RawRating {
	out := make([]model.RawRating, len(titles))
	for i, t := range titles {
		out[i] = model.RawRating{Title: t, Rating: float64(10 - i)}
	}
	return out
}

func newService(opts ...service.Option) *service.Service {
	svc, err := service.New(append([]service.Option{service.WithRandSeed(7)}, opts...)...)
	So(err, ShouldBeNil)
	return svc
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *stubFetcher) Lookup(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if title == "Unknown" {
		return "", poster.ErrNoPoster
	}
	return "https://img/" + title + ".jpg", nil
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc, err := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(err, ShouldBeNil)
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["posters"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 4)
		})
	})

	Convey("Given an invalid rating configuration", t, func() {
		cfg := elo.DefaultConfig()
		cfg.KFactor = 0
		_, err := service.New(service.WithEloConfig(cfg))

		Convey("Then construction fails", func() {
			So(errors.Is(err, elo.ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestService_Import(t *testing.T) {
	Convey("Given an empty population", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("When the first batch is imported", func() {
			res, err := svc.Import(ctx, owner, rows("Alien", "Heat", "Up", "Cars"))
			So(err, ShouldBeNil)

			Convey("Then it is seeded cold around 1500 with stddev 350", func() {
				So(res.Kind, ShouldEqual, service.KindSeed)
				So(res.Total, ShouldEqual, 4)
				got, err := svc.Rankings(ctx, owner, 10)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 4)
				So(got[0].Title, ShouldEqual, "Alien")
				So(got[0].Elo, ShouldEqual, 1903)
				So(got[1].Elo, ShouldEqual, 1612)
				So(got[2].Elo, ShouldEqual, 1388)
				So(got[3].Elo, ShouldEqual, 1097)
			})

			Convey("And a later batch is merged with stddev 100", func() {
				res, err := svc.Import(ctx, owner, rows("Jaws", "Heat", "Rocky", "Se7en"))
				So(err, ShouldBeNil)
				So(res.Kind, ShouldEqual, service.KindMerge)
				So(res.Skipped, ShouldEqual, 1)
				So(len(res.Added), ShouldEqual, 3)
				So(res.Added[0].Elo, ShouldEqual, 1597)
				So(res.Added[1].Elo, ShouldEqual, 1500)
				So(res.Added[2].Elo, ShouldEqual, 1403)
				So(res.Offset, ShouldEqual, 0)
				So(res.Total, ShouldEqual, 7)

				heat, err := svc.Rank(ctx, owner, "Heat")
				So(err, ShouldBeNil)
				So(heat.Elo, ShouldEqual, 1612)
			})
		})

		Convey("When the batch has no usable rows", func() {
			_, err := svc.Import(ctx, owner, []model.RawRating{{Title: ""}})

			Convey("Then the import is rejected", func() {
				So(errors.Is(err, service.ErrEmptyImport), ShouldBeTrue)
			})
		})

		Convey("When the owner is invalid", func() {
			_, err := svc.Import(ctx, "a:b", rows("Alien"))

			Convey("Then the store rejects it", func() {
				So(errors.Is(err, repository.ErrInvalidOwner), ShouldBeTrue)
			})
		})
	})

	Convey("Given re-normalized seeding and a single movie", t, func() {
		cfg := elo.DefaultConfig()
		cfg.SeedMode = elo.ModeRenormalized
		svc := newService(service.WithEloConfig(cfg))

		Convey("Then the degenerate seed falls back to direct mode", func() {
			res, err := svc.Import(context.Background(), owner, rows("Alien"))
			So(err, ShouldBeNil)
			So(res.Added[0].Elo, ShouldEqual, 1500)
		})
	})
}

func TestService_MatchupAndVote(t *testing.T) {
	Convey("Given a population of two movies", t, func() {
		svc := newService()
		ctx := context.Background()
		_, err := svc.Import(ctx, owner, rows("Alien", "Heat"))
		So(err, ShouldBeNil)

		m, err := svc.NextMatchup(ctx, owner)
		So(err, ShouldBeNil)

		Convey("Then the matchup holds both movies", func() {
			So(m.ID, ShouldNotBeEmpty)
			So(m.A.Title, ShouldNotEqual, m.B.Title)
			So(svc.GetStats()["pendingMatchups"], ShouldEqual, int64(1))
		})

		Convey("When side b wins", func() {
			res, err := svc.Vote(ctx, owner, m.ID, service.SideB)
			So(err, ShouldBeNil)

			Convey("Then the update is zero-sum and persisted", func() {
				So(res.Winner.Title, ShouldEqual, m.B.Title)
				So(res.WinnerDelta(), ShouldBeGreaterThan, 0)
				So(res.WinnerDelta(), ShouldBeLessThanOrEqualTo, 32)
				So(res.WinnerDelta()+res.LoserDelta(), ShouldEqual, 0)

				e, err := svc.Rank(ctx, owner, res.Winner.Title)
				So(err, ShouldBeNil)
				So(e.Elo, ShouldEqual, res.Winner.Elo)
			})

			Convey("And the matchup cannot be voted twice", func() {
				_, err := svc.Vote(ctx, owner, m.ID, service.SideA)
				So(errors.Is(err, service.ErrUnknownMatchup), ShouldBeTrue)
			})
		})

		Convey("When the winner side is invalid", func() {
			_, err := svc.Vote(ctx, owner, m.ID, "c")

			Convey("Then the vote is rejected and the matchup stays pending", func() {
				So(errors.Is(err, service.ErrInvalidWinner), ShouldBeTrue)
				_, err = svc.Vote(ctx, owner, m.ID, service.SideA)
				So(err, ShouldBeNil)
			})
		})

		Convey("When another owner votes on the matchup", func() {
			_, err := svc.Vote(ctx, "bob", m.ID, service.SideA)

			Convey("Then it is unknown to them", func() {
				So(errors.Is(err, service.ErrUnknownMatchup), ShouldBeTrue)
			})
		})
	})

	Convey("Given a population of one movie", t, func() {
		svc := newService()
		_, err := svc.Import(context.Background(), owner, rows("Alien"))
		So(err, ShouldBeNil)

		Convey("Then no matchup can be drawn", func() {
			_, err := svc.NextMatchup(context.Background(), owner)
			So(errors.Is(err, elo.ErrInsufficientItems), ShouldBeTrue)
		})
	})

	Convey("Given at most one pending matchup per owner", t, func() {
		svc := newService(service.WithMaxPending(1))
		ctx := context.Background()
		_, err := svc.Import(ctx, owner, rows("Alien", "Heat", "Up"))
		So(err, ShouldBeNil)

		first, err := svc.NextMatchup(ctx, owner)
		So(err, ShouldBeNil)
		second, err := svc.NextMatchup(ctx, owner)
		So(err, ShouldBeNil)

		Convey("Then the older matchup is discarded", func() {
			_, err := svc.Vote(ctx, owner, first.ID, service.SideA)
			So(errors.Is(err, service.ErrUnknownMatchup), ShouldBeTrue)
			_, err = svc.Vote(ctx, owner, second.ID, service.SideA)
			So(err, ShouldBeNil)
		})
	})
}

func TestService_Reset(t *testing.T) {
	Convey("Given an owner with a pending matchup", t, func() {
		svc := newService()
		ctx := context.Background()
		_, err := svc.Import(ctx, owner, rows("Alien", "Heat", "Up", "Cars"))
		So(err, ShouldBeNil)
		_, err = svc.Import(ctx, "bob", rows("Jaws", "Rocky"))
		So(err, ShouldBeNil)
		m, err := svc.NextMatchup(ctx, owner)
		So(err, ShouldBeNil)

		Convey("When the owner resets", func() {
			n, err := svc.Reset(ctx, owner)
			So(err, ShouldBeNil)

			Convey("Then only their population and session are gone", func() {
				So(n, ShouldEqual, 4)
				got, err := svc.Rankings(ctx, owner, 10)
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)

				_, err = svc.Vote(ctx, owner, m.ID, service.SideA)
				So(errors.Is(err, service.ErrUnknownMatchup), ShouldBeTrue)

				other, err := svc.Rankings(ctx, "bob", 10)
				So(err, ShouldBeNil)
				So(len(other), ShouldEqual, 2)
			})

			Convey("And the next import seeds cold again", func() {
				res, err := svc.Import(ctx, owner, rows("Alien"))
				So(err, ShouldBeNil)
				So(res.Kind, ShouldEqual, service.KindSeed)
			})
		})
	})
}

func TestService_Rankings(t *testing.T) {
	Convey("Given a service capped at two rankings", t, func() {
		svc := newService(service.WithMaxRankings(2))
		ctx := context.Background()
		_, err := svc.Import(ctx, owner, rows("Alien", "Heat", "Up"))
		So(err, ShouldBeNil)

		Convey("Then larger limits are capped", func() {
			got, err := svc.Rankings(ctx, owner, 50)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Rank, ShouldEqual, 1)
		})

		Convey("Then a non-positive limit is rejected", func() {
			_, err := svc.Rankings(ctx, owner, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then an unknown title is not found", func() {
			_, err := svc.Rank(ctx, owner, "Jaws")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Posters(t *testing.T) {
	Convey("Given a started service with a poster fetcher", t, func() {
		f := &stubFetcher{}
		svc := newService(service.WithPosterFetcher(f), service.WithWorkerCount(2))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When movies are imported", func() {
			_, err := svc.Import(ctx, owner, rows("Alien", "Unknown"))
			So(err, ShouldBeNil)
			_, err = svc.Import(ctx, "bob", rows("Alien"))
			So(err, ShouldBeNil)

			Convey("Then posters are resolved in the background", func() {
				deadline := time.Now().Add(3 * time.Second)
				for svc.Poster("Alien") == "" && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(svc.Poster("Alien"), ShouldEqual, "https://img/Alien.jpg")
				So(svc.Poster("Unknown"), ShouldEqual, "")

				got, err := svc.Rankings(ctx, owner, 10)
				So(err, ShouldBeNil)
				So(got[0].Poster, ShouldEqual, "https://img/Alien.jpg")

				stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				So(svc.Stop(stopCtx), ShouldBeNil)

				f.mu.Lock()
				defer f.mu.Unlock()
				So(f.calls, ShouldEqual, 2)
			})
		})

		Reset(func() {
			_ = svc.Stop(context.Background())
		})
	})
}

// flakyFetcher fails the first lookup of every title.
type flakyFetcher struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *flakyFetcher) Lookup(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[title]++
	if f.calls[title] == 1 {
		return "", poster.ErrUpstream
	}
	return "https://img/" + title + ".jpg", nil
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func TestService_PosterBackfill(t *testing.T) {
	Convey("Given a store populated before the service started", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore()
		So(store.Upsert(ctx, owner,
			model.Movie{Title: "Alien", Rating: 5, Elo: 1600},
			model.Movie{Title: "Heat", Rating: 4, Elo: 1400},
		), ShouldBeNil)
		So(store.Upsert(ctx, "bob",
			model.Movie{Title: "Cars", Rating: 3, Elo: 1500},
			model.Movie{Title: "Jaws", Rating: 4, Elo: 1500},
		), ShouldBeNil)

		f := &stubFetcher{}
		svc := newService(service.WithStore(store), service.WithPosterFetcher(f))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Reading rankings schedules the missing posters", func() {
			_, err := svc.Rankings(ctx, owner, 10)
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return svc.Poster("Heat") != "" }), ShouldBeTrue)

			got, err := svc.Rank(ctx, owner, "Alien")
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return svc.Poster("Alien") != "" }), ShouldBeTrue)
			got, err = svc.Rank(ctx, owner, "Alien")
			So(err, ShouldBeNil)
			So(got.Poster, ShouldEqual, "https://img/Alien.jpg")
		})

		Convey("Drawing a matchup schedules both posters", func() {
			_, err := svc.NextMatchup(ctx, "bob")
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return svc.Poster("Cars") != "" && svc.Poster("Jaws") != "" }), ShouldBeTrue)

			f.mu.Lock()
			defer f.mu.Unlock()
			So(f.calls, ShouldEqual, 2)
		})

		Reset(func() {
			_ = svc.Stop(context.Background())
		})
	})

	Convey("Given an upstream that fails the first lookup", t, func() {
		ctx := context.Background()
		f := &flakyFetcher{}
		svc := newService(service.WithPosterFetcher(f))
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.Import(ctx, owner, rows("Alien", "Heat"))
		So(err, ShouldBeNil)

		Convey("A later read retries the lookup", func() {
			ok := waitFor(func() bool {
				got, err := svc.Rankings(ctx, owner, 10)
				return err == nil && got[0].Poster != ""
			})
			So(ok, ShouldBeTrue)

			f.mu.Lock()
			defer f.mu.Unlock()
			So(f.calls["Alien"], ShouldEqual, 2)
		})

		Reset(func() {
			_ = svc.Stop(context.Background())
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a service keeping two sessions", t, func() {
		ctx := context.Background()
		svc := newService(service.WithMaxSessions(2))
		for _, id := range []string{"a", "b"} {
			_, err := svc.Import(ctx, id, rows("Alien", "Heat", "Up"))
			So(err, ShouldBeNil)
		}
		m, err := svc.NextMatchup(ctx, "a")
		So(err, ShouldBeNil)
		_, err = svc.NextMatchup(ctx, "b")
		So(err, ShouldBeNil)
		So(svc.GetStats()["pendingMatchups"], ShouldEqual, int64(2))

		Convey("A third owner evicts the least recently used one", func() {
			_, err := svc.Import(ctx, "c", rows("Alien", "Heat"))
			So(err, ShouldBeNil)

			stats := svc.GetStats()
			So(stats["activeSessions"], ShouldEqual, 2)
			So(stats["pendingMatchups"], ShouldEqual, int64(1))

			_, err = svc.Vote(ctx, "a", m.ID, service.SideA)
			So(errors.Is(err, service.ErrUnknownMatchup), ShouldBeTrue)
		})

		Convey("Reset forgets the owner's session", func() {
			_, err := svc.Reset(ctx, "a")
			So(err, ShouldBeNil)
			stats := svc.GetStats()
			So(stats["activeSessions"], ShouldEqual, 1)
			So(stats["pendingMatchups"], ShouldEqual, int64(1))
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService()
		So(svc.Start(context.Background()), ShouldBeNil)
		So(svc.GetStats()["started"], ShouldEqual, true)

		Convey("When starting twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})

		Convey("When stopping the service", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_ConcurrentOwners(t *testing.T) {
	Convey("Given many owners voting concurrently", t, func() {
		svc := newService()
		ctx := context.Background()
		const owners = 8

		var wg sync.WaitGroup
		errs := make(chan error, owners)
		for i := 0; i < owners; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := svc.Import(ctx, id, rows("Alien", "Heat", "Up", "Cars", "Jaws")); err != nil {
					errs <- err
					return
				}
				for j := 0; j < 50; j++ {
					m, err := svc.NextMatchup(ctx, id)
					if err != nil {
						errs <- err
						return
					}
					if _, err := svc.Vote(ctx, id, m.ID, service.SideA); err != nil {
						errs <- err
						return
					}
				}
			}(fmt.Sprintf("owner-%d", i))
		}
		wg.Wait()
		close(errs)

		Convey("Then every population keeps its total Elo", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			for i := 0; i < owners; i++ {
				got, err := svc.Rankings(ctx, fmt.Sprintf("owner-%d", i), 10)
				So(err, ShouldBeNil)
				sum := 0
				for _, e := range got {
					sum += e.Elo
				}
				So(sum, ShouldEqual, 5*1500)
			}
			So(svc.GetStats()["pendingMatchups"], ShouldEqual, int64(0))
		})
	})
}
