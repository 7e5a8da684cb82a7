package repository

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/movie-elo/internal/domain/model"
)

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, name string, open func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	Convey("Given an empty "+name, t, func() {
		s := open(t)
		Reset(func() { _ = s.Close() })

		Convey("Then reads should see nothing", func() {
			pop, err := s.Population(ctx, "alice")
			So(err, ShouldBeNil)
			So(pop, ShouldBeEmpty)

			n, err := s.Count(ctx, "alice")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			top, err := s.TopN(ctx, "alice", 5)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)

			_, err = s.Rank(ctx, "alice", "Alien 1979")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			_, err = s.Get(ctx, "alice", "Alien 1979")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			deleted, err := s.DeleteAll(ctx, "alice")
			So(err, ShouldBeNil)
			So(deleted, ShouldEqual, 0)
		})

		Convey("When movies are upserted for two owners", func() {
			So(s.Upsert(ctx, "alice",
				model.Movie{Title: "Alien 1979", Rating: 4.5, Elo: 1600, URI: "https://boxd.it/2bE6"},
				model.Movie{Title: "Heat 1995", Rating: 4, Elo: 1550},
				model.Movie{Title: "Cats 2019", Rating: 0.5, Elo: 1200},
				model.Movie{Title: "Aliens 1986", Rating: 4, Elo: 1550},
			), ShouldBeNil)
			So(s.Upsert(ctx, "bob", model.Movie{Title: "Alien 1979", Rating: 2, Elo: 1400}), ShouldBeNil)

			Convey("Then the population should come back ranked", func() {
				pop, err := s.Population(ctx, "alice")
				So(err, ShouldBeNil)
				So(titles(pop), ShouldResemble, []string{"Alien 1979", "Aliens 1986", "Heat 1995", "Cats 2019"})
				So(pop[0].URI, ShouldEqual, "https://boxd.it/2bE6")
				So(pop[0].Rating, ShouldEqual, 4.5)
			})

			Convey("Then owners should be isolated", func() {
				m, err := s.Get(ctx, "bob", "Alien 1979")
				So(err, ShouldBeNil)
				So(m.Elo, ShouldEqual, 1400)

				n, err := s.Count(ctx, "bob")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Then TopN should rank with ties broken by title", func() {
				top, err := s.TopN(ctx, "alice", 3)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 3)
				So(top[0].Rank, ShouldEqual, 1)
				So(top[1].Title, ShouldEqual, "Aliens 1986")
				So(top[1].Rank, ShouldEqual, 2)
				So(top[2].Title, ShouldEqual, "Heat 1995")
				So(top[2].Rank, ShouldEqual, 3)
			})

			Convey("Then Rank should match the ranking", func() {
				e, err := s.Rank(ctx, "alice", "Cats 2019")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 4)
				So(e.Elo, ShouldEqual, 1200)
			})

			Convey("And a movie is updated", func() {
				So(s.Upsert(ctx, "alice", model.Movie{Title: "Cats 2019", Rating: 0.5, Elo: 1700}), ShouldBeNil)

				Convey("Then it should move without duplicating", func() {
					n, err := s.Count(ctx, "alice")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 4)

					e, err := s.Rank(ctx, "alice", "Cats 2019")
					So(err, ShouldBeNil)
					So(e.Rank, ShouldEqual, 1)

					m, err := s.Get(ctx, "alice", "Cats 2019")
					So(err, ShouldBeNil)
					So(m.URI, ShouldBeEmpty)
				})
			})

			Convey("And the owner's population is deleted", func() {
				deleted, err := s.DeleteAll(ctx, "alice")
				So(err, ShouldBeNil)

				Convey("Then only that owner should be emptied", func() {
					So(deleted, ShouldEqual, 4)
					n, _ := s.Count(ctx, "alice")
					So(n, ShouldEqual, 0)
					n, _ = s.Count(ctx, "bob")
					So(n, ShouldEqual, 1)
				})
			})
		})

		Convey("When arguments are invalid", func() {
			_, err := s.TopN(ctx, "alice", 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)

			for _, owner := range []string{"", "a:b"} {
				So(errors.Is(s.Upsert(ctx, owner, model.Movie{Title: "X"}), ErrInvalidOwner), ShouldBeTrue)
				_, err = s.Population(ctx, owner)
				So(errors.Is(err, ErrInvalidOwner), ShouldBeTrue)
			}
		})
	})
}

func titles(ms []model.Movie) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Title
	}
	return out
}
