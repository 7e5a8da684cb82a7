package repository

import (
	"context"
	"testing"

	"github.com/okian/movie-elo/internal/domain/model"
)

func TestBadgerStore_Contract(t *testing.T) {
	runStoreContract(t, "badger store", func(t *testing.T) Store {
		s, err := OpenBadgerStore("")
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		return s
	})
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Upsert(ctx, "owner", model.Movie{Title: "Heat 1995", Rating: 4, Elo: 1550, URI: "https://boxd.it/2aHi"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	m, err := s.Get(ctx, "owner", "Heat 1995")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Elo != 1550 || m.URI != "https://boxd.it/2aHi" {
		t.Errorf("unexpected movie after reopen: %+v", m)
	}
}

func TestBadgerStore_OwnerPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	// "ann" must not see "anna"'s movies even though the key prefixes overlap.
	if err := s.Upsert(ctx, "anna", model.Movie{Title: "Up 2009", Elo: 1500}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, err := s.Count(ctx, "ann")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 movies for ann, got %d", n)
	}
}
