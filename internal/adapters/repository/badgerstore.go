package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
)

const movieKeyPrefix = "movie:"

// BadgerStore persists populations in BadgerDB, one key per movie:
// movie:<owner>:<title> -> JSON record.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a database at path. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func ownerPrefix(owner string) []byte {
	return []byte(movieKeyPrefix + owner + ":")
}

func movieKey(owner, title string) []byte {
	return []byte(movieKeyPrefix + owner + ":" + title)
}

func decode(item *badger.Item) (model.Movie, error) {
	var rec model.Record
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return model.Movie{}, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return rec.Movie(), nil
}

func (s *BadgerStore) Population(_ context.Context, owner string) (_ []model.Movie, err error) {
	defer observe("population", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}

	var out []model.Movie
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := ownerPrefix(owner)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			m, err := decode(it.Item())
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	sortRanked(out)
	return out, nil
}

func (s *BadgerStore) Get(_ context.Context, owner, title string) (_ model.Movie, err error) {
	defer observe("get", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return model.Movie{}, err
	}

	var m model.Movie
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(movieKey(owner, title))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get movie: %w", err)
		}
		m, err = decode(item)
		return err
	})
	return m, err
}

func (s *BadgerStore) Upsert(_ context.Context, owner string, movies ...model.Movie) (err error) {
	defer observe("upsert", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, m := range movies {
			data, err := json.Marshal(m.ToRecord())
			if err != nil {
				return fmt.Errorf("marshal movie: %w", err)
			}
			if err := txn.Set(movieKey(owner, m.Title), data); err != nil {
				return fmt.Errorf("set movie: %w", err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) DeleteAll(_ context.Context, owner string) (_ int, err error) {
	defer observe("delete_all", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return 0, err
	}

	keys, err := s.keys(owner)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete movie: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete movies: %w", err)
	}
	return len(keys), nil
}

func (s *BadgerStore) TopN(ctx context.Context, owner string, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	ranked, err := s.Population(ctx, owner)
	if err != nil {
		return nil, err
	}
	return entries(ranked, n), nil
}

func (s *BadgerStore) Rank(ctx context.Context, owner, title string) (types.Entry, error) {
	ranked, err := s.Population(ctx, owner)
	if err != nil {
		return types.Entry{}, err
	}
	for i, m := range ranked {
		if m.Title == title {
			return toEntry(i+1, m), nil
		}
	}
	return types.Entry{}, ErrNotFound
}

func (s *BadgerStore) Count(_ context.Context, owner string) (int, error) {
	if err := ValidateOwner(owner); err != nil {
		return 0, err
	}
	keys, err := s.keys(owner)
	return len(keys), err
}

// keys lists the owner's movie keys without reading values.
func (s *BadgerStore) keys(owner string) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ownerPrefix(owner)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
