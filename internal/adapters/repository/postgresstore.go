package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
	"github.com/okian/movie-elo/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	user_id TEXT             NOT NULL,
	title   TEXT             NOT NULL,
	rating  DOUBLE PRECISION NOT NULL,
	elo     INTEGER          NOT NULL,
	uri     TEXT,
	PRIMARY KEY (user_id, title)
);
CREATE INDEX IF NOT EXISTS movies_rank_idx ON movies (user_id, elo DESC, title COLLATE "C");
`

const rankedColumns = `title, rating, elo, uri`

// PostgresStore persists populations in a movies table keyed by (user_id, title).
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenPostgresStore connects to dsn and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, dsn string, l logger.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db, l)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, l logger.Logger) *PostgresStore {
	if l == nil {
		l = logger.Nop()
	}
	return &PostgresStore{db: db, logger: l}
}

// EnsureSchema creates the movies table and its ranking index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func scanMovie(sc interface{ Scan(...any) error }) (model.Movie, error) {
	var (
		m   model.Movie
		uri sql.NullString
	)
	if err := sc.Scan(&m.Title, &m.Rating, &m.Elo, &uri); err != nil {
		return model.Movie{}, err
	}
	m.URI = uri.String
	return m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresStore) Population(ctx context.Context, owner string) (_ []model.Movie, err error) {
	defer observe("population", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rankedColumns+` FROM movies WHERE user_id = $1 ORDER BY elo DESC, title COLLATE "C" ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var out []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, owner, title string) (_ model.Movie, err error) {
	defer observe("get", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return model.Movie{}, err
	}

	m, err := scanMovie(s.db.QueryRowContext(ctx,
		`SELECT `+rankedColumns+` FROM movies WHERE user_id = $1 AND title = $2`, owner, title))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrNotFound
	}
	if err != nil {
		return model.Movie{}, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, owner string, movies ...model.Movie) (err error) {
	defer observe("upsert", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return err
	}
	if len(movies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			s.logger.Warn(ctx, "failed to rollback transaction", logger.Error(rerr))
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movies (user_id, title, rating, elo, uri)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, title)
		DO UPDATE SET rating = EXCLUDED.rating, elo = EXCLUDED.elo, uri = EXCLUDED.uri`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range movies {
		if _, err := stmt.ExecContext(ctx, owner, m.Title, m.Rating, m.Elo, nullable(m.URI)); err != nil {
			return fmt.Errorf("upsert %q: %w", m.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, owner string) (_ int, err error) {
	defer observe("delete_all", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE user_id = $1`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete movies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) TopN(ctx context.Context, owner string, n int) (_ []types.Entry, err error) {
	defer observe("top_n", time.Now(), &err)
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rankedColumns+` FROM movies WHERE user_id = $1 ORDER BY elo DESC, title COLLATE "C" ASC LIMIT $2`, owner, n)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		out = append(out, toEntry(len(out)+1, m))
	}
	return out, rows.Err()
}

func (s *PostgresStore) Rank(ctx context.Context, owner, title string) (_ types.Entry, err error) {
	defer observe("rank", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return types.Entry{}, err
	}

	var (
		rank int
		m    model.Movie
		uri  sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT rank, title, rating, elo, uri FROM (
			SELECT ROW_NUMBER() OVER (ORDER BY elo DESC, title COLLATE "C" ASC) AS rank, `+rankedColumns+`
			FROM movies WHERE user_id = $1
		) ranked WHERE title = $2`, owner, title).Scan(&rank, &m.Title, &m.Rating, &m.Elo, &uri)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		return types.Entry{}, fmt.Errorf("rank movie: %w", err)
	}
	m.URI = uri.String
	return toEntry(rank, m), nil
}

func (s *PostgresStore) Count(ctx context.Context, owner string) (int, error) {
	if err := ValidateOwner(owner); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies WHERE user_id = $1`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
