package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// timeLayout is how timestamps are stored. Lexical order equals time order.
const timeLayout = "2006-01-02 15:04:05"

// Store wraps a database connection and provides methods to persist and
// retrieve the prediction game's data. Every method re-reads current state;
// nothing is cached between calls.
type Store struct {
	DB     *sql.DB
	driver string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects using the given driver and DSN and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenPostgres opens a Postgres connection using the given connection string.
func OpenPostgres(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open(DriverPostgres, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newStore(ctx, db, DriverPostgres)
}

// OpenSQLite opens a SQLite database. Use ":memory:" for a throwaway one.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	return newStore(ctx, db, DriverSQLite)
}

func newStore(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	// verify early
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := &Store{DB: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Driver reports which backend the store runs on.
func (s *Store) Driver() string { return s.driver }

func (s *Store) idColumn() string {
	if s.driver == DriverPostgres {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	id := s.idColumn()
	queries := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id            ` + id + `,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('admin', 'user'))
		)`,
		`CREATE TABLE IF NOT EXISTS competitions (
			id   ` + id + `,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id             ` + id + `,
			name           TEXT    NOT NULL,
			competition_id INTEGER NOT NULL REFERENCES competitions(id),
			UNIQUE (name, competition_id)
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id   ` + id + `,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS cups (
			id             ` + id + `,
			name           TEXT    NOT NULL UNIQUE,
			competition_id INTEGER NOT NULL REFERENCES competitions(id),
			start_round_id INTEGER NOT NULL REFERENCES rounds(id)
		)`,
		`CREATE TABLE IF NOT EXISTS cup_rounds (
			id           ` + id + `,
			cup_id       INTEGER NOT NULL REFERENCES cups(id),
			name         TEXT    NOT NULL,
			order_number INTEGER NOT NULL,
			UNIQUE (cup_id, order_number)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id             ` + id + `,
			round_id       INTEGER NOT NULL REFERENCES rounds(id),
			competition_id INTEGER NOT NULL REFERENCES competitions(id),
			home_team_id   INTEGER NOT NULL REFERENCES teams(id),
			away_team_id   INTEGER NOT NULL REFERENCES teams(id),
			kickoff        TEXT    NOT NULL,
			status         TEXT    NOT NULL DEFAULT 'not played' CHECK (status IN ('not played', 'live', 'finished')),
			home_score     INTEGER,
			away_score     INTEGER,
			cup_round_id   INTEGER REFERENCES cup_rounds(id),
			CHECK (home_team_id <> away_team_id)
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id                   ` + id + `,
			player_id            INTEGER NOT NULL REFERENCES players(id),
			match_id             INTEGER NOT NULL REFERENCES matches(id),
			predicted_home_score INTEGER NOT NULL,
			predicted_away_score INTEGER NOT NULL,
			points_awarded       INTEGER,
			UNIQUE (player_id, match_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id               ` + id + `,
			admin_id         INTEGER,
			action           TEXT NOT NULL,
			target_player_id INTEGER,
			target_match_id  INTEGER,
			details          TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cup_matches (
			id           ` + id + `,
			cup_round_id INTEGER NOT NULL REFERENCES cup_rounds(id),
			player1_id   INTEGER NOT NULL REFERENCES players(id),
			player2_id   INTEGER REFERENCES players(id),
			winner_id    INTEGER REFERENCES players(id),
			round_number INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id          ` + id + `,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS user_achievements (
			id             ` + id + `,
			user_id        INTEGER NOT NULL REFERENCES players(id),
			achievement_id INTEGER NOT NULL REFERENCES achievements(id),
			cup_round_id   INTEGER REFERENCES cup_rounds(id),
			year           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_round ON matches (round_id)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_match ON predictions (match_id)`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", name, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", name, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
