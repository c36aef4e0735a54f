package store

import (
	"context"
	"fmt"

	"github.com/utakatalp/prediction-league/internal/league"
)

// NamedEntity is the closed set of entities looked up and created by name.
type NamedEntity int

const (
	EntityTeam NamedEntity = iota
	EntityCompetition
)

func (e NamedEntity) String() string {
	switch e {
	case EntityTeam:
		return "team"
	case EntityCompetition:
		return "competition"
	}
	return "unknown"
}

func (e NamedEntity) queries() (selectID, insert string, err error) {
	switch e {
	case EntityTeam:
		return `SELECT id FROM teams WHERE name = $1`,
			`INSERT INTO teams (name) VALUES ($1) RETURNING id`, nil
	case EntityCompetition:
		return `SELECT id FROM competitions WHERE name = $1`,
			`INSERT INTO competitions (name) VALUES ($1) RETURNING id`, nil
	}
	return "", "", fmt.Errorf("unknown entity %d", e)
}

func getOrCreateNamed(ctx context.Context, q querier, kind NamedEntity, name string) (int64, error) {
	selectID, insert, err := kind.queries()
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx, selectID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("looking up %s %q: %w", kind, name, err)
	}
	if err := q.QueryRowContext(ctx, insert, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting %s %q: %w", kind, name, err)
	}
	return id, nil
}

// GetOrCreateTeam returns the id of the named team, creating it on first reference.
func (s *Store) GetOrCreateTeam(ctx context.Context, name string) (int64, error) {
	return getOrCreateNamed(ctx, s.DB, EntityTeam, name)
}

// GetOrCreateCompetition returns the id of the named competition, creating it on first reference.
func (s *Store) GetOrCreateCompetition(ctx context.Context, name string) (int64, error) {
	return getOrCreateNamed(ctx, s.DB, EntityCompetition, name)
}

func getOrCreateRound(ctx context.Context, q querier, name league.GameweekKey, competitionID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM rounds WHERE name = $1 AND competition_id = $2`,
		string(name), competitionID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("looking up round %q: %w", name, err)
	}
	err = q.QueryRowContext(ctx,
		`INSERT INTO rounds (name, competition_id) VALUES ($1, $2) RETURNING id`,
		string(name), competitionID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting round %q: %w", name, err)
	}
	return id, nil
}

func (s *Store) names(ctx context.Context, query string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) Competitions(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM competitions ORDER BY name`)
}

func (s *Store) Teams(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM teams ORDER BY name`)
}
