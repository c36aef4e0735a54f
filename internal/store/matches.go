package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/utakatalp/prediction-league/internal/league"
)

const matchSelect = `
SELECT m.id, m.round_id, r.name, c.name, th.name, ta.name,
       m.kickoff, m.status, m.home_score, m.away_score, m.cup_round_id
FROM matches m
JOIN rounds r       ON m.round_id = r.id
JOIN competitions c ON m.competition_id = c.id
JOIN teams th       ON m.home_team_id = th.id
JOIN teams ta       ON m.away_team_id = ta.id
`

// MatchInput describes a fixture as entered by an admin.
type MatchInput struct {
	Competition string
	Home, Away  string
	Kickoff     time.Time
	Status      league.MatchStatus
	HomeGoals   *int
	AwayGoals   *int
	RoundNumber int
}

func scanMatch(sc interface{ Scan(...any) error }) (*league.Match, error) {
	var (
		m                    league.Match
		roundName, kickoff   string
		status               string
		homeGoals, awayGoals sql.NullInt64
		cupRoundID           sql.NullInt64
	)
	if err := sc.Scan(
		&m.ID,
		&m.RoundID,
		&roundName,
		&m.Competition,
		&m.Home,
		&m.Away,
		&kickoff,
		&status,
		&homeGoals,
		&awayGoals,
		&cupRoundID,
	); err != nil {
		return nil, err
	}
	t, err := parseTime(kickoff)
	if err != nil {
		return nil, err
	}
	m.RoundName = league.GameweekKey(roundName)
	m.Kickoff = t
	m.Status = league.MatchStatus(status)
	m.HomeGoals = intPtr(homeGoals)
	m.AwayGoals = intPtr(awayGoals)
	m.CupRoundID = int64Ptr(cupRoundID)
	return &m, nil
}

func queryMatches(ctx context.Context, q querier, query string, args ...any) ([]*league.Match, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []*league.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match rows: %w", err)
	}
	return matches, nil
}

// AddMatch inserts a fixture, or updates it when the same two teams already
// meet in that round in either orientation. Competition, teams and round are
// created on first reference. It returns the match id and whether it is new.
func (s *Store) AddMatch(ctx context.Context, in MatchInput) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := s.withTx(ctx, "AddMatch", func(tx *sql.Tx) error {
		competitionID, err := getOrCreateNamed(ctx, tx, EntityCompetition, in.Competition)
		if err != nil {
			return err
		}
		homeID, err := getOrCreateNamed(ctx, tx, EntityTeam, in.Home)
		if err != nil {
			return err
		}
		awayID, err := getOrCreateNamed(ctx, tx, EntityTeam, in.Away)
		if err != nil {
			return err
		}
		roundID, err := getOrCreateRound(ctx, tx, league.RoundName(in.RoundNumber), competitionID)
		if err != nil {
			return err
		}

		var storedHome int64
		err = tx.QueryRowContext(ctx, `
			SELECT id, home_team_id FROM matches
			WHERE round_id = $1
			  AND ((home_team_id = $2 AND away_team_id = $3)
			    OR (home_team_id = $3 AND away_team_id = $2))`,
			roundID, homeID, awayID,
		).Scan(&id, &storedHome)
		switch {
		case err == nil:
			// Scores follow the stored orientation.
			homeGoals, awayGoals := in.HomeGoals, in.AwayGoals
			if storedHome == awayID {
				homeGoals, awayGoals = awayGoals, homeGoals
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE matches
				SET kickoff = $1, status = $2, home_score = $3, away_score = $4
				WHERE id = $5`,
				formatTime(in.Kickoff), string(in.Status), homeGoals, awayGoals, id,
			); err != nil {
				return fmt.Errorf("updating match %d: %w", id, err)
			}
			if in.Status != league.StatusFinished {
				return clearPoints(ctx, tx, id)
			}
			return nil
		case !isNoRows(err):
			return fmt.Errorf("looking up match: %w", err)
		}

		created = true
		err = tx.QueryRowContext(ctx, `
			INSERT INTO matches (
			    round_id, competition_id, home_team_id, away_team_id,
			    kickoff, status, home_score, away_score
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			roundID, competitionID, homeID, awayID,
			formatTime(in.Kickoff), string(in.Status), in.HomeGoals, in.AwayGoals,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting match: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// UpdateMatch sets status and scores, and the kickoff when given. Leaving the
// finished state clears any points already awarded on the match.
func (s *Store) UpdateMatch(ctx context.Context, id int64, status league.MatchStatus, homeGoals, awayGoals *int, kickoff *time.Time) error {
	return s.withTx(ctx, "UpdateMatch", func(tx *sql.Tx) error {
		var (
			res sql.Result
			err error
		)
		if kickoff != nil {
			res, err = tx.ExecContext(ctx, `
				UPDATE matches
				SET status = $1, home_score = $2, away_score = $3, kickoff = $4
				WHERE id = $5`,
				string(status), homeGoals, awayGoals, formatTime(*kickoff), id,
			)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE matches
				SET status = $1, home_score = $2, away_score = $3
				WHERE id = $4`,
				string(status), homeGoals, awayGoals, id,
			)
		}
		if err != nil {
			return fmt.Errorf("updating match %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating match %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("match %d: %w", id, league.ErrNotFound)
		}
		if status != league.StatusFinished {
			return clearPoints(ctx, tx, id)
		}
		return nil
	})
}

func clearPoints(ctx context.Context, q querier, matchID int64) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE predictions SET points_awarded = NULL WHERE match_id = $1`, matchID,
	); err != nil {
		return fmt.Errorf("clearing points for match %d: %w", matchID, err)
	}
	return nil
}

// DeleteMatch removes a match with its predictions in one transaction, and
// the round too once it holds no matches and no cup starts from it. It
// reports whether the round was removed.
func (s *Store) DeleteMatch(ctx context.Context, id int64) (bool, error) {
	var roundDeleted bool
	err := s.withTx(ctx, "DeleteMatch", func(tx *sql.Tx) error {
		var roundID int64
		err := tx.QueryRowContext(ctx, `SELECT round_id FROM matches WHERE id = $1`, id).Scan(&roundID)
		if isNoRows(err) {
			return fmt.Errorf("no match found with id %d: %w", id, league.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("looking up match %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE match_id = $1`, id); err != nil {
			return fmt.Errorf("deleting predictions of match %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting match %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM rounds
			WHERE id = $1
			  AND NOT EXISTS (SELECT 1 FROM matches WHERE round_id = $1)
			  AND NOT EXISTS (SELECT 1 FROM cups WHERE start_round_id = $1)`,
			roundID,
		)
		if err != nil {
			return fmt.Errorf("deleting empty round %d: %w", roundID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting empty round %d: %w", roundID, err)
		}
		roundDeleted = n > 0
		return nil
	})
	return roundDeleted, err
}

// Match fetches one match by id.
func (s *Store) Match(ctx context.Context, id int64) (*league.Match, error) {
	m, err := scanMatch(s.DB.QueryRowContext(ctx, matchSelect+`WHERE m.id = $1`, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("match %d: %w", id, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading match %d: %w", id, err)
	}
	return m, nil
}

// MatchesByRoundName returns the matches of every round carrying the name,
// across all competitions, ordered by kickoff.
func (s *Store) MatchesByRoundName(ctx context.Context, name league.GameweekKey) ([]*league.Match, error) {
	return queryMatches(ctx, s.DB, matchSelect+`WHERE r.name = $1 ORDER BY m.kickoff, m.id`, string(name))
}

// MatchesByRound returns one competition's matches for gameweek n.
func (s *Store) MatchesByRound(ctx context.Context, competition string, n int) ([]*league.Match, error) {
	return queryMatches(ctx, s.DB,
		matchSelect+`WHERE c.name = $1 AND r.name = $2 ORDER BY m.kickoff, m.id`,
		competition, string(league.RoundName(n)),
	)
}

// UpcomingMatches returns every match still open for predictions.
func (s *Store) UpcomingMatches(ctx context.Context) ([]*league.Match, error) {
	return queryMatches(ctx, s.DB,
		matchSelect+`WHERE m.status = $1 ORDER BY m.kickoff, m.id`,
		string(league.StatusNotPlayed),
	)
}

// RoundName resolves a stored round id to its gameweek key.
func (s *Store) RoundName(ctx context.Context, roundID int64) (league.GameweekKey, error) {
	var name string
	err := s.DB.QueryRowContext(ctx, `SELECT name FROM rounds WHERE id = $1`, roundID).Scan(&name)
	if isNoRows(err) {
		return "", fmt.Errorf("round %d: %w", roundID, league.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading round %d: %w", roundID, err)
	}
	return league.GameweekKey(name), nil
}

// RoundNumbers lists the gameweek numbers a competition has rounds for.
func (s *Store) RoundNumbers(ctx context.Context, competition string) ([]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT r.name
		FROM rounds r
		JOIN competitions c ON r.competition_id = c.id
		WHERE c.name = $1
		ORDER BY r.id`,
		competition,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		if n, ok := league.GameweekKey(name).Number(); ok {
			numbers = append(numbers, n)
		}
	}
	return numbers, rows.Err()
}

// RoundSummary is one gameweek with its match count across competitions.
type RoundSummary struct {
	Name    league.GameweekKey `json:"name"`
	Matches int                `json:"matches"`
}

// RoundSummaries lists every distinct round name in gameweek order.
func (s *Store) RoundSummaries(ctx context.Context) ([]RoundSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT r.name, COUNT(m.id)
		FROM rounds r
		LEFT JOIN matches m ON m.round_id = r.id
		GROUP BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("querying round names: %w", err)
	}
	defer rows.Close()

	counts := make(map[league.GameweekKey]int)
	var keys []league.GameweekKey
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning round name: %w", err)
		}
		k := league.GameweekKey(name)
		counts[k] = count
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating round names: %w", err)
	}

	league.SortGameweeks(keys)
	out := make([]RoundSummary, len(keys))
	for i, k := range keys {
		out[i] = RoundSummary{Name: k, Matches: counts[k]}
	}
	return out, nil
}

// Rounds returns one representative round per gameweek in gameweek order,
// for pickers that hand a round id back to the round views.
func (s *Store) Rounds(ctx context.Context) ([]league.Round, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT MIN(id), name FROM rounds GROUP BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	defer rows.Close()

	var rounds []league.Round
	for rows.Next() {
		var (
			r    league.Round
			name string
		)
		if err := rows.Scan(&r.ID, &name); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		r.Name = league.GameweekKey(name)
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rounds: %w", err)
	}

	keys := make([]league.GameweekKey, len(rounds))
	byKey := make(map[league.GameweekKey]league.Round, len(rounds))
	for i, r := range rounds {
		keys[i] = r.Name
		byKey[r.Name] = r
	}
	league.SortGameweeks(keys)
	for i, k := range keys {
		rounds[i] = byKey[k]
	}
	return rounds, nil
}

// LatestRoundNumber returns the highest gameweek number across all
// competitions, or 1 when there are no rounds yet.
func (s *Store) LatestRoundNumber(ctx context.Context) (int, error) {
	names, err := s.names(ctx, `SELECT DISTINCT name FROM rounds`)
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, name := range names {
		if n, ok := league.GameweekKey(name).Number(); ok && n > latest {
			latest = n
		}
	}
	if latest == 0 {
		return 1, nil
	}
	return latest, nil
}
