package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/utakatalp/prediction-league/internal/league"
)

// PredictionExists reports whether the player already predicted the match.
func (s *Store) PredictionExists(ctx context.Context, playerID, matchID int64) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM predictions WHERE player_id = $1 AND match_id = $2`,
		playerID, matchID,
	).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking prediction: %w", err)
	}
	return true, nil
}

// InsertPrediction stores a new prediction. A second prediction for the same
// player and match violates the uniqueness constraint and fails.
func (s *Store) InsertPrediction(ctx context.Context, playerID, matchID int64, score league.Score) error {
	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO predictions (player_id, match_id, predicted_home_score, predicted_away_score)
		VALUES ($1, $2, $3, $4)`,
		playerID, matchID, score.Home, score.Away,
	); err != nil {
		return fmt.Errorf("inserting prediction: %w", err)
	}
	return nil
}

const upsertPrediction = `
INSERT INTO predictions (player_id, match_id, predicted_home_score, predicted_away_score)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id, match_id) DO UPDATE SET
    predicted_home_score = EXCLUDED.predicted_home_score,
    predicted_away_score = EXCLUDED.predicted_away_score
`

// UpsertPrediction inserts or updates the player's prediction for a match.
func (s *Store) UpsertPrediction(ctx context.Context, playerID, matchID int64, score league.Score) error {
	if _, err := s.DB.ExecContext(ctx, upsertPrediction, playerID, matchID, score.Home, score.Away); err != nil {
		return fmt.Errorf("saving prediction for match %d: %w", matchID, err)
	}
	return nil
}

// SaveResultsAndPredictions records final results for matches of gameweek
// name, marking them finished, and upserts predictions, all in one
// transaction. A result for a match outside that gameweek is ErrNotFound.
func (s *Store) SaveResultsAndPredictions(ctx context.Context, name league.GameweekKey, results map[int64]league.Score, predictions map[league.PlayerMatch]league.Score) error {
	matchIDs := make([]int64, 0, len(results))
	for id := range results {
		matchIDs = append(matchIDs, id)
	}
	sort.Slice(matchIDs, func(i, j int) bool { return matchIDs[i] < matchIDs[j] })

	keys := make([]league.PlayerMatch, 0, len(predictions))
	for k := range predictions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MatchID != keys[j].MatchID {
			return keys[i].MatchID < keys[j].MatchID
		}
		return keys[i].PlayerID < keys[j].PlayerID
	})

	return s.withTx(ctx, "SaveResultsAndPredictions", func(tx *sql.Tx) error {
		for _, id := range matchIDs {
			r := results[id]
			res, err := tx.ExecContext(ctx, `
				UPDATE matches SET home_score = $1, away_score = $2, status = $3
				WHERE id = $4
				  AND round_id IN (SELECT id FROM rounds WHERE name = $5)`,
				r.Home, r.Away, string(league.StatusFinished), id, string(name),
			)
			if err != nil {
				return fmt.Errorf("updating result of match %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("updating result of match %d: %w", id, err)
			}
			if n == 0 {
				return fmt.Errorf("match %d in %q: %w", id, name, league.ErrNotFound)
			}
		}
		for _, k := range keys {
			p := predictions[k]
			if _, err := tx.ExecContext(ctx, upsertPrediction, k.PlayerID, k.MatchID, p.Home, p.Away); err != nil {
				return fmt.Errorf("saving prediction of player %d for match %d: %w", k.PlayerID, k.MatchID, err)
			}
		}
		return nil
	})
}

// GradingRow joins a prediction with the current state of its match.
type GradingRow struct {
	PredictionID int64
	Predicted    league.Score
	Status       league.MatchStatus
	HomeGoals    *int
	AwayGoals    *int
}

// GradingRows returns every prediction on matches in rounds named name.
func (s *Store) GradingRows(ctx context.Context, name league.GameweekKey) ([]GradingRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.predicted_home_score, p.predicted_away_score,
		       m.status, m.home_score, m.away_score
		FROM predictions p
		JOIN matches m ON p.match_id = m.id
		JOIN rounds r  ON m.round_id = r.id
		WHERE r.name = $1
		ORDER BY p.id`,
		string(name),
	)
	if err != nil {
		return nil, fmt.Errorf("querying predictions of %q: %w", name, err)
	}
	defer rows.Close()

	var out []GradingRow
	for rows.Next() {
		var (
			g          GradingRow
			status     string
			home, away sql.NullInt64
		)
		if err := rows.Scan(&g.PredictionID, &g.Predicted.Home, &g.Predicted.Away, &status, &home, &away); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		g.Status = league.MatchStatus(status)
		g.HomeGoals = intPtr(home)
		g.AwayGoals = intPtr(away)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating predictions: %w", err)
	}
	return out, nil
}

// PointsUpdate sets the points of one prediction.
type PointsUpdate struct {
	PredictionID int64
	Points       int
}

// SetPoints writes all updates as one batch in a single transaction.
func (s *Store) SetPoints(ctx context.Context, updates []PointsUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(ctx, "SetPoints", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE predictions SET points_awarded = $1 WHERE id = $2`)
		if err != nil {
			return fmt.Errorf("preparing points update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, u.Points, u.PredictionID); err != nil {
				return fmt.Errorf("updating points of prediction %d: %w", u.PredictionID, err)
			}
		}
		return nil
	})
}

// PredictionsByRoundName returns every prediction on matches in rounds named name.
func (s *Store) PredictionsByRoundName(ctx context.Context, name league.GameweekKey) ([]league.Prediction, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.player_id, p.match_id,
		       p.predicted_home_score, p.predicted_away_score, p.points_awarded
		FROM predictions p
		JOIN matches m ON p.match_id = m.id
		JOIN rounds r  ON m.round_id = r.id
		WHERE r.name = $1
		ORDER BY p.player_id, p.match_id`,
		string(name),
	)
	if err != nil {
		return nil, fmt.Errorf("querying predictions of %q: %w", name, err)
	}
	defer rows.Close()

	var out []league.Prediction
	for rows.Next() {
		var (
			p      league.Prediction
			points sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.PlayerID, &p.MatchID, &p.Predicted.Home, &p.Predicted.Away, &points); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		p.PointsAwarded = intPtr(points)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prediction fetches the player's prediction for a match.
func (s *Store) Prediction(ctx context.Context, playerID, matchID int64) (*league.Prediction, error) {
	var (
		p      league.Prediction
		points sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, player_id, match_id, predicted_home_score, predicted_away_score, points_awarded
		FROM predictions
		WHERE player_id = $1 AND match_id = $2`,
		playerID, matchID,
	).Scan(&p.ID, &p.PlayerID, &p.MatchID, &p.Predicted.Home, &p.Predicted.Away, &points)
	if isNoRows(err) {
		return nil, fmt.Errorf("prediction of player %d for match %d: %w", playerID, matchID, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading prediction: %w", err)
	}
	p.PointsAwarded = intPtr(points)
	return &p, nil
}

// PlayerFixture is a match seen by one player, with that player's prediction if any.
type PlayerFixture struct {
	Match     *league.Match `json:"match"`
	Predicted *league.Score `json:"predicted"`
	Points    *int          `json:"points"`
}

// PlayerMatches returns every match with the player's own prediction, by kickoff.
func (s *Store) PlayerMatches(ctx context.Context, playerID int64) ([]PlayerFixture, error) {
	return s.playerMatches(ctx, `
		SELECT m.id, m.round_id, r.name, c.name, th.name, ta.name,
		       m.kickoff, m.status, m.home_score, m.away_score, m.cup_round_id,
		       p.predicted_home_score, p.predicted_away_score, p.points_awarded
		FROM matches m
		JOIN rounds r       ON m.round_id = r.id
		JOIN competitions c ON m.competition_id = c.id
		JOIN teams th       ON m.home_team_id = th.id
		JOIN teams ta       ON m.away_team_id = ta.id
		LEFT JOIN predictions p ON p.match_id = m.id AND p.player_id = $1
		ORDER BY m.kickoff, m.id`,
		playerID,
	)
}

// PlayerRoundPredictions returns the matches of one stored round that the
// player predicted, by kickoff.
func (s *Store) PlayerRoundPredictions(ctx context.Context, playerID, roundID int64) ([]PlayerFixture, error) {
	return s.playerMatches(ctx, `
		SELECT m.id, m.round_id, r.name, c.name, th.name, ta.name,
		       m.kickoff, m.status, m.home_score, m.away_score, m.cup_round_id,
		       p.predicted_home_score, p.predicted_away_score, p.points_awarded
		FROM predictions p
		JOIN matches m      ON p.match_id = m.id
		JOIN rounds r       ON m.round_id = r.id
		JOIN competitions c ON m.competition_id = c.id
		JOIN teams th       ON m.home_team_id = th.id
		JOIN teams ta       ON m.away_team_id = ta.id
		WHERE p.player_id = $1 AND m.round_id = $2
		ORDER BY m.kickoff, m.id`,
		playerID, roundID,
	)
}

func (s *Store) playerMatches(ctx context.Context, query string, args ...any) ([]PlayerFixture, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying player matches: %w", err)
	}
	defer rows.Close()

	var out []PlayerFixture
	for rows.Next() {
		var (
			m                    league.Match
			roundName, kickoff   string
			status               string
			homeGoals, awayGoals sql.NullInt64
			cupRoundID           sql.NullInt64
			predHome, predAway   sql.NullInt64
			points               sql.NullInt64
		)
		if err := rows.Scan(
			&m.ID, &m.RoundID, &roundName, &m.Competition, &m.Home, &m.Away,
			&kickoff, &status, &homeGoals, &awayGoals, &cupRoundID,
			&predHome, &predAway, &points,
		); err != nil {
			return nil, fmt.Errorf("scanning player match: %w", err)
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

		pm := PlayerFixture{Match: &m, Points: intPtr(points)}
		if predHome.Valid && predAway.Valid {
			pm.Predicted = &league.Score{Home: int(predHome.Int64), Away: int(predAway.Int64)}
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}
