package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/utakatalp/prediction-league/internal/league"
)

// TitleCount is one (player, achievement) group. Achievement is empty for a
// player holding nothing.
type TitleCount struct {
	PlayerID    int64
	PlayerName  string
	Achievement string
	Count       int
}

// TitleCounts groups achievement records by player and achievement name.
func (s *Store) TitleCounts(ctx context.Context) ([]TitleCount, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.name, a.name, COUNT(ua.id)
		FROM players p
		LEFT JOIN user_achievements ua ON p.id = ua.user_id
		LEFT JOIN achievements a       ON ua.achievement_id = a.id
		GROUP BY p.id, p.name, a.name
		ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("querying title counts: %w", err)
	}
	defer rows.Close()

	var out []TitleCount
	for rows.Next() {
		var (
			tc   TitleCount
			name sql.NullString
		)
		if err := rows.Scan(&tc.PlayerID, &tc.PlayerName, &name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning title count: %w", err)
		}
		tc.Achievement = name.String
		out = append(out, tc)
	}
	return out, rows.Err()
}

// AwardRecord is one awarded achievement with its holder.
type AwardRecord struct {
	Year        int    `json:"year"`
	PlayerName  string `json:"playerName"`
	Achievement string `json:"achievement"`
	Description string `json:"description"`
}

// AwardsByName lists records of the named achievement, most recent year first.
func (s *Store) AwardsByName(ctx context.Context, achievement string) ([]AwardRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT ua.year, p.name, a.name, a.description
		FROM user_achievements ua
		JOIN players p      ON ua.user_id = p.id
		JOIN achievements a ON ua.achievement_id = a.id
		WHERE a.name = $1
		ORDER BY ua.year DESC, ua.id DESC`,
		achievement,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %q awards: %w", achievement, err)
	}
	defer rows.Close()

	var out []AwardRecord
	for rows.Next() {
		var r AwardRecord
		if err := rows.Scan(&r.Year, &r.PlayerName, &r.Achievement, &r.Description); err != nil {
			return nil, fmt.Errorf("scanning award: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ensureAchievement(ctx context.Context, q querier, name, description string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM achievements WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return 0, fmt.Errorf("looking up achievement %q: %w", name, err)
	}
	err = q.QueryRowContext(ctx,
		`INSERT INTO achievements (name, description) VALUES ($1, $2) RETURNING id`,
		name, description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting achievement %q: %w", name, err)
	}
	return id, nil
}

// Award describes one achievement grant.
type Award struct {
	PlayerID    int64
	Achievement string
	Description string
	Year        int
	CupRoundID  *int64
}

// AwardAchievement grants an achievement, creating it on first use. A player
// holds a given achievement at most once per year.
func (s *Store) AwardAchievement(ctx context.Context, a Award, audit *AuditRecord) error {
	return s.withTx(ctx, "AwardAchievement", func(tx *sql.Tx) error {
		if err := playerExists(ctx, tx, a.PlayerID); err != nil {
			return err
		}
		achievementID, err := ensureAchievement(ctx, tx, a.Achievement, a.Description)
		if err != nil {
			return err
		}

		var one int
		err = tx.QueryRowContext(ctx, `
			SELECT 1 FROM user_achievements
			WHERE user_id = $1 AND achievement_id = $2 AND year = $3`,
			a.PlayerID, achievementID, a.Year,
		).Scan(&one)
		if err == nil {
			return league.ErrAlreadyAwarded
		}
		if !isNoRows(err) {
			return fmt.Errorf("checking award: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_achievements (user_id, achievement_id, cup_round_id, year)
			VALUES ($1, $2, $3, $4)`,
			a.PlayerID, achievementID, a.CupRoundID, a.Year,
		); err != nil {
			return fmt.Errorf("inserting award: %w", err)
		}
		return insertAudit(ctx, tx, audit)
	})
}

// CreateCup adds a cup played over a competition from the given start round.
func (s *Store) CreateCup(ctx context.Context, name string, competitionID, startRoundID int64) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO cups (name, competition_id, start_round_id) VALUES ($1, $2, $3) RETURNING id`,
		name, competitionID, startRoundID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting cup %q: %w", name, err)
	}
	return id, nil
}

// AddCupRound adds a stage (e.g. "Quarter Final") to a cup.
func (s *Store) AddCupRound(ctx context.Context, cupID int64, name string, order int) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO cup_rounds (cup_id, name, order_number) VALUES ($1, $2, $3) RETURNING id`,
		cupID, name, order,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting cup round %q: %w", name, err)
	}
	return id, nil
}

func (s *Store) CupRound(ctx context.Context, id int64) (*league.CupRound, error) {
	var r league.CupRound
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, cup_id, name, order_number FROM cup_rounds WHERE id = $1`, id,
	).Scan(&r.ID, &r.CupID, &r.Name, &r.OrderNumber)
	if isNoRows(err) {
		return nil, fmt.Errorf("cup round %d: %w", id, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading cup round %d: %w", id, err)
	}
	return &r, nil
}

// NextCupRound returns the cup round following r in its cup.
func (s *Store) NextCupRound(ctx context.Context, r *league.CupRound) (*league.CupRound, error) {
	var next league.CupRound
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, cup_id, name, order_number FROM cup_rounds
		WHERE cup_id = $1 AND order_number > $2
		ORDER BY order_number
		LIMIT 1`,
		r.CupID, r.OrderNumber,
	).Scan(&next.ID, &next.CupID, &next.Name, &next.OrderNumber)
	if isNoRows(err) {
		return nil, fmt.Errorf("round after %q: %w", r.Name, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading next cup round: %w", err)
	}
	return &next, nil
}

// AddCupMatchups stores a cup round's draw in one transaction.
func (s *Store) AddCupMatchups(ctx context.Context, cupRoundID int64, roundNumber int, pairings []league.Pairing) error {
	return s.withTx(ctx, "AddCupMatchups", func(tx *sql.Tx) error {
		for _, p := range pairings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cup_matches (cup_round_id, player1_id, player2_id, round_number)
				VALUES ($1, $2, $3, $4)`,
				cupRoundID, p.Home, p.Away, roundNumber,
			); err != nil {
				return fmt.Errorf("inserting cup matchup: %w", err)
			}
		}
		return nil
	})
}

// CupMatchupRow is a matchup with the players' names. Player2Name is empty for a bye.
type CupMatchupRow struct {
	league.CupMatchup
	Player1Name string
	Player2Name string
}

// CupMatchups lists a cup round's matchups in draw order.
func (s *Store) CupMatchups(ctx context.Context, cupRoundID int64) ([]CupMatchupRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT cm.id, cm.cup_round_id, cm.player1_id, p1.name,
		       cm.player2_id, p2.name, cm.winner_id, cm.round_number
		FROM cup_matches cm
		JOIN players p1      ON cm.player1_id = p1.id
		LEFT JOIN players p2 ON cm.player2_id = p2.id
		WHERE cm.cup_round_id = $1
		ORDER BY cm.id`,
		cupRoundID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cup matchups: %w", err)
	}
	defer rows.Close()

	var out []CupMatchupRow
	for rows.Next() {
		var (
			r               CupMatchupRow
			player2, winner sql.NullInt64
			player2Name     sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.CupRoundID, &r.Player1ID, &r.Player1Name,
			&player2, &player2Name, &winner, &r.RoundNumber,
		); err != nil {
			return nil, fmt.Errorf("scanning cup matchup: %w", err)
		}
		r.Player2ID = int64Ptr(player2)
		r.Player2Name = player2Name.String
		r.WinnerID = int64Ptr(winner)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CupRoundPoints sums each player's awarded points over the matches assigned
// to the cup round.
func (s *Store) CupRoundPoints(ctx context.Context, cupRoundID int64) (map[int64]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.player_id, COALESCE(SUM(p.points_awarded), 0)
		FROM predictions p
		JOIN matches m ON p.match_id = m.id
		WHERE m.cup_round_id = $1
		GROUP BY p.player_id`,
		cupRoundID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cup round points: %w", err)
	}
	defer rows.Close()

	points := make(map[int64]int)
	for rows.Next() {
		var (
			playerID int64
			total    int
		)
		if err := rows.Scan(&playerID, &total); err != nil {
			return nil, fmt.Errorf("scanning cup round points: %w", err)
		}
		points[playerID] = total
	}
	return points, rows.Err()
}

// SetMatchupWinner records the winner of a matchup; nil clears it.
func (s *Store) SetMatchupWinner(ctx context.Context, matchupID int64, winnerID *int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE cup_matches SET winner_id = $1 WHERE id = $2`, winnerID, matchupID)
	if err != nil {
		return fmt.Errorf("setting winner of matchup %d: %w", matchupID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting winner of matchup %d: %w", matchupID, err)
	}
	if n == 0 {
		return fmt.Errorf("matchup %d: %w", matchupID, league.ErrNotFound)
	}
	return nil
}

// AssignMatchToCupRound links a match to a cup round; nil unlinks it.
func (s *Store) AssignMatchToCupRound(ctx context.Context, matchID int64, cupRoundID *int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE matches SET cup_round_id = $1 WHERE id = $2`, cupRoundID, matchID)
	if err != nil {
		return fmt.Errorf("assigning match %d to cup round: %w", matchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assigning match %d to cup round: %w", matchID, err)
	}
	if n == 0 {
		return fmt.Errorf("match %d: %w", matchID, league.ErrNotFound)
	}
	return nil
}
