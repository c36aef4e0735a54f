package store

import (
	"context"
	"fmt"

	"github.com/utakatalp/prediction-league/internal/league"
)

// OverallPoints returns every user-role player with the sum of their awarded
// points, ungraded predictions counting as zero. Players without predictions
// are included with 0.
func (s *Store) OverallPoints(ctx context.Context) ([]league.StandingEntry, error) {
	const q = `
    SELECT
      pl.id,
      pl.name,
      COALESCE(SUM(p.points_awarded), 0) AS total_points
    FROM players pl
    LEFT JOIN predictions p ON p.player_id = pl.id
    WHERE pl.role = $1
    GROUP BY pl.id, pl.name
    ORDER BY
      total_points DESC,
      pl.name      ASC
    `
	rows, err := s.DB.QueryContext(ctx, q, string(league.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("querying standings: %w", err)
	}
	defer rows.Close()

	var table []league.StandingEntry
	for rows.Next() {
		var e league.StandingEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Points); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		table = append(table, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return table, nil
}
