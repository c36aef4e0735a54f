package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/utakatalp/prediction-league/internal/league"
)

// AuditRecord is an admin action written in the same transaction as the
// change it describes.
type AuditRecord struct {
	AdminID        *int64
	Action         string
	TargetPlayerID *int64
	TargetMatchID  *int64
	Details        string
}

func insertAudit(ctx context.Context, q querier, a *AuditRecord) error {
	if a == nil {
		return nil
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO audit_log (admin_id, action, target_player_id, target_match_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.AdminID, a.Action, a.TargetPlayerID, a.TargetMatchID, a.Details, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// AddAudit writes an audit record on its own.
func (s *Store) AddAudit(ctx context.Context, a AuditRecord) error {
	return insertAudit(ctx, s.DB, &a)
}

// AuditLog lists audit records, newest first.
func (s *Store) AuditLog(ctx context.Context) ([]league.AuditEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT a.created_at, p.name, a.action, a.target_player_id
		FROM audit_log a
		LEFT JOIN players p ON a.admin_id = p.id
		ORDER BY a.created_at DESC, a.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var out []league.AuditEntry
	for rows.Next() {
		var (
			e         league.AuditEntry
			createdAt string
			admin     sql.NullString
			target    sql.NullInt64
		)
		if err := rows.Scan(&createdAt, &admin, &e.Action, &target); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if e.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		e.AdminName = admin.String
		e.TargetPlayerID = int64Ptr(target)
		out = append(out, e)
	}
	return out, rows.Err()
}

func playerExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM players WHERE id = $1`, id).Scan(&one)
	if isNoRows(err) {
		return fmt.Errorf("player %d: %w", id, league.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up player %d: %w", id, err)
	}
	return nil
}

func nameTaken(ctx context.Context, q querier, name string, exceptID int64) error {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM players WHERE name = $1`, name).Scan(&id)
	if isNoRows(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up player %q: %w", name, err)
	}
	if id != exceptID {
		return fmt.Errorf("player %q: %w", name, league.ErrNameTaken)
	}
	return nil
}

// CreatePlayer inserts a player and sets p.ID. When audit is given its
// target is the new player.
func (s *Store) CreatePlayer(ctx context.Context, p *league.Player, audit *AuditRecord) error {
	return s.withTx(ctx, "CreatePlayer", func(tx *sql.Tx) error {
		if err := nameTaken(ctx, tx, p.Name, 0); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO players (name, password_hash, role) VALUES ($1, $2, $3) RETURNING id`,
			p.Name, p.PasswordHash, string(p.Role),
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("inserting player %q: %w", p.Name, err)
		}
		if audit != nil {
			audit.TargetPlayerID = &p.ID
		}
		return insertAudit(ctx, tx, audit)
	})
}

// UpdatePlayer rewrites name, hash and role of an existing player.
func (s *Store) UpdatePlayer(ctx context.Context, p *league.Player, audit *AuditRecord) error {
	return s.withTx(ctx, "UpdatePlayer", func(tx *sql.Tx) error {
		if err := playerExists(ctx, tx, p.ID); err != nil {
			return err
		}
		if err := nameTaken(ctx, tx, p.Name, p.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE players SET name = $1, password_hash = $2, role = $3 WHERE id = $4`,
			p.Name, p.PasswordHash, string(p.Role), p.ID,
		); err != nil {
			return fmt.Errorf("updating player %d: %w", p.ID, err)
		}
		return insertAudit(ctx, tx, audit)
	})
}

// DeletePlayer removes a player together with their predictions and awards
// in one transaction. A remaining cup opponent keeps the matchup as a bye.
func (s *Store) DeletePlayer(ctx context.Context, id int64, audit *AuditRecord) error {
	return s.withTx(ctx, "DeletePlayer", func(tx *sql.Tx) error {
		if err := playerExists(ctx, tx, id); err != nil {
			return err
		}
		steps := []struct {
			what  string
			query string
		}{
			{"predictions", `DELETE FROM predictions WHERE player_id = $1`},
			{"awards", `DELETE FROM user_achievements WHERE user_id = $1`},
			{"cup winners", `UPDATE cup_matches SET winner_id = NULL WHERE winner_id = $1`},
			{"cup byes", `DELETE FROM cup_matches WHERE player1_id = $1 AND player2_id IS NULL`},
			{"cup matchups", `UPDATE cup_matches SET player1_id = player2_id, player2_id = NULL WHERE player1_id = $1`},
			{"cup opponents", `UPDATE cup_matches SET player2_id = NULL WHERE player2_id = $1`},
			{"player", `DELETE FROM players WHERE id = $1`},
		}
		for _, st := range steps {
			if _, err := tx.ExecContext(ctx, st.query, id); err != nil {
				return fmt.Errorf("deleting %s of player %d: %w", st.what, id, err)
			}
		}
		return insertAudit(ctx, tx, audit)
	})
}

func scanPlayer(sc interface{ Scan(...any) error }) (*league.Player, error) {
	var (
		p    league.Player
		role string
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.PasswordHash, &role); err != nil {
		return nil, err
	}
	p.Role = league.Role(role)
	return &p, nil
}

func (s *Store) PlayerByName(ctx context.Context, name string) (*league.Player, error) {
	p, err := scanPlayer(s.DB.QueryRowContext(ctx,
		`SELECT id, name, password_hash, role FROM players WHERE name = $1`, name))
	if isNoRows(err) {
		return nil, fmt.Errorf("player %q: %w", name, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading player %q: %w", name, err)
	}
	return p, nil
}

func (s *Store) PlayerByID(ctx context.Context, id int64) (*league.Player, error) {
	p, err := scanPlayer(s.DB.QueryRowContext(ctx,
		`SELECT id, name, password_hash, role FROM players WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, fmt.Errorf("player %d: %w", id, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading player %d: %w", id, err)
	}
	return p, nil
}

// ListPlayers returns players whose name contains search, all when empty.
func (s *Store) ListPlayers(ctx context.Context, search string) ([]*league.Player, error) {
	return s.queryPlayers(ctx,
		`SELECT id, name, password_hash, role FROM players WHERE name LIKE $1 ORDER BY name`,
		"%"+search+"%",
	)
}

// PlayersByRole returns the players holding role, by name.
func (s *Store) PlayersByRole(ctx context.Context, role league.Role) ([]*league.Player, error) {
	return s.queryPlayers(ctx,
		`SELECT id, name, password_hash, role FROM players WHERE role = $1 ORDER BY name`,
		string(role),
	)
}

func (s *Store) queryPlayers(ctx context.Context, query string, args ...any) ([]*league.Player, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	var players []*league.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating players: %w", err)
	}
	return players, nil
}
