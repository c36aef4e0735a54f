// Package fixtures is the admin side of the match calendar: entering,
// correcting and removing matches, and listing rounds.
package fixtures

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

type Store interface {
	AddMatch(ctx context.Context, in store.MatchInput) (int64, bool, error)
	UpdateMatch(ctx context.Context, id int64, status league.MatchStatus, homeGoals, awayGoals *int, kickoff *time.Time) error
	DeleteMatch(ctx context.Context, id int64) (bool, error)
	Match(ctx context.Context, id int64) (*league.Match, error)
	MatchesByRound(ctx context.Context, competition string, n int) ([]*league.Match, error)
	MatchesByRoundName(ctx context.Context, name league.GameweekKey) ([]*league.Match, error)
	UpcomingMatches(ctx context.Context) ([]*league.Match, error)
	RoundNumbers(ctx context.Context, competition string) ([]int, error)
	LatestRoundNumber(ctx context.Context) (int, error)
	Competitions(ctx context.Context) ([]string, error)
	Teams(ctx context.Context) ([]string, error)
	AddAudit(ctx context.Context, a store.AuditRecord) error
}

type Manager struct {
	store Store
	log   logrus.FieldLogger
}

func New(s Store, log logrus.FieldLogger) *Manager {
	return &Manager{store: s, log: log}
}

// checkScores validates status and scores together and returns the scores
// to store. Scores entered for a match not yet played are dropped.
func checkScores(status league.MatchStatus, home, away *int) (*int, *int, error) {
	if !status.Valid() {
		return nil, nil, fmt.Errorf("%q: %w", status, league.ErrInvalidStatus)
	}
	if status == league.StatusNotPlayed {
		return nil, nil, nil
	}
	if home == nil || away == nil {
		return nil, nil, league.ErrMissingScore
	}
	if *home < 0 || *away < 0 {
		return nil, nil, league.ErrInvalidScore
	}
	return home, away, nil
}

// AddMatch validates and stores a fixture. Entering the same two teams in a
// round again updates that fixture. It reports whether a new match was made.
func (m *Manager) AddMatch(ctx context.Context, adminID int64, in store.MatchInput) (int64, bool, error) {
	in.Competition = strings.TrimSpace(in.Competition)
	in.Home = strings.TrimSpace(in.Home)
	in.Away = strings.TrimSpace(in.Away)
	if in.Competition == "" || in.Home == "" || in.Away == "" {
		return 0, false, league.ErrMissingName
	}
	if strings.EqualFold(in.Home, in.Away) {
		return 0, false, league.ErrSameTeam
	}
	if in.RoundNumber < 1 {
		return 0, false, league.ErrInvalidRound
	}
	if in.Status == "" {
		in.Status = league.StatusNotPlayed
	}
	var err error
	if in.HomeGoals, in.AwayGoals, err = checkScores(in.Status, in.HomeGoals, in.AwayGoals); err != nil {
		return 0, false, err
	}

	id, created, err := m.store.AddMatch(ctx, in)
	if err != nil {
		return 0, false, err
	}

	action := "update match"
	if created {
		action = "add match"
	}
	m.audit(ctx, adminID, action, id, fmt.Sprintf("%s: %s vs %s, %s", in.Competition, in.Home, in.Away, league.RoundName(in.RoundNumber)))
	m.log.WithFields(logrus.Fields{
		"match":   id,
		"created": created,
		"round":   league.RoundName(in.RoundNumber),
	}).Info("match saved")
	return id, created, nil
}

// UpdateMatch sets a match's status, scores and optionally its kickoff.
func (m *Manager) UpdateMatch(ctx context.Context, adminID, id int64, status league.MatchStatus, home, away *int, kickoff *time.Time) error {
	home, away, err := checkScores(status, home, away)
	if err != nil {
		return err
	}
	if err := m.store.UpdateMatch(ctx, id, status, home, away, kickoff); err != nil {
		return err
	}
	m.audit(ctx, adminID, "update match", id, fmt.Sprintf("%s %s", status, league.ResultString(home, away)))
	m.log.WithFields(logrus.Fields{"match": id, "status": status}).Info("match updated")
	return nil
}

// DeleteMatch removes a match, its predictions and its round once empty.
// An unknown id fails with league.ErrNotFound.
func (m *Manager) DeleteMatch(ctx context.Context, adminID, id int64) error {
	roundDeleted, err := m.store.DeleteMatch(ctx, id)
	if err != nil {
		return err
	}
	m.audit(ctx, adminID, "delete match", id, "")
	m.log.WithFields(logrus.Fields{"match": id, "round_deleted": roundDeleted}).Info("match deleted")
	return nil
}

// audit records an admin action on a match. The change is already committed,
// so a failure here is logged rather than returned.
func (m *Manager) audit(ctx context.Context, adminID int64, action string, matchID int64, details string) {
	err := m.store.AddAudit(ctx, store.AuditRecord{
		AdminID:       &adminID,
		Action:        action,
		TargetMatchID: &matchID,
		Details:       details,
	})
	if err != nil {
		m.log.WithError(err).WithField("match", matchID).Warn("audit log write failed")
	}
}

func (m *Manager) Match(ctx context.Context, id int64) (*league.Match, error) {
	return m.store.Match(ctx, id)
}

func (m *Manager) MatchesByRound(ctx context.Context, competition string, n int) ([]*league.Match, error) {
	return m.store.MatchesByRound(ctx, competition, n)
}

func (m *Manager) MatchesByRoundName(ctx context.Context, name league.GameweekKey) ([]*league.Match, error) {
	return m.store.MatchesByRoundName(ctx, name)
}

// UpcomingMatches lists matches still open for predictions.
func (m *Manager) UpcomingMatches(ctx context.Context) ([]*league.Match, error) {
	return m.store.UpcomingMatches(ctx)
}

func (m *Manager) RoundNumbers(ctx context.Context, competition string) ([]int, error) {
	return m.store.RoundNumbers(ctx, competition)
}

// LatestRoundNumber is the default gameweek for new fixtures.
func (m *Manager) LatestRoundNumber(ctx context.Context) (int, error) {
	return m.store.LatestRoundNumber(ctx)
}

func (m *Manager) Competitions(ctx context.Context) ([]string, error) {
	return m.store.Competitions(ctx)
}

func (m *Manager) Teams(ctx context.Context) ([]string, error) {
	return m.store.Teams(ctx)
}
