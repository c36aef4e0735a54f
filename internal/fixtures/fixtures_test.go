package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

const admin int64 = 1

var kickoff = time.Date(2025, 8, 16, 15, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreatePlayer(ctx, &league.Player{Name: "root", PasswordHash: "x", Role: league.RoleAdmin}, nil))
	log, _ := test.NewNullLogger()
	return New(s, log), s
}

func ip(v int) *int { return &v }

func input(home, away string, round int) store.MatchInput {
	return store.MatchInput{
		Competition: "Premier League",
		Home:        home,
		Away:        away,
		Kickoff:     kickoff,
		RoundNumber: round,
	}
}

func TestAddMatch_Validation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   store.MatchInput
		err  error
	}{
		{"same team", input("Arsenal", " arsenal ", 1), league.ErrSameTeam},
		{"missing team", input("Arsenal", "  ", 1), league.ErrMissingName},
		{"round zero", input("Arsenal", "Chelsea", 0), league.ErrInvalidRound},
		{"bad status", func() store.MatchInput {
			in := input("Arsenal", "Chelsea", 1)
			in.Status = "postponed"
			return in
		}(), league.ErrInvalidStatus},
		{"finished without score", func() store.MatchInput {
			in := input("Arsenal", "Chelsea", 1)
			in.Status = league.StatusFinished
			in.HomeGoals = ip(1)
			return in
		}(), league.ErrMissingScore},
		{"negative score", func() store.MatchInput {
			in := input("Arsenal", "Chelsea", 1)
			in.Status = league.StatusLive
			in.HomeGoals, in.AwayGoals = ip(-1), ip(0)
			return in
		}(), league.ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.AddMatch(ctx, admin, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	teams, err := m.Teams(ctx)
	require.NoError(t, err)
	assert.Empty(t, teams, "rejected input creates nothing")
}

func TestAddMatch_UpsertsAndAudits(t *testing.T) {
	m, s := newManager(t)
	ctx := context.Background()

	in := input(" Arsenal ", "Chelsea", 3)
	in.HomeGoals = ip(4) // dropped: not played yet
	id, created, err := m.AddMatch(ctx, admin, in)
	require.NoError(t, err)
	assert.True(t, created)

	match, err := m.Match(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal", match.Home)
	assert.Equal(t, league.StatusNotPlayed, match.Status)
	assert.Nil(t, match.HomeGoals)
	assert.Equal(t, league.RoundName(3), match.RoundName)

	again := input("Chelsea", "Arsenal", 3)
	again.Status = league.StatusFinished
	again.HomeGoals, again.AwayGoals = ip(2), ip(2)
	sameID, created, err := m.AddMatch(ctx, admin, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, sameID)

	log, err := s.AuditLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "update match", log[0].Action)
	assert.Equal(t, "add match", log[1].Action)
	assert.Equal(t, "root", log[1].AdminName)

	latest, err := m.LatestRoundNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}

func TestUpdateMatch(t *testing.T) {
	m, s := newManager(t)
	ctx := context.Background()
	id, _, err := m.AddMatch(ctx, admin, input("Arsenal", "Chelsea", 1))
	require.NoError(t, err)

	assert.ErrorIs(t, m.UpdateMatch(ctx, admin, id, league.StatusLive, nil, nil, nil), league.ErrMissingScore)
	assert.ErrorIs(t, m.UpdateMatch(ctx, admin, 404, league.StatusNotPlayed, nil, nil, nil), league.ErrNotFound)

	later := kickoff.Add(24 * time.Hour)
	require.NoError(t, m.UpdateMatch(ctx, admin, id, league.StatusFinished, ip(3), ip(1), &later))
	match, err := m.Match(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal 3-1 Chelsea", match.ScoreLine())
	assert.True(t, match.Kickoff.Equal(later))

	// Reopening the match wipes the scores and any points awarded.
	require.NoError(t, s.UpsertPrediction(ctx, admin, id, league.Score{Home: 3, Away: 1}))
	require.NoError(t, s.SetPoints(ctx, []store.PointsUpdate{{PredictionID: 1, Points: 3}}))
	require.NoError(t, m.UpdateMatch(ctx, admin, id, league.StatusNotPlayed, ip(3), ip(1), nil))
	match, err = m.Match(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, match.HomeGoals)
	p, err := s.Prediction(ctx, admin, id)
	require.NoError(t, err)
	assert.Nil(t, p.PointsAwarded)
}

func TestDeleteMatch(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	first, _, err := m.AddMatch(ctx, admin, input("Arsenal", "Chelsea", 1))
	require.NoError(t, err)
	second, _, err := m.AddMatch(ctx, admin, input("Everton", "Fulham", 1))
	require.NoError(t, err)

	require.NoError(t, m.DeleteMatch(ctx, admin, first))
	rounds, err := m.RoundNumbers(ctx, "Premier League")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, rounds, "round still holds a match")

	require.NoError(t, m.DeleteMatch(ctx, admin, second))
	rounds, err = m.RoundNumbers(ctx, "Premier League")
	require.NoError(t, err)
	assert.Empty(t, rounds)

	assert.ErrorIs(t, m.DeleteMatch(ctx, admin, first), league.ErrNotFound)
}

func TestListings(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, _, err := m.AddMatch(ctx, admin, input("Arsenal", "Chelsea", 1))
	require.NoError(t, err)
	liga := input("Betis", "Cadiz", 1)
	liga.Competition = "La Liga"
	_, _, err = m.AddMatch(ctx, admin, liga)
	require.NoError(t, err)
	played := input("Everton", "Fulham", 2)
	played.Status = league.StatusFinished
	played.HomeGoals, played.AwayGoals = ip(0), ip(0)
	_, _, err = m.AddMatch(ctx, admin, played)
	require.NoError(t, err)

	comps, err := m.Competitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"La Liga", "Premier League"}, comps)

	byName, err := m.MatchesByRoundName(ctx, league.RoundName(1))
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	pl, err := m.MatchesByRound(ctx, "Premier League", 1)
	require.NoError(t, err)
	require.Len(t, pl, 1)
	assert.Equal(t, "Chelsea", pl[0].Away)

	upcoming, err := m.UpcomingMatches(ctx)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)

	rounds, err := m.RoundNumbers(ctx, "Premier League")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rounds)
}
