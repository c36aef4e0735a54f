package scoring

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

type fixture struct {
	ctx    context.Context
	store  *store.Store
	engine *Engine
	hook   *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	log, hook := test.NewNullLogger()
	return &fixture{ctx: ctx, store: s, engine: New(s, log), hook: hook}
}

func (f *fixture) player(t *testing.T, name string) int64 {
	t.Helper()
	p := &league.Player{Name: name, PasswordHash: "x", Role: league.RoleUser}
	require.NoError(t, f.store.CreatePlayer(f.ctx, p, nil))
	return p.ID
}

func (f *fixture) match(t *testing.T, comp, home, away string, round int) int64 {
	t.Helper()
	id, _, err := f.store.AddMatch(f.ctx, store.MatchInput{
		Competition: comp,
		Home:        home,
		Away:        away,
		Kickoff:     time.Date(2025, 8, 16, 15, 0, 0, 0, time.UTC),
		Status:      league.StatusNotPlayed,
		RoundNumber: round,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) points(t *testing.T, player, match int64) *int {
	t.Helper()
	p, err := f.store.Prediction(f.ctx, player, match)
	require.NoError(t, err)
	return p.PointsAwarded
}

func ip(v int) *int { return &v }

func TestCalculateAndStorePoints_ExactScore(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	m := f.match(t, "Premier League", "A", "B", 1)
	round := league.RoundName(1)

	graded, err := f.engine.GradeRound(f.ctx, round,
		map[int64]league.Score{m: {Home: 2, Away: 1}},
		map[league.PlayerMatch]league.Score{{PlayerID: amy, MatchID: m}: {Home: 2, Away: 1}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)
	assert.Equal(t, ip(3), f.points(t, amy, m))

	match, err := f.store.Match(f.ctx, m)
	require.NoError(t, err)
	assert.Equal(t, league.StatusFinished, match.Status)
	assert.Equal(t, "points calculated", f.hook.LastEntry().Message)
}

func TestCalculateAndStorePoints_RulesAndMerge(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	bob := f.player(t, "bob")
	pl := f.match(t, "Premier League", "A", "B", 1)
	liga := f.match(t, "La Liga", "C", "D", 1)
	other := f.match(t, "La Liga", "E", "F", 2)
	round := league.RoundName(1)

	require.NoError(t, f.store.UpdateMatch(f.ctx, other, league.StatusFinished, ip(1), ip(1), nil))
	require.NoError(t, f.engine.SaveResultsAndPredictions(f.ctx, round,
		map[int64]league.Score{pl: {Home: 3, Away: 0}, liga: {Home: 0, Away: 2}},
		map[league.PlayerMatch]league.Score{
			{PlayerID: amy, MatchID: pl}:    {Home: 2, Away: 1},
			{PlayerID: amy, MatchID: liga}:  {Home: 2, Away: 0},
			{PlayerID: bob, MatchID: pl}:    {Home: 1, Away: 1},
			{PlayerID: bob, MatchID: liga}:  {Home: 0, Away: 2},
			{PlayerID: bob, MatchID: other}: {Home: 2, Away: 2},
		},
	))

	graded, err := f.engine.CalculateAndStorePoints(f.ctx, round)
	require.NoError(t, err)
	assert.Equal(t, 4, graded, "both competitions' Round 1 are graded together")

	assert.Equal(t, ip(1), f.points(t, amy, pl))
	assert.Equal(t, ip(0), f.points(t, amy, liga))
	assert.Equal(t, ip(0), f.points(t, bob, pl))
	assert.Equal(t, ip(3), f.points(t, bob, liga))
	assert.Nil(t, f.points(t, bob, other), "Round 2 was not graded")
}

func TestGradeRound_ResultOutsideRound(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	m := f.match(t, "Premier League", "A", "B", 1)
	later := f.match(t, "Premier League", "C", "D", 2)

	graded, err := f.engine.GradeRound(f.ctx, league.RoundName(1),
		map[int64]league.Score{m: {Home: 1, Away: 0}, later: {Home: 0, Away: 0}},
		map[league.PlayerMatch]league.Score{{PlayerID: amy, MatchID: m}: {Home: 1, Away: 0}},
	)
	assert.ErrorIs(t, err, league.ErrNotFound)
	assert.Zero(t, graded)

	match, err := f.store.Match(f.ctx, later)
	require.NoError(t, err)
	assert.Equal(t, league.StatusNotPlayed, match.Status, "nothing saved")
}

func TestCalculateAndStorePoints_Idempotent(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	m := f.match(t, "Premier League", "A", "B", 1)
	round := league.RoundName(1)

	_, err := f.engine.GradeRound(f.ctx, round,
		map[int64]league.Score{m: {Home: 1, Away: 1}},
		map[league.PlayerMatch]league.Score{{PlayerID: amy, MatchID: m}: {Home: 2, Away: 2}},
	)
	require.NoError(t, err)
	first := f.points(t, amy, m)

	_, err = f.engine.CalculateAndStorePoints(f.ctx, round)
	require.NoError(t, err)
	assert.Equal(t, first, f.points(t, amy, m))
	assert.Equal(t, ip(1), first)

	// Correcting the score and re-running regrades.
	require.NoError(t, f.store.UpdateMatch(f.ctx, m, league.StatusFinished, ip(2), ip(2), nil))
	_, err = f.engine.CalculateAndStorePoints(f.ctx, round)
	require.NoError(t, err)
	assert.Equal(t, ip(3), f.points(t, amy, m))
}

func TestCalculateAndStorePoints_UnfinishedStayNull(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	notPlayed := f.match(t, "Premier League", "A", "B", 1)
	live := f.match(t, "Premier League", "C", "D", 1)

	require.NoError(t, f.store.UpsertPrediction(f.ctx, amy, notPlayed, league.Score{Home: 1, Away: 0}))
	require.NoError(t, f.store.UpsertPrediction(f.ctx, amy, live, league.Score{Home: 1, Away: 0}))
	require.NoError(t, f.store.UpdateMatch(f.ctx, live, league.StatusLive, ip(1), ip(0), nil))

	for i := 0; i < 3; i++ {
		graded, err := f.engine.CalculateAndStorePoints(f.ctx, league.RoundName(1))
		require.NoError(t, err)
		assert.Zero(t, graded)
	}
	assert.Nil(t, f.points(t, amy, notPlayed))
	assert.Nil(t, f.points(t, amy, live))
}

func TestCalculateAndStorePoints_UnknownRound(t *testing.T) {
	f := newFixture(t)
	graded, err := f.engine.CalculateAndStorePoints(f.ctx, "Round 99")
	require.NoError(t, err)
	assert.Zero(t, graded)
}

func TestSavePredictionsBatch(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	open := f.match(t, "Premier League", "A", "B", 1)
	another := f.match(t, "Premier League", "C", "D", 1)
	played := f.match(t, "Premier League", "E", "F", 1)
	require.NoError(t, f.store.UpdateMatch(f.ctx, played, league.StatusFinished, ip(1), ip(0), nil))

	results, err := f.engine.SavePredictionsBatch(f.ctx, amy, []PredictionInput{
		{MatchID: open, Value: "2-1"},
		{MatchID: another, Value: "2-1-3"},
		{MatchID: another, Value: "two-one"},
		{MatchID: another, Value: "-1-2"},
		{MatchID: played, Value: "1-0"},
		{MatchID: 999, Value: "1-0"},
		{MatchID: another, Value: " 0-0 "},
		{MatchID: another, Value: "0-0"},
	})
	require.NoError(t, err)
	require.Len(t, results, 8)

	oks := make([]bool, len(results))
	for i, r := range results {
		oks[i] = r.OK
	}
	assert.Equal(t, []bool{true, false, false, false, false, false, false, true}, oks)
	assert.Equal(t, "Invalid format for match 2. Use format '2-1'.", results[1].Message)
	assert.Contains(t, results[4].Message, "already played")
	assert.Equal(t, int64(999), results[5].MatchID)

	p, err := f.store.Prediction(f.ctx, amy, another)
	require.NoError(t, err)
	assert.Equal(t, league.Score{Home: 0, Away: 0}, p.Predicted)

	// Batch submissions update an existing prediction while the match is open.
	results, err = f.engine.SavePredictionsBatch(f.ctx, amy, []PredictionInput{{MatchID: open, Value: "3-3"}})
	require.NoError(t, err)
	assert.True(t, results[0].OK)
	p, err = f.store.Prediction(f.ctx, amy, open)
	require.NoError(t, err)
	assert.Equal(t, league.Score{Home: 3, Away: 3}, p.Predicted)
}

func TestSavePrediction(t *testing.T) {
	f := newFixture(t)
	amy := f.player(t, "amy")
	open := f.match(t, "Premier League", "A", "B", 1)
	played := f.match(t, "Premier League", "C", "D", 1)
	require.NoError(t, f.store.UpdateMatch(f.ctx, played, league.StatusFinished, ip(1), ip(0), nil))

	assert.ErrorIs(t, f.engine.SavePrediction(f.ctx, amy, open, "2:1"), league.ErrInvalidPrediction)
	require.NoError(t, f.engine.SavePrediction(f.ctx, amy, open, "2-1"))
	assert.ErrorIs(t, f.engine.SavePrediction(f.ctx, amy, open, "0-0"), league.ErrAlreadySubmitted)
	assert.ErrorIs(t, f.engine.SavePrediction(f.ctx, amy, played, "0-0"), league.ErrMatchLocked)
	assert.ErrorIs(t, f.engine.SavePrediction(f.ctx, amy, 999, "0-0"), league.ErrMatchLocked)

	p, err := f.store.Prediction(f.ctx, amy, open)
	require.NoError(t, err)
	assert.Equal(t, league.Score{Home: 2, Away: 1}, p.Predicted, "duplicate did not overwrite")
}
