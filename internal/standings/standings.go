// Package standings reads the points ledger back out as leaderboards and
// per-round views.
package standings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

// Pending is shown in place of points for matches not yet finished.
const Pending = "Pending"

type Store interface {
	OverallPoints(ctx context.Context) ([]league.StandingEntry, error)
	RoundName(ctx context.Context, roundID int64) (league.GameweekKey, error)
	MatchesByRoundName(ctx context.Context, name league.GameweekKey) ([]*league.Match, error)
	PredictionsByRoundName(ctx context.Context, name league.GameweekKey) ([]league.Prediction, error)
	PlayersByRole(ctx context.Context, role league.Role) ([]*league.Player, error)
	PlayerMatches(ctx context.Context, playerID int64) ([]store.PlayerFixture, error)
	PlayerRoundPredictions(ctx context.Context, playerID, roundID int64) ([]store.PlayerFixture, error)
	Rounds(ctx context.Context) ([]league.Round, error)
	RoundSummaries(ctx context.Context) ([]store.RoundSummary, error)
}

type Aggregator struct {
	store Store
	log   logrus.FieldLogger
}

func New(s Store, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{store: s, log: log}
}

// OverallPoints returns every user-role player with their summed points,
// highest first, as the store orders them.
func (a *Aggregator) OverallPoints(ctx context.Context) ([]league.StandingEntry, error) {
	entries, err := a.store.OverallPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading overall points: %w", err)
	}
	return entries, nil
}

// Leaderboard is OverallPoints sorted for display with minimum ranks.
func (a *Aggregator) Leaderboard(ctx context.Context) ([]league.StandingEntry, error) {
	entries, err := a.OverallPoints(ctx)
	if err != nil {
		return nil, err
	}
	return league.RankStandings(entries), nil
}

// Cell is one submitted prediction as shown in a round view.
type Cell struct {
	PlayerID   int64  `json:"playerId"`
	MatchID    int64  `json:"matchId"`
	Prediction string `json:"prediction"`
	Points     *int   `json:"points"`
}

// RoundView is one gameweek across all competitions.
type RoundView struct {
	Round       league.GameweekKey          `json:"round"`
	Matches     []*league.Match             `json:"matches"`
	Players     []*league.Player            `json:"players"`
	Predictions map[league.PlayerMatch]Cell `json:"-"`
	Results     map[int64]string            `json:"results"`
}

// Cells lists the predictions ordered by player then match.
func (v *RoundView) Cells() []Cell {
	cells := make([]Cell, 0, len(v.Predictions))
	for _, c := range v.Predictions {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].PlayerID != cells[j].PlayerID {
			return cells[i].PlayerID < cells[j].PlayerID
		}
		return cells[i].MatchID < cells[j].MatchID
	})
	return cells
}

// RoundView resolves roundID to its gameweek name and returns the matches of
// every round with that name, all predictions on them and the results. An
// unknown round yields an empty view.
func (a *Aggregator) RoundView(ctx context.Context, roundID int64) (*RoundView, error) {
	view := &RoundView{
		Predictions: make(map[league.PlayerMatch]Cell),
		Results:     make(map[int64]string),
	}

	name, err := a.store.RoundName(ctx, roundID)
	if errors.Is(err, league.ErrNotFound) {
		a.log.WithField("round_id", roundID).Debug("round view for unknown round")
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Round = name

	if view.Matches, err = a.store.MatchesByRoundName(ctx, name); err != nil {
		return nil, err
	}
	for _, m := range view.Matches {
		view.Results[m.ID] = league.ResultString(m.HomeGoals, m.AwayGoals)
	}

	predictions, err := a.store.PredictionsByRoundName(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, p := range predictions {
		view.Predictions[league.PlayerMatch{PlayerID: p.PlayerID, MatchID: p.MatchID}] = Cell{
			PlayerID:   p.PlayerID,
			MatchID:    p.MatchID,
			Prediction: p.Predicted.String(),
			Points:     p.PointsAwarded,
		}
	}

	if view.Players, err = a.store.PlayersByRole(ctx, league.RoleUser); err != nil {
		return nil, err
	}
	return view, nil
}

// PlayerPrediction is one line of a player's round history.
type PlayerPrediction struct {
	MatchID    int64     `json:"matchId"`
	Home       string    `json:"home"`
	Away       string    `json:"away"`
	Kickoff    time.Time `json:"kickoff"`
	Prediction string    `json:"prediction"`
	Result     string    `json:"result"`
	Points     string    `json:"points"`
}

// PlayerRoundPredictions lists what the player predicted in one stored round.
// Points read Pending until the match is finished; a finished prediction not
// yet graded counts 0.
func (a *Aggregator) PlayerRoundPredictions(ctx context.Context, playerID, roundID int64) ([]PlayerPrediction, error) {
	fixtures, err := a.store.PlayerRoundPredictions(ctx, playerID, roundID)
	if err != nil {
		return nil, err
	}
	out := make([]PlayerPrediction, 0, len(fixtures))
	for _, f := range fixtures {
		pp := PlayerPrediction{
			MatchID: f.Match.ID,
			Home:    f.Match.Home,
			Away:    f.Match.Away,
			Kickoff: f.Match.Kickoff,
			Result:  league.ResultString(f.Match.HomeGoals, f.Match.AwayGoals),
			Points:  Pending,
		}
		if f.Predicted != nil {
			pp.Prediction = f.Predicted.String()
		}
		if f.Match.Status == league.StatusFinished {
			points := 0
			if f.Points != nil {
				points = *f.Points
			}
			pp.Points = strconv.Itoa(points)
		}
		out = append(out, pp)
	}
	return out, nil
}

// RoundFixtures is one gameweek of a player's matches.
type RoundFixtures struct {
	Round    league.GameweekKey    `json:"round"`
	Fixtures []store.PlayerFixture `json:"fixtures"`
}

// MatchesGroupedByRound returns every match with the player's own prediction,
// grouped by gameweek in gameweek order and by kickoff within each.
func (a *Aggregator) MatchesGroupedByRound(ctx context.Context, playerID int64) ([]RoundFixtures, error) {
	fixtures, err := a.store.PlayerMatches(ctx, playerID)
	if err != nil {
		return nil, err
	}

	groups := make(map[league.GameweekKey][]store.PlayerFixture)
	var keys []league.GameweekKey
	for _, f := range fixtures {
		k := f.Match.RoundName
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], f)
	}
	league.SortGameweeks(keys)

	out := make([]RoundFixtures, len(keys))
	for i, k := range keys {
		out[i] = RoundFixtures{Round: k, Fixtures: groups[k]}
	}
	return out, nil
}

func (a *Aggregator) Rounds(ctx context.Context) ([]league.Round, error) {
	return a.store.Rounds(ctx)
}

func (a *Aggregator) RoundSummaries(ctx context.Context) ([]store.RoundSummary, error) {
	return a.store.RoundSummaries(ctx)
}
