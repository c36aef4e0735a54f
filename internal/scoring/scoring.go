// Package scoring turns finished match results and player predictions into
// awarded points, and accepts prediction submissions.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	GradingRows(ctx context.Context, name league.GameweekKey) ([]store.GradingRow, error)
	SetPoints(ctx context.Context, updates []store.PointsUpdate) error
	SaveResultsAndPredictions(ctx context.Context, round league.GameweekKey, results map[int64]league.Score, predictions map[league.PlayerMatch]league.Score) error
	Match(ctx context.Context, id int64) (*league.Match, error)
	PredictionExists(ctx context.Context, playerID, matchID int64) (bool, error)
	InsertPrediction(ctx context.Context, playerID, matchID int64, score league.Score) error
	UpsertPrediction(ctx context.Context, playerID, matchID int64, score league.Score) error
}

type Engine struct {
	store Store
	log   logrus.FieldLogger
}

func New(s Store, log logrus.FieldLogger) *Engine {
	return &Engine{store: s, log: log}
}

// CalculateAndStorePoints grades every prediction on finished matches in
// rounds named round and stores the points in one batch. Predictions on
// matches without a final result are left untouched. Re-running with
// unchanged results writes the same values. It returns how many predictions
// were graded; an unknown round grades none.
func (e *Engine) CalculateAndStorePoints(ctx context.Context, round league.GameweekKey) (int, error) {
	rows, err := e.store.GradingRows(ctx, round)
	if err != nil {
		return 0, fmt.Errorf("loading predictions of %q: %w", round, err)
	}

	updates := make([]store.PointsUpdate, 0, len(rows))
	for _, r := range rows {
		if r.Status != league.StatusFinished || r.HomeGoals == nil || r.AwayGoals == nil {
			continue // not gradeable yet
		}
		actual := league.Score{Home: *r.HomeGoals, Away: *r.AwayGoals}
		updates = append(updates, store.PointsUpdate{
			PredictionID: r.PredictionID,
			Points:       league.Points(r.Predicted, actual),
		})
	}

	if err := e.store.SetPoints(ctx, updates); err != nil {
		return 0, fmt.Errorf("storing points of %q: %w", round, err)
	}
	e.log.WithFields(logrus.Fields{
		"round":   round,
		"graded":  len(updates),
		"pending": len(rows) - len(updates),
	}).Info("points calculated")
	return len(updates), nil
}

// SaveResultsAndPredictions records actual results for matches of the round,
// marking them finished, and upserts predictions keyed by player and match.
// A result for a match outside the round fails the whole save with
// ErrNotFound. It must run
// before CalculateAndStorePoints for the results to be graded.
func (e *Engine) SaveResultsAndPredictions(ctx context.Context, round league.GameweekKey, results map[int64]league.Score, predictions map[league.PlayerMatch]league.Score) error {
	if err := e.store.SaveResultsAndPredictions(ctx, round, results, predictions); err != nil {
		return fmt.Errorf("saving %q: %w", round, err)
	}
	e.log.WithFields(logrus.Fields{
		"round":       round,
		"results":     len(results),
		"predictions": len(predictions),
	}).Info("results and predictions saved")
	return nil
}

// GradeRound saves results and predictions, then grades the round.
func (e *Engine) GradeRound(ctx context.Context, round league.GameweekKey, results map[int64]league.Score, predictions map[league.PlayerMatch]league.Score) (int, error) {
	if err := e.SaveResultsAndPredictions(ctx, round, results, predictions); err != nil {
		return 0, err
	}
	return e.CalculateAndStorePoints(ctx, round)
}

// PredictionInput is one submitted "H-A" guess.
type PredictionInput struct {
	MatchID int64  `json:"matchId"`
	Value   string `json:"value"`
}

// ItemResult reports the outcome of one submitted item.
type ItemResult struct {
	MatchID int64  `json:"matchId"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// SavePredictionsBatch saves a player's predictions, inserting or updating
// each one. Malformed values and matches no longer open are rejected per
// item without affecting the others. A store failure stops the batch; items
// saved before it stay saved and are returned with the error.
func (e *Engine) SavePredictionsBatch(ctx context.Context, playerID int64, inputs []PredictionInput) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(inputs))
	saved := 0
	for _, in := range inputs {
		score, err := league.ParsePrediction(in.Value)
		if err != nil {
			results = append(results, ItemResult{
				MatchID: in.MatchID,
				Message: fmt.Sprintf("Invalid format for match %d. Use format '2-1'.", in.MatchID),
			})
			continue
		}

		open, err := e.matchOpen(ctx, in.MatchID)
		if err != nil {
			return results, err
		}
		if !open {
			results = append(results, ItemResult{
				MatchID: in.MatchID,
				Message: fmt.Sprintf("Match %d is already played or doesn't exist.", in.MatchID),
			})
			continue
		}

		if err := e.store.UpsertPrediction(ctx, playerID, in.MatchID, score); err != nil {
			return results, fmt.Errorf("saving prediction for match %d: %w", in.MatchID, err)
		}
		saved++
		results = append(results, ItemResult{
			MatchID: in.MatchID,
			OK:      true,
			Message: fmt.Sprintf("Prediction saved for match %d", in.MatchID),
		})
	}

	e.log.WithFields(logrus.Fields{
		"player":   playerID,
		"saved":    saved,
		"rejected": len(results) - saved,
	}).Info("prediction batch processed")
	return results, nil
}

// SavePrediction stores a single first-time prediction. A second submission
// for the same match fails with league.ErrAlreadySubmitted.
func (e *Engine) SavePrediction(ctx context.Context, playerID, matchID int64, value string) error {
	score, err := league.ParsePrediction(value)
	if err != nil {
		return err
	}

	exists, err := e.store.PredictionExists(ctx, playerID, matchID)
	if err != nil {
		return err
	}
	if exists {
		return league.ErrAlreadySubmitted
	}

	open, err := e.matchOpen(ctx, matchID)
	if err != nil {
		return err
	}
	if !open {
		return fmt.Errorf("match %d: %w", matchID, league.ErrMatchLocked)
	}

	if err := e.store.InsertPrediction(ctx, playerID, matchID, score); err != nil {
		// A concurrent submission may have won the uniqueness constraint.
		if exists, cerr := e.store.PredictionExists(ctx, playerID, matchID); cerr == nil && exists {
			return league.ErrAlreadySubmitted
		}
		return err
	}
	e.log.WithFields(logrus.Fields{"player": playerID, "match": matchID}).Info("prediction saved")
	return nil
}

func (e *Engine) matchOpen(ctx context.Context, matchID int64) (bool, error) {
	m, err := e.store.Match(ctx, matchID)
	if errors.Is(err, league.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking match %d: %w", matchID, err)
	}
	return m.Status == league.StatusNotPlayed, nil
}
