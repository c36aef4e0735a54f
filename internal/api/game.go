package api

import (
	"net/http"

	"github.com/utakatalp/prediction-league/internal/scoring"
	"github.com/utakatalp/prediction-league/internal/standings"
)

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.Standings.Leaderboard(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) rounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.Standings.Rounds(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) roundSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.Standings.RoundSummaries(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type roundViewResponse struct {
	*standings.RoundView
	Predictions []standings.Cell `json:"predictions"`
}

func (s *Server) roundView(w http.ResponseWriter, r *http.Request) {
	view, err := s.Standings.RoundView(r.Context(), pathID(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roundViewResponse{RoundView: view, Predictions: view.Cells()})
}

func (s *Server) upcoming(w http.ResponseWriter, r *http.Request) {
	matches, err := s.Fixtures.UpcomingMatches(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) myMatches(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Standings.MatchesGroupedByRound(r.Context(), actor(r).ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) myRound(w http.ResponseWriter, r *http.Request) {
	lines, err := s.Standings.PlayerRoundPredictions(r.Context(), actor(r).ID, pathID(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// savePredictions answers 200 with per-item results even when some items
// were rejected. A store failure answers 500 with the items processed so far.
func (s *Server) savePredictions(w http.ResponseWriter, r *http.Request) {
	var inputs []scoring.PredictionInput
	if !decode(w, r, &inputs) {
		return
	}
	results, err := s.Scoring.SavePredictionsBatch(r.Context(), actor(r).ID, inputs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"results": results,
		})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type predictionRequest struct {
	Value string `json:"value"`
}

func (s *Server) savePrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if !decode(w, r, &req) {
		return
	}
	matchID := pathID(r, "match")
	if err := s.Scoring.SavePrediction(r.Context(), actor(r).ID, matchID, req.Value); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scoring.ItemResult{MatchID: matchID, OK: true, Message: "Prediction saved"})
}
