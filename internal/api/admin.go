package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

type matchRequest struct {
	Competition string             `json:"competition"`
	Home        string             `json:"home"`
	Away        string             `json:"away"`
	Kickoff     time.Time          `json:"kickoff"`
	Status      league.MatchStatus `json:"status"`
	HomeGoals   *int               `json:"homeGoals"`
	AwayGoals   *int               `json:"awayGoals"`
	Round       int                `json:"round"`
}

func (s *Server) addMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}
	id, created, err := s.Fixtures.AddMatch(r.Context(), actor(r).ID, store.MatchInput{
		Competition: req.Competition,
		Home:        req.Home,
		Away:        req.Away,
		Kickoff:     req.Kickoff,
		Status:      req.Status,
		HomeGoals:   req.HomeGoals,
		AwayGoals:   req.AwayGoals,
		RoundNumber: req.Round,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"id": id, "created": created})
}

type matchUpdateRequest struct {
	Status    league.MatchStatus `json:"status"`
	HomeGoals *int               `json:"homeGoals"`
	AwayGoals *int               `json:"awayGoals"`
	Kickoff   *time.Time         `json:"kickoff"`
}

func (s *Server) updateMatch(w http.ResponseWriter, r *http.Request) {
	var req matchUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	id := pathID(r, "id")
	if err := s.Fixtures.UpdateMatch(r.Context(), actor(r).ID, id, req.Status, req.HomeGoals, req.AwayGoals, req.Kickoff); err != nil {
		writeErr(w, err)
		return
	}
	m, err := s.Fixtures.Match(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.Fixtures.DeleteMatch(r.Context(), actor(r).ID, pathID(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) competitions(w http.ResponseWriter, r *http.Request) {
	names, err := s.Fixtures.Competitions(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) roundNumbers(w http.ResponseWriter, r *http.Request) {
	numbers, err := s.Fixtures.RoundNumbers(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, numbers)
}

func (s *Server) competitionRound(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(mux.Vars(r)["n"])
	matches, err := s.Fixtures.MatchesByRound(r.Context(), mux.Vars(r)["name"], n)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) latestRound(w http.ResponseWriter, r *http.Request) {
	n, err := s.Fixtures.LatestRoundNumber(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"round": n})
}

type resultEntry struct {
	MatchID int64 `json:"matchId"`
	Home    int   `json:"home"`
	Away    int   `json:"away"`
}

type predictionEntry struct {
	PlayerID int64 `json:"playerId"`
	MatchID  int64 `json:"matchId"`
	Home     int   `json:"home"`
	Away     int   `json:"away"`
}

type roundResultsRequest struct {
	Results     []resultEntry     `json:"results"`
	Predictions []predictionEntry `json:"predictions"`
}

// saveResults stores results and admin-entered predictions for gameweek n,
// then grades it.
func (s *Server) saveResults(w http.ResponseWriter, r *http.Request) {
	var req roundResultsRequest
	if !decode(w, r, &req) {
		return
	}
	results := make(map[int64]league.Score, len(req.Results))
	for _, e := range req.Results {
		if e.Home < 0 || e.Away < 0 {
			writeErr(w, league.ErrInvalidScore)
			return
		}
		results[e.MatchID] = league.Score{Home: e.Home, Away: e.Away}
	}
	predictions := make(map[league.PlayerMatch]league.Score, len(req.Predictions))
	for _, e := range req.Predictions {
		if e.Home < 0 || e.Away < 0 {
			writeErr(w, league.ErrInvalidPrediction)
			return
		}
		predictions[league.PlayerMatch{PlayerID: e.PlayerID, MatchID: e.MatchID}] = league.Score{Home: e.Home, Away: e.Away}
	}

	graded, err := s.Scoring.GradeRound(r.Context(), roundKey(r), results, predictions)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"graded": graded})
}

func (s *Server) calculatePoints(w http.ResponseWriter, r *http.Request) {
	graded, err := s.Scoring.CalculateAndStorePoints(r.Context(), roundKey(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"graded": graded})
}

func roundKey(r *http.Request) league.GameweekKey {
	n, _ := strconv.Atoi(mux.Vars(r)["n"])
	return league.RoundName(n)
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.Accounts.ListPlayers(r.Context(), actor(r), r.URL.Query().Get("search"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

type playerRequest struct {
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     league.Role `json:"role"`
}

func (s *Server) addPlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = league.RoleUser
	}
	p, err := s.Accounts.AddPlayer(r.Context(), actor(r), req.Name, req.Password, req.Role)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updatePlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.Accounts.UpdatePlayer(r.Context(), actor(r), pathID(r, "id"), accounts.PlayerUpdate{
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.Accounts.DeletePlayer(r.Context(), actor(r), pathID(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) auditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Accounts.AuditLog(r.Context(), actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
