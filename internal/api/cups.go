package api

import (
	"net/http"
)

func (s *Server) titleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Honours.TitleSummary(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) leagueWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := s.Honours.LeagueWinners(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winners)
}

func (s *Server) cupWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := s.Honours.CupWinners(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winners)
}

func (s *Server) cupMatchups(w http.ResponseWriter, r *http.Request) {
	matchups, err := s.Honours.CupMatchupsWithPoints(r.Context(), pathID(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchups)
}

type leagueAwardRequest struct {
	PlayerID int64  `json:"playerId"`
	Season   string `json:"season"`
	Portion  string `json:"portion"`
}

func (s *Server) awardLeague(w http.ResponseWriter, r *http.Request) {
	var req leagueAwardRequest
	if !decode(w, r, &req) {
		return
	}
	title, err := s.Honours.AwardLeagueWinner(r.Context(), actor(r).ID, req.PlayerID, req.Season, req.Portion)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"title": title})
}

type cupAwardRequest struct {
	PlayerID   int64 `json:"playerId"`
	CupRoundID int64 `json:"cupRoundId"`
	Year       int   `json:"year"`
}

func (s *Server) awardCup(w http.ResponseWriter, r *http.Request) {
	var req cupAwardRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Honours.AwardCupWinner(r.Context(), actor(r).ID, req.PlayerID, req.CupRoundID, req.Year); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type cupRequest struct {
	Name          string `json:"name"`
	CompetitionID int64  `json:"competitionId"`
	StartRoundID  int64  `json:"startRoundId"`
}

func (s *Server) createCup(w http.ResponseWriter, r *http.Request) {
	var req cupRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Honours.CreateCup(r.Context(), req.Name, req.CompetitionID, req.StartRoundID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type cupRoundRequest struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

func (s *Server) addCupRound(w http.ResponseWriter, r *http.Request) {
	var req cupRoundRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Honours.AddCupRound(r.Context(), pathID(r, "id"), req.Name, req.Order)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type assignRequest struct {
	CupRoundID *int64 `json:"cupRoundId"`
}

func (s *Server) assignCupRound(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Honours.AssignMatchToCupRound(r.Context(), pathID(r, "id"), req.CupRoundID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type drawRequest struct {
	PlayerIDs   []int64 `json:"playerIds"`
	RoundNumber int     `json:"roundNumber"`
}

func (s *Server) drawCupRound(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoundNumber == 0 {
		req.RoundNumber = 1
	}
	id := pathID(r, "id")
	if _, err := s.Honours.DrawCupRound(r.Context(), id, req.PlayerIDs, req.RoundNumber); err != nil {
		writeErr(w, err)
		return
	}
	s.cupMatchupsStatus(w, r, id, http.StatusCreated)
}

func (s *Server) resolveCupRound(w http.ResponseWriter, r *http.Request) {
	matchups, err := s.Honours.ResolveCupRound(r.Context(), pathID(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchups)
}

func (s *Server) advanceCupRound(w http.ResponseWriter, r *http.Request) {
	next, err := s.Honours.AdvanceCupRound(r.Context(), pathID(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	s.cupMatchupsStatus(w, r, next, http.StatusCreated)
}

type winnerRequest struct {
	WinnerID int64 `json:"winnerId"`
}

func (s *Server) setMatchupWinner(w http.ResponseWriter, r *http.Request) {
	var req winnerRequest
	if !decode(w, r, &req) {
		return
	}
	id := pathID(r, "id")
	if err := s.Honours.SetMatchupWinner(r.Context(), id, pathID(r, "matchup"), req.WinnerID); err != nil {
		writeErr(w, err)
		return
	}
	s.cupMatchupsStatus(w, r, id, http.StatusOK)
}

func (s *Server) cupMatchupsStatus(w http.ResponseWriter, r *http.Request, cupRoundID int64, status int) {
	matchups, err := s.Honours.CupMatchupsWithPoints(r.Context(), cupRoundID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, status, matchups)
}
