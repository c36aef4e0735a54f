package api

import (
	"net/http"

	"github.com/utakatalp/prediction-league/internal/league"
)

type credentialsRequest struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	AdminCode string `json:"adminCode,omitempty"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.Accounts.Signup(r.Context(), req.Name, req.Password, req.AdminCode)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !s.startSession(w, r, p) {
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.Accounts.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !s.startSession(w, r, p) {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, p *league.Player) bool {
	// A cookie signed with an old key decodes with an error but still
	// yields a fresh session to overwrite.
	sess, _ := s.sessions.Get(r, sessionName)
	sess.Values[sessionPlayerID] = p.ID
	if err := sess.Save(r, w); err != nil {
		s.log.WithError(err).Error("saving session")
		writeError(w, http.StatusInternalServerError, "could not start session")
		return false
	}
	return true
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.Get(r, sessionName)
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionPlayerID)
	if err := sess.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, "could not end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, err := s.Accounts.Player(r.Context(), actor(r).ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
