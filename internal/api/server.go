// Package api exposes the prediction game as a JSON HTTP API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/fixtures"
	"github.com/utakatalp/prediction-league/internal/honours"
	"github.com/utakatalp/prediction-league/internal/scoring"
	"github.com/utakatalp/prediction-league/internal/standings"
)

const sessionName = "pleague"

// Services are the engines the API calls into.
type Services struct {
	Accounts  *accounts.Service
	Scoring   *scoring.Engine
	Standings *standings.Aggregator
	Honours   *honours.Service
	Fixtures  *fixtures.Manager
}

type Server struct {
	Services
	sessions sessions.Store
	router   *mux.Router
	log      logrus.FieldLogger
}

// New builds the router. sessionKey signs the session cookie; secure marks
// it HTTPS-only.
func New(svc Services, sessionKey []byte, secure bool, log logrus.FieldLogger) *Server {
	cookies := sessions.NewCookieStore(sessionKey)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{Services: svc, sessions: cookies, router: mux.NewRouter(), log: log}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestLog, s.loadActor)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	api.HandleFunc("/me", requireUser(s.me)).Methods(http.MethodGet)

	api.HandleFunc("/leaderboard", s.leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/rounds", s.rounds).Methods(http.MethodGet)
	api.HandleFunc("/rounds/summary", s.roundSummaries).Methods(http.MethodGet)
	api.HandleFunc("/rounds/{id:[0-9]+}", s.roundView).Methods(http.MethodGet)
	api.HandleFunc("/matches/upcoming", s.upcoming).Methods(http.MethodGet)
	api.HandleFunc("/titles", s.titleSummary).Methods(http.MethodGet)
	api.HandleFunc("/titles/league", s.leagueWinners).Methods(http.MethodGet)
	api.HandleFunc("/titles/cup", s.cupWinners).Methods(http.MethodGet)
	api.HandleFunc("/cups/rounds/{id:[0-9]+}/matchups", s.cupMatchups).Methods(http.MethodGet)

	api.HandleFunc("/me/matches", requireUser(s.myMatches)).Methods(http.MethodGet)
	api.HandleFunc("/me/rounds/{id:[0-9]+}", requireUser(s.myRound)).Methods(http.MethodGet)
	api.HandleFunc("/predictions", requireUser(s.savePredictions)).Methods(http.MethodPost)
	api.HandleFunc("/predictions/{match:[0-9]+}", requireUser(s.savePrediction)).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	admin.HandleFunc("/matches", s.addMatch).Methods(http.MethodPost)
	admin.HandleFunc("/matches/{id:[0-9]+}", s.updateMatch).Methods(http.MethodPut)
	admin.HandleFunc("/matches/{id:[0-9]+}", s.deleteMatch).Methods(http.MethodDelete)
	admin.HandleFunc("/matches/{id:[0-9]+}/cup-round", s.assignCupRound).Methods(http.MethodPut)
	admin.HandleFunc("/competitions", s.competitions).Methods(http.MethodGet)
	admin.HandleFunc("/competitions/{name}/rounds", s.roundNumbers).Methods(http.MethodGet)
	admin.HandleFunc("/competitions/{name}/rounds/{n:[0-9]+}", s.competitionRound).Methods(http.MethodGet)
	admin.HandleFunc("/rounds/latest", s.latestRound).Methods(http.MethodGet)
	admin.HandleFunc("/rounds/{n:[0-9]+}/results", s.saveResults).Methods(http.MethodPost)
	admin.HandleFunc("/rounds/{n:[0-9]+}/points", s.calculatePoints).Methods(http.MethodPost)

	admin.HandleFunc("/players", s.listPlayers).Methods(http.MethodGet)
	admin.HandleFunc("/players", s.addPlayer).Methods(http.MethodPost)
	admin.HandleFunc("/players/{id:[0-9]+}", s.updatePlayer).Methods(http.MethodPut)
	admin.HandleFunc("/players/{id:[0-9]+}", s.deletePlayer).Methods(http.MethodDelete)
	admin.HandleFunc("/audit", s.auditLog).Methods(http.MethodGet)

	admin.HandleFunc("/awards/league", s.awardLeague).Methods(http.MethodPost)
	admin.HandleFunc("/awards/cup", s.awardCup).Methods(http.MethodPost)
	admin.HandleFunc("/cups", s.createCup).Methods(http.MethodPost)
	admin.HandleFunc("/cups/{id:[0-9]+}/rounds", s.addCupRound).Methods(http.MethodPost)
	admin.HandleFunc("/cups/rounds/{id:[0-9]+}/draw", s.drawCupRound).Methods(http.MethodPost)
	admin.HandleFunc("/cups/rounds/{id:[0-9]+}/resolve", s.resolveCupRound).Methods(http.MethodPost)
	admin.HandleFunc("/cups/rounds/{id:[0-9]+}/advance", s.advanceCupRound).Methods(http.MethodPost)
	admin.HandleFunc("/cups/rounds/{id:[0-9]+}/matchups/{matchup:[0-9]+}/winner", s.setMatchupWinner).Methods(http.MethodPut)
}
