package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/league"
)

// writeJSON encodes data as the response body. An encoding failure is
// reported to the request logger.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		if rec, ok := w.(interface{ encodeFailed(error) }); ok {
			rec.encodeFailed(err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, league.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, league.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, league.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, league.ErrAlreadySubmitted),
		errors.Is(err, league.ErrAlreadyAwarded),
		errors.Is(err, league.ErrAlreadyDrawn),
		errors.Is(err, league.ErrNameTaken),
		errors.Is(err, league.ErrMatchLocked),
		errors.Is(err, league.ErrUndecided):
		return http.StatusConflict
	case errors.Is(err, league.ErrSameTeam),
		errors.Is(err, league.ErrInvalidPrediction),
		errors.Is(err, league.ErrMissingScore),
		errors.Is(err, league.ErrInvalidScore),
		errors.Is(err, league.ErrInvalidStatus),
		errors.Is(err, league.ErrInvalidRole),
		errors.Is(err, league.ErrInvalidSeason),
		errors.Is(err, league.ErrMissingName),
		errors.Is(err, league.ErrInvalidRound),
		errors.Is(err, league.ErrDuplicatePlayer):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID reads a numeric route variable; the route pattern guarantees digits.
func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

// actor is only called behind requireUser or requireAdmin.
func actor(r *http.Request) accounts.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}
