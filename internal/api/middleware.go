package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/league"
)

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"

	sessionPlayerID = "player_id"
)

// ActorFrom returns the logged-in player of the request, if any.
func ActorFrom(ctx context.Context) (accounts.Actor, bool) {
	a, ok := ctx.Value(actorKey).(accounts.Actor)
	return a, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	encodeErr error
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) encodeFailed(err error) {
	r.encodeErr = err
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		entry := s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		})
		if rec.encodeErr != nil {
			entry.WithError(rec.encodeErr).Error("encoding response")
			return
		}
		if rec.status >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request")
	})
}

// loadActor resolves the session cookie to the current player. A stale
// session pointing at a deleted player is treated as logged out.
func (s *Server) loadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r, sessionName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := sess.Values[sessionPlayerID].(int64)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := s.Accounts.Player(r.Context(), id)
		if errors.Is(err, league.ErrNotFound) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey, accounts.ActorOf(p))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next(w, r)
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		if !a.IsAdmin() {
			writeErr(w, league.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
