package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/api"
	"github.com/utakatalp/prediction-league/internal/config"
	"github.com/utakatalp/prediction-league/internal/fixtures"
	"github.com/utakatalp/prediction-league/internal/honours"
	"github.com/utakatalp/prediction-league/internal/logger"
	"github.com/utakatalp/prediction-league/internal/scoring"
	"github.com/utakatalp/prediction-league/internal/standings"
	"github.com/utakatalp/prediction-league/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.Env)
	if err != nil {
		logrus.WithError(err).Fatal("building logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DBDriver).Fatal("opening store")
	}
	defer s.Close()

	sessionKey := []byte(cfg.SessionKey)
	if len(sessionKey) == 0 {
		log.Warn("session_key not set, using a development key")
		sessionKey = []byte("development-session-key-change-me")
	}
	if cfg.AdminSecret == "" {
		log.Info("admin_secret not set, admin signup disabled")
	}

	srv := api.New(api.Services{
		Accounts:  accounts.New(s, cfg.AdminSecret, log),
		Scoring:   scoring.New(s, log),
		Standings: standings.New(s, log),
		Honours:   honours.New(s, log),
		Fixtures:  fixtures.New(s, log),
	}, sessionKey, cfg.Production(), log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutting down")
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "driver": s.Driver()}).Info("server starting")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("serving")
	}
	log.Info("server stopped")
}
