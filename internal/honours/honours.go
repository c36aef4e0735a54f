// Package honours summarizes league and cup titles and runs the prediction
// cup: draws, per-round points and advancing winners.
package honours

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

const (
	leagueWinnerDescription = "Won the prediction league"
	cupWinnerDescription    = "Won the prediction cup"

	// ByeName stands in for a missing cup opponent.
	ByeName = "Waiting for opponent"
)

type Store interface {
	TitleCounts(ctx context.Context) ([]store.TitleCount, error)
	AwardsByName(ctx context.Context, achievement string) ([]store.AwardRecord, error)
	AwardAchievement(ctx context.Context, a store.Award, audit *store.AuditRecord) error
	CreateCup(ctx context.Context, name string, competitionID, startRoundID int64) (int64, error)
	AddCupRound(ctx context.Context, cupID int64, name string, order int) (int64, error)
	CupRound(ctx context.Context, id int64) (*league.CupRound, error)
	NextCupRound(ctx context.Context, r *league.CupRound) (*league.CupRound, error)
	AddCupMatchups(ctx context.Context, cupRoundID int64, roundNumber int, pairings []league.Pairing) error
	CupMatchups(ctx context.Context, cupRoundID int64) ([]store.CupMatchupRow, error)
	CupRoundPoints(ctx context.Context, cupRoundID int64) (map[int64]int, error)
	SetMatchupWinner(ctx context.Context, matchupID int64, winnerID *int64) error
	AssignMatchToCupRound(ctx context.Context, matchID int64, cupRoundID *int64) error
}

type Service struct {
	store Store
	log   logrus.FieldLogger
}

func New(s Store, log logrus.FieldLogger) *Service {
	return &Service{store: s, log: log}
}

// TitleSummary is how many league and cup titles a player holds.
type TitleSummary struct {
	PlayerID   int64  `json:"playerId"`
	Name       string `json:"name"`
	LeaguesWon int    `json:"leaguesWon"`
	CupsWon    int    `json:"cupsWon"`
}

// TitleSummary lists every player by name with their title counts. Players
// without titles appear with zeros.
func (s *Service) TitleSummary(ctx context.Context) ([]TitleSummary, error) {
	counts, err := s.store.TitleCounts(ctx)
	if err != nil {
		return nil, err
	}

	var out []TitleSummary
	index := make(map[int64]int)
	for _, c := range counts {
		i, ok := index[c.PlayerID]
		if !ok {
			i = len(out)
			index[c.PlayerID] = i
			out = append(out, TitleSummary{PlayerID: c.PlayerID, Name: c.PlayerName})
		}
		switch c.Achievement {
		case league.AchievementLeagueWinner:
			out[i].LeaguesWon = c.Count
		case league.AchievementCupWinner:
			out[i].CupsWon = c.Count
		}
	}
	return out, nil
}

// LeagueWinners lists league titles, most recent year first.
func (s *Service) LeagueWinners(ctx context.Context) ([]store.AwardRecord, error) {
	return s.store.AwardsByName(ctx, league.AchievementLeagueWinner)
}

// CupWinners lists cup titles, most recent year first.
func (s *Service) CupWinners(ctx context.Context) ([]store.AwardRecord, error) {
	return s.store.AwardsByName(ctx, league.AchievementCupWinner)
}

// AwardLeagueWinner records playerID as winner of the season portion and
// returns the league title. The award year is the season's first year.
func (s *Service) AwardLeagueWinner(ctx context.Context, adminID, playerID int64, season, portion string) (string, error) {
	title, year, err := league.LeagueTitle(season, portion)
	if err != nil {
		return "", err
	}
	err = s.store.AwardAchievement(ctx, store.Award{
		PlayerID:    playerID,
		Achievement: league.AchievementLeagueWinner,
		Description: leagueWinnerDescription,
		Year:        year,
	}, &store.AuditRecord{
		AdminID:        &adminID,
		Action:         "award league winner",
		TargetPlayerID: &playerID,
		Details:        title,
	})
	if err != nil {
		return "", fmt.Errorf("awarding %s: %w", title, err)
	}
	s.log.WithFields(logrus.Fields{"player": playerID, "title": title, "year": year}).Info("league winner recorded")
	return title, nil
}

// AwardCupWinner records playerID as winner of the cup decided in cupRoundID.
func (s *Service) AwardCupWinner(ctx context.Context, adminID, playerID, cupRoundID int64, year int) error {
	if _, err := s.store.CupRound(ctx, cupRoundID); err != nil {
		return err
	}
	err := s.store.AwardAchievement(ctx, store.Award{
		PlayerID:    playerID,
		Achievement: league.AchievementCupWinner,
		Description: cupWinnerDescription,
		Year:        year,
		CupRoundID:  &cupRoundID,
	}, &store.AuditRecord{
		AdminID:        &adminID,
		Action:         "award cup winner",
		TargetPlayerID: &playerID,
		Details:        fmt.Sprintf("cup round %d, %d", cupRoundID, year),
	})
	if err != nil {
		return fmt.Errorf("awarding cup winner: %w", err)
	}
	s.log.WithFields(logrus.Fields{"player": playerID, "cup_round": cupRoundID, "year": year}).Info("cup winner recorded")
	return nil
}

func (s *Service) CreateCup(ctx context.Context, name string, competitionID, startRoundID int64) (int64, error) {
	id, err := s.store.CreateCup(ctx, name, competitionID, startRoundID)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"cup": id, "name": name}).Info("cup created")
	return id, nil
}

func (s *Service) AddCupRound(ctx context.Context, cupID int64, name string, order int) (int64, error) {
	return s.store.AddCupRound(ctx, cupID, name, order)
}

// AssignMatchToCupRound counts a match towards a cup round; nil detaches it.
func (s *Service) AssignMatchToCupRound(ctx context.Context, matchID int64, cupRoundID *int64) error {
	if cupRoundID != nil {
		if _, err := s.store.CupRound(ctx, *cupRoundID); err != nil {
			return err
		}
	}
	return s.store.AssignMatchToCupRound(ctx, matchID, cupRoundID)
}

// DrawCupRound pairs players in the given order for a cup round that has no
// draw yet. An odd player out gets a bye. Each player may appear once.
func (s *Service) DrawCupRound(ctx context.Context, cupRoundID int64, playerIDs []int64, roundNumber int) ([]league.Pairing, error) {
	seen := make(map[int64]bool, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			return nil, fmt.Errorf("player %d: %w", id, league.ErrDuplicatePlayer)
		}
		seen[id] = true
	}
	if _, err := s.store.CupRound(ctx, cupRoundID); err != nil {
		return nil, err
	}
	existing, err := s.store.CupMatchups(ctx, cupRoundID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("cup round %d: %w", cupRoundID, league.ErrAlreadyDrawn)
	}

	pairings := league.PairPlayers(playerIDs)
	if err := s.store.AddCupMatchups(ctx, cupRoundID, roundNumber, pairings); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"cup_round": cupRoundID, "matchups": len(pairings)}).Info("cup round drawn")
	return pairings, nil
}

// Side is one player in a matchup, or the bye placeholder.
type Side struct {
	PlayerID *int64 `json:"playerId"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Bye      bool   `json:"bye,omitempty"`
}

// Matchup is a cup pairing with each side's points in that cup round.
type Matchup struct {
	ID       int64  `json:"id"`
	Player1  Side   `json:"player1"`
	Player2  Side   `json:"player2"`
	WinnerID *int64 `json:"winnerId"`
}

// CupMatchupsWithPoints returns a cup round's matchups. Points are summed
// over predictions on matches assigned to that cup round only. A missing
// opponent shows as the bye placeholder with 0 points.
func (s *Service) CupMatchupsWithPoints(ctx context.Context, cupRoundID int64) ([]Matchup, error) {
	rows, err := s.store.CupMatchups(ctx, cupRoundID)
	if err != nil {
		return nil, err
	}
	points, err := s.store.CupRoundPoints(ctx, cupRoundID)
	if err != nil {
		return nil, err
	}

	out := make([]Matchup, 0, len(rows))
	for _, r := range rows {
		p1 := r.Player1ID
		m := Matchup{
			ID:       r.ID,
			Player1:  Side{PlayerID: &p1, Name: r.Player1Name, Points: points[p1]},
			Player2:  Side{Name: ByeName, Bye: true},
			WinnerID: r.WinnerID,
		}
		if r.Player2ID != nil {
			p2 := *r.Player2ID
			m.Player2 = Side{PlayerID: &p2, Name: r.Player2Name, Points: points[p2]}
		}
		out = append(out, m)
	}
	return out, nil
}

// ResolveCupRound decides every open matchup of a cup round by points: the
// higher total goes through and a bye advances player one. Level matchups
// stay open for SetMatchupWinner. It returns the matchups after resolution.
func (s *Service) ResolveCupRound(ctx context.Context, cupRoundID int64) ([]Matchup, error) {
	matchups, err := s.CupMatchupsWithPoints(ctx, cupRoundID)
	if err != nil {
		return nil, err
	}

	decided, level := 0, 0
	for i, m := range matchups {
		if m.WinnerID != nil {
			continue
		}
		var winner *int64
		switch {
		case m.Player2.Bye:
			winner = m.Player1.PlayerID
		case m.Player1.Points > m.Player2.Points:
			winner = m.Player1.PlayerID
		case m.Player2.Points > m.Player1.Points:
			winner = m.Player2.PlayerID
		default:
			level++
			continue
		}
		if err := s.store.SetMatchupWinner(ctx, m.ID, winner); err != nil {
			return nil, err
		}
		matchups[i].WinnerID = winner
		decided++
	}
	s.log.WithFields(logrus.Fields{"cup_round": cupRoundID, "decided": decided, "level": level}).Info("cup round resolved")
	return matchups, nil
}

// SetMatchupWinner settles a matchup by hand; the winner must be one of its players.
func (s *Service) SetMatchupWinner(ctx context.Context, cupRoundID, matchupID, winnerID int64) error {
	rows, err := s.store.CupMatchups(ctx, cupRoundID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.ID != matchupID {
			continue
		}
		if winnerID != r.Player1ID && (r.Player2ID == nil || winnerID != *r.Player2ID) {
			return fmt.Errorf("player %d is not in matchup %d: %w", winnerID, matchupID, league.ErrNotFound)
		}
		return s.store.SetMatchupWinner(ctx, matchupID, &winnerID)
	}
	return fmt.Errorf("matchup %d in cup round %d: %w", matchupID, cupRoundID, league.ErrNotFound)
}

// AdvanceCupRound draws the winners of a fully decided cup round into the
// next round of the cup, keeping draw order. It returns the next round's id.
func (s *Service) AdvanceCupRound(ctx context.Context, cupRoundID int64) (int64, error) {
	current, err := s.store.CupRound(ctx, cupRoundID)
	if err != nil {
		return 0, err
	}
	rows, err := s.store.CupMatchups(ctx, cupRoundID)
	if err != nil {
		return 0, err
	}

	winners := make([]int64, 0, len(rows))
	roundNumber := 0
	for _, r := range rows {
		if r.WinnerID == nil {
			return 0, fmt.Errorf("matchup %d: %w", r.ID, league.ErrUndecided)
		}
		winners = append(winners, *r.WinnerID)
		roundNumber = max(roundNumber, r.RoundNumber)
	}
	if len(winners) == 0 {
		return 0, fmt.Errorf("cup round %d has no draw: %w", cupRoundID, league.ErrNotFound)
	}

	next, err := s.store.NextCupRound(ctx, current)
	if errors.Is(err, league.ErrNotFound) {
		return 0, fmt.Errorf("%q is the last round of cup %d: %w", current.Name, current.CupID, err)
	}
	if err != nil {
		return 0, err
	}
	if _, err := s.DrawCupRound(ctx, next.ID, winners, roundNumber+1); err != nil {
		return 0, err
	}
	return next.ID, nil
}
