package league

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSameTeam           = errors.New("home and away teams cannot be the same")
	ErrInvalidPrediction  = errors.New("invalid prediction format, use 'X-Y' e.g. '2-1'")
	ErrAlreadySubmitted   = errors.New("prediction already submitted for this match")
	ErrMatchLocked        = errors.New("match is already played or doesn't exist")
	ErrMissingScore       = errors.New("live and finished matches need both scores")
	ErrInvalidScore       = errors.New("scores cannot be negative")
	ErrMissingName        = errors.New("competition and team names are required")
	ErrInvalidRound       = errors.New("round number must be at least 1")
	ErrInvalidStatus      = errors.New("invalid match status")
	ErrInvalidRole        = errors.New("invalid role")
	ErrNameTaken          = errors.New("name already exists")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrForbidden          = errors.New("admin role required")
	ErrAlreadyAwarded     = errors.New("player already awarded this achievement for the selected year")
	ErrInvalidSeason      = errors.New("invalid season, use 'YYYY/YYYY'")
	ErrAlreadyDrawn       = errors.New("cup round already drawn")
	ErrUndecided          = errors.New("cup round has undecided matchups")
	ErrDuplicatePlayer    = errors.New("player drawn more than once")
)

// Role separates administrators from players taking part in the game.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Player is an account. PasswordHash is a bcrypt hash and never leaves the store layer in API responses.
type Player struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

type Competition struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Round is one stored row. Rows from different competitions that share a
// name form one gameweek, see GameweekKey.
type Round struct {
	ID            int64       `json:"id"`
	Name          GameweekKey `json:"name"`
	CompetitionID int64       `json:"competitionId"`
}

type MatchStatus string

const (
	StatusNotPlayed MatchStatus = "not played"
	StatusLive      MatchStatus = "live"
	StatusFinished  MatchStatus = "finished"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case StatusNotPlayed, StatusLive, StatusFinished:
		return true
	}
	return false
}

// Match represents a fixture between two teams.
type Match struct {
	ID          int64       `json:"id"`
	RoundID     int64       `json:"roundId"`
	RoundName   GameweekKey `json:"roundName"`
	Competition string      `json:"competition"`
	Home        string      `json:"home"`
	Away        string      `json:"away"`
	Kickoff     time.Time   `json:"kickoff"`
	Status      MatchStatus `json:"status"`
	HomeGoals   *int        `json:"homeGoals"`
	AwayGoals   *int        `json:"awayGoals"`
	CupRoundID  *int64      `json:"cupRoundId,omitempty"`
}

// Graded reports whether predictions on m can be scored.
func (m *Match) Graded() bool {
	return m.Status == StatusFinished && m.HomeGoals != nil && m.AwayGoals != nil
}

// Score is a home/away goal pair, actual or predicted.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type Prediction struct {
	ID            int64 `json:"id"`
	PlayerID      int64 `json:"playerId"`
	MatchID       int64 `json:"matchId"`
	Predicted     Score `json:"predicted"`
	PointsAwarded *int  `json:"pointsAwarded"`
}

// PlayerMatch keys a prediction by its uniqueness constraint.
type PlayerMatch struct {
	PlayerID int64
	MatchID  int64
}

type Cup struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CompetitionID int64  `json:"competitionId"`
	StartRoundID  int64  `json:"startRoundId"`
}

type CupRound struct {
	ID          int64  `json:"id"`
	CupID       int64  `json:"cupId"`
	Name        string `json:"name"`
	OrderNumber int    `json:"orderNumber"`
}

// CupMatchup pairs two players in a cup round. A nil Player2ID is a bye.
type CupMatchup struct {
	ID          int64  `json:"id"`
	CupRoundID  int64  `json:"cupRoundId"`
	Player1ID   int64  `json:"player1Id"`
	Player2ID   *int64 `json:"player2Id"`
	WinnerID    *int64 `json:"winnerId"`
	RoundNumber int    `json:"roundNumber"`
}

const (
	AchievementLeagueWinner = "League Winner"
	AchievementCupWinner    = "Cup Winner"
)

type Achievement struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AuditEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	AdminName      string    `json:"adminName"`
	Action         string    `json:"action"`
	TargetPlayerID *int64    `json:"targetPlayerId"`
}

// StandingEntry holds the leaderboard info for one player.
type StandingEntry struct {
	Rank     int    `json:"rank"`
	PlayerID int64  `json:"playerId"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}
