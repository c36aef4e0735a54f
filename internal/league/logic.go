// internal/league/logic.go
package league

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Outcome is the coarse result of a match, independent of the exact score.
type Outcome int

const (
	AwayWin Outcome = -1
	Draw    Outcome = 0
	HomeWin Outcome = 1
)

func OutcomeOf(s Score) Outcome {
	switch {
	case s.Home > s.Away:
		return HomeWin
	case s.Home < s.Away:
		return AwayWin
	default:
		return Draw
	}
}

const (
	ExactScorePoints = 3
	OutcomePoints    = 1
)

// Points grades a prediction against the actual result:
// exact score 3, same outcome 1, otherwise 0.
func Points(predicted, actual Score) int {
	switch {
	case predicted == actual:
		return ExactScorePoints
	case OutcomeOf(predicted) == OutcomeOf(actual):
		return OutcomePoints
	default:
		return 0
	}
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

var predictionPattern = regexp.MustCompile(`^\d+-\d+$`)

// ParsePrediction reads the "{home}-{away}" wire format. Surrounding
// whitespace is not accepted.
func ParsePrediction(value string) (Score, error) {
	if !predictionPattern.MatchString(value) {
		return Score{}, ErrInvalidPrediction
	}
	home, away, _ := strings.Cut(value, "-")
	h, err := strconv.Atoi(home)
	if err != nil {
		return Score{}, fmt.Errorf("parsing home score: %w", ErrInvalidPrediction)
	}
	a, err := strconv.Atoi(away)
	if err != nil {
		return Score{}, fmt.Errorf("parsing away score: %w", ErrInvalidPrediction)
	}
	return Score{Home: h, Away: a}, nil
}

// ResultString formats a stored result, "-" when either side is missing.
func ResultString(home, away *int) string {
	if home == nil || away == nil {
		return "-"
	}
	return Score{Home: *home, Away: *away}.String()
}

func (m *Match) ScoreLine() string {
	return fmt.Sprintf("%s %s %s", m.Home, ResultString(m.HomeGoals, m.AwayGoals), m.Away)
}

// GameweekKey is the logical identity of a round. Several stored rounds,
// one per competition, share a key and are read as one gameweek.
type GameweekKey string

const roundPrefix = "Round "

// RoundName returns the key for gameweek n.
func RoundName(n int) GameweekKey {
	return GameweekKey(fmt.Sprintf("%s%d", roundPrefix, n))
}

// Number parses the gameweek number back out of "Round {n}".
func (k GameweekKey) Number() (int, bool) {
	rest, ok := strings.CutPrefix(string(k), roundPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// SortGameweeks orders keys by gameweek number; unparsable keys go last by name.
func SortGameweeks(keys []GameweekKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := keys[i].Number()
		b, bok := keys[j].Number()
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}

// RankStandings sorts by points desc, name asc and assigns minimum ranks:
// tied players share the best rank and the next rank skips the tie.
func RankStandings(entries []StandingEntry) []StandingEntry {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.Name < b.Name
	})
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// Pairing is one single-elimination draw slot. Away is nil for a bye.
type Pairing struct {
	Home int64
	Away *int64
}

// PairPlayers draws players in order, first against second and so on.
// With an odd count the last player gets a bye.
func PairPlayers(playerIDs []int64) []Pairing {
	pairings := make([]Pairing, 0, (len(playerIDs)+1)/2)
	for i := 0; i < len(playerIDs); i += 2 {
		p := Pairing{Home: playerIDs[i]}
		if i+1 < len(playerIDs) {
			away := playerIDs[i+1]
			p.Away = &away
		}
		pairings = append(pairings, p)
	}
	return pairings
}

var seasonPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// LeagueTitle builds the league name for a season ("2024/2025") and portion
// ("first half", "second half" or "full") and returns the season's first year.
func LeagueTitle(season, portion string) (string, int, error) {
	season = strings.TrimSpace(season)
	m := seasonPattern.FindStringSubmatch(season)
	if m == nil {
		return "", 0, ErrInvalidSeason
	}
	year, _ := strconv.Atoi(m[1])

	var label string
	switch strings.ToLower(strings.TrimSpace(portion)) {
	case "first half":
		label = "First Half"
	case "second half":
		label = "Second Half"
	case "full":
		label = "Full"
	default:
		return "", 0, fmt.Errorf("portion %q: must be first half, second half or full", portion)
	}
	return fmt.Sprintf("Premier Prediction League %s %s", season, label), year, nil
}
