package league

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoints(t *testing.T) {
	cases := []struct {
		name      string
		predicted Score
		actual    Score
		want      int
	}{
		{"exact home win", Score{2, 1}, Score{2, 1}, 3},
		{"exact draw", Score{0, 0}, Score{0, 0}, 3},
		{"home win outcome", Score{2, 1}, Score{3, 0}, 1},
		{"draw outcome", Score{1, 1}, Score{2, 2}, 1},
		{"away win outcome", Score{0, 1}, Score{1, 4}, 1},
		{"wrong direction", Score{2, 0}, Score{0, 2}, 0},
		{"predicted draw got win", Score{1, 1}, Score{2, 1}, 0},
		{"reversed exact", Score{1, 2}, Score{2, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Points(tc.predicted, tc.actual))
		})
	}
}

// Exhaustive check over a small grid against the sign rule.
func TestPoints_SignRule(t *testing.T) {
	sign := func(x int) int {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	}
	for ph := 0; ph <= 4; ph++ {
		for pa := 0; pa <= 4; pa++ {
			for ah := 0; ah <= 4; ah++ {
				for aa := 0; aa <= 4; aa++ {
					got := Points(Score{ph, pa}, Score{ah, aa})
					switch {
					case ph == ah && pa == aa:
						assert.Equal(t, 3, got)
					case sign(ph-pa) == sign(ah-aa):
						assert.Equal(t, 1, got)
					default:
						assert.Equal(t, 0, got)
					}
				}
			}
		}
	}
}

func TestParsePrediction(t *testing.T) {
	s, err := ParsePrediction("2-1")
	require.NoError(t, err)
	assert.Equal(t, Score{Home: 2, Away: 1}, s)

	s, err = ParsePrediction("10-0")
	require.NoError(t, err)
	assert.Equal(t, Score{Home: 10, Away: 0}, s)

	for _, bad := range []string{"2-1-3", "two-one", "-1-2", "2:1", "", "2-", "-2", "2 - 1", " 2-1 ", "2-1\n", "99999999999999999999-1"} {
		_, err := ParsePrediction(bad)
		assert.ErrorIs(t, err, ErrInvalidPrediction, bad)
	}
}

func TestGameweekKey(t *testing.T) {
	k := RoundName(7)
	assert.Equal(t, GameweekKey("Round 7"), k)
	n, ok := k.Number()
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	for _, bad := range []GameweekKey{"Final", "Round x", "Round 0", "round 3"} {
		_, ok := bad.Number()
		assert.False(t, ok, string(bad))
	}

	keys := []GameweekKey{"Round 10", "Final", "Round 2", "Round 1"}
	SortGameweeks(keys)
	assert.Equal(t, []GameweekKey{"Round 1", "Round 2", "Round 10", "Final"}, keys)
}

func TestRankStandings(t *testing.T) {
	entries := RankStandings([]StandingEntry{
		{Name: "dan", Points: 4},
		{Name: "amy", Points: 9},
		{Name: "cat", Points: 7},
		{Name: "bob", Points: 7},
		{Name: "eve", Points: 0},
	})
	names := make([]string, len(entries))
	ranks := make([]int, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		ranks[i] = e.Rank
	}
	assert.Equal(t, []string{"amy", "bob", "cat", "dan", "eve"}, names)
	assert.Equal(t, []int{1, 2, 2, 4, 5}, ranks)
}

func TestPairPlayers(t *testing.T) {
	pairs := PairPlayers([]int64{1, 2, 3})
	require.Len(t, pairs, 2)
	assert.Equal(t, int64(1), pairs[0].Home)
	require.NotNil(t, pairs[0].Away)
	assert.Equal(t, int64(2), *pairs[0].Away)
	assert.Equal(t, int64(3), pairs[1].Home)
	assert.Nil(t, pairs[1].Away)

	assert.Empty(t, PairPlayers(nil))
}

func TestLeagueTitle(t *testing.T) {
	name, year, err := LeagueTitle("2024/2025", "First Half")
	require.NoError(t, err)
	assert.Equal(t, "Premier Prediction League 2024/2025 First Half", name)
	assert.Equal(t, 2024, year)

	_, _, err = LeagueTitle("2024", "full")
	assert.ErrorIs(t, err, ErrInvalidSeason)

	_, _, err = LeagueTitle("2024/2025", "third half")
	assert.Error(t, err)
}

func TestMatchHelpers(t *testing.T) {
	two, one := 2, 1
	m := &Match{Home: "Arsenal", Away: "Chelsea", Status: StatusLive, HomeGoals: &two, AwayGoals: &one}
	assert.Equal(t, "Arsenal 2-1 Chelsea", m.ScoreLine())
	assert.False(t, m.Graded())
	m.Status = StatusFinished
	assert.True(t, m.Graded())
	assert.Equal(t, "-", ResultString(nil, &one))
}
