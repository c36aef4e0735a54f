package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utakatalp/prediction-league/internal/accounts"
	"github.com/utakatalp/prediction-league/internal/fixtures"
	"github.com/utakatalp/prediction-league/internal/honours"
	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/scoring"
	"github.com/utakatalp/prediction-league/internal/standings"
	"github.com/utakatalp/prediction-league/internal/store"
)

const adminCode = "letmein"

func newTestServer(t *testing.T) (*httptest.Server, *test.Hook) {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	log, hook := test.NewNullLogger()
	acc := accounts.New(s, adminCode, log)
	acc.SetHashCost(bcrypt.MinCost)
	srv := New(Services{
		Accounts:  acc,
		Scoring:   scoring.New(s, log),
		Standings: standings.New(s, log),
		Honours:   honours.New(s, log),
		Fixtures:  fixtures.New(s, log),
	}, []byte("0123456789abcdef0123456789abcdef"), false, log)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, hook
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the response into out when given.
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *client) signup(name, code string) league.Player {
	c.t.Helper()
	var p league.Player
	status := c.do(http.MethodPost, "/api/signup", credentialsRequest{Name: name, Password: "pw", AdminCode: code}, &p)
	require.Equal(c.t, http.StatusCreated, status)
	return p
}

func TestAuthFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	c := newClient(t, ts)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil, nil))

	amy := c.signup("amy", "")
	assert.Equal(t, league.RoleUser, amy.Role)

	var me league.Player
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", nil, &me))
	assert.Equal(t, "amy", me.Name)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil, nil))

	var errBody map[string]string
	status := c.do(http.MethodPost, "/api/login", credentialsRequest{Name: "amy", Password: "nope"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, league.ErrInvalidCredentials.Error(), errBody["error"])

	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/login", credentialsRequest{Name: "amy", Password: "pw"}, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", nil, nil))

	other := newClient(t, ts)
	assert.Equal(t, http.StatusConflict, other.do(http.MethodPost, "/api/signup", credentialsRequest{Name: "amy", Password: "x"}, nil))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts, _ := newTestServer(t)
	anon := newClient(t, ts)
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/admin/players", nil, nil))

	user := newClient(t, ts)
	user.signup("amy", "wrong code")
	assert.Equal(t, http.StatusForbidden, user.do(http.MethodGet, "/api/admin/players", nil, nil))

	admin := newClient(t, ts)
	admin.signup("boss", adminCode)
	var players []league.Player
	require.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/admin/players?search=a", nil, &players))
	require.Len(t, players, 1)
	assert.Equal(t, "amy", players[0].Name)

	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodDelete, "/api/admin/matches/77", nil, nil))
}

func TestPredictionRound(t *testing.T) {
	ts, hook := newTestServer(t)
	admin := newClient(t, ts)
	admin.signup("boss", adminCode)
	user := newClient(t, ts)
	amy := user.signup("amy", "")

	var created map[string]any
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/matches", matchRequest{
		Competition: "Premier League", Home: "A", Away: "B", Round: 1,
	}, &created))
	matchID := int64(created["id"].(float64))

	var bad map[string]string
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/api/admin/matches", matchRequest{
		Competition: "Premier League", Home: "A", Away: "a", Round: 1,
	}, &bad))
	assert.Equal(t, league.ErrSameTeam.Error(), bad["error"])

	var results []scoring.ItemResult
	require.Equal(t, http.StatusOK, user.do(http.MethodPost, "/api/predictions", []scoring.PredictionInput{
		{MatchID: matchID, Value: "2-1"},
		{MatchID: matchID, Value: "2-1-3"},
	}, &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)

	assert.Equal(t, http.StatusConflict,
		user.do(http.MethodPost, "/api/predictions/"+jsonID(matchID), predictionRequest{Value: "0-0"}, nil))

	var graded map[string]int
	require.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/api/admin/rounds/1/results", roundResultsRequest{
		Results: []resultEntry{{MatchID: matchID, Home: 2, Away: 1}},
	}, &graded))
	assert.Equal(t, 1, graded["graded"])

	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/api/admin/rounds/2/results", roundResultsRequest{
		Results: []resultEntry{{MatchID: matchID, Home: 0, Away: 0}},
	}, nil), "match is not in round 2")

	var board []league.StandingEntry
	require.Equal(t, http.StatusOK, user.do(http.MethodGet, "/api/leaderboard", nil, &board))
	assert.Equal(t, []league.StandingEntry{{Rank: 1, PlayerID: amy.ID, Name: "amy", Points: 3}}, board)

	assert.Equal(t, http.StatusConflict,
		user.do(http.MethodPost, "/api/predictions/"+jsonID(matchID), predictionRequest{Value: "0-0"}, nil))

	var view struct {
		Round       league.GameweekKey `json:"round"`
		Matches     []league.Match     `json:"matches"`
		Results     map[string]string  `json:"results"`
		Predictions []standings.Cell   `json:"predictions"`
	}
	require.Equal(t, http.StatusOK, user.do(http.MethodGet, "/api/rounds/1", nil, &view))
	assert.Equal(t, league.RoundName(1), view.Round)
	assert.Equal(t, "2-1", view.Results[jsonID(matchID)])
	require.Len(t, view.Predictions, 1)
	assert.Equal(t, "2-1", view.Predictions[0].Prediction)

	var empty struct {
		Matches []league.Match `json:"matches"`
	}
	require.Equal(t, http.StatusOK, user.do(http.MethodGet, "/api/rounds/999", nil, &empty))
	assert.Empty(t, empty.Matches)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "request" && e.Data["path"] == "/api/leaderboard" {
			found = e.Data["request_id"] != ""
		}
	}
	assert.True(t, found, "requests are logged with an id")
}

func TestCupRoutes(t *testing.T) {
	ts, _ := newTestServer(t)
	admin := newClient(t, ts)
	admin.signup("boss", adminCode)
	var ids []int64
	for _, name := range []string{"p1", "p2", "p3"} {
		var p league.Player
		require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/players", playerRequest{Name: name, Password: "pw"}, &p))
		ids = append(ids, p.ID)
	}

	var created map[string]any
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/matches", matchRequest{
		Competition: "Premier League", Home: "A", Away: "B", Round: 1,
	}, &created))

	var cup, round map[string]int64
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/cups", cupRequest{Name: "Cup", CompetitionID: 1, StartRoundID: 1}, &cup))
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/cups/"+jsonID(cup["id"])+"/rounds", cupRoundRequest{Name: "Final", Order: 1}, &round))

	var matchups []honours.Matchup
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/cups/rounds/"+jsonID(round["id"])+"/draw", drawRequest{PlayerIDs: ids}, &matchups))
	require.Len(t, matchups, 2)
	assert.True(t, matchups[1].Player2.Bye)
	assert.Equal(t, honours.ByeName, matchups[1].Player2.Name)

	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/api/admin/cups/rounds/"+jsonID(round["id"])+"/draw", drawRequest{PlayerIDs: ids}, nil))

	var title map[string]string
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/admin/awards/league", leagueAwardRequest{PlayerID: ids[0], Season: "2024/2025", Portion: "Full"}, &title))
	assert.Equal(t, "Premier Prediction League 2024/2025 Full", title["title"])
	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/api/admin/awards/league", leagueAwardRequest{PlayerID: ids[0], Season: "2024/2025", Portion: "Full"}, nil))

	var summary []honours.TitleSummary
	require.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/titles", nil, &summary))
	require.Len(t, summary, 4)
}

func TestWriteJSON_EncodeFailureLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := &Server{log: log}
	h := s.requestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "encoding response", entry.Message)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Error(t, entry.Data[logrus.ErrorKey].(error))
	assert.NotEmpty(t, entry.Data["request_id"])
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
