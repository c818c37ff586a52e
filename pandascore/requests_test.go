package pandascore

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := Params{}
	a["page[size]"] = 50
	a["filter[opponent_id]"] = 12
	a["sort"] = "-end_at"

	b := Params{}
	b["sort"] = "-end_at"
	b["page[size]"] = 50
	b["filter[opponent_id]"] = 12

	assert.Equal(t, CacheKey("/starcraft-2/matches", a), CacheKey("/starcraft-2/matches", b))
	assert.Equal(t, "/starcraft-2/matches&filter%5Bopponent_id%5D=12&page%5Bsize%5D=50&sort=-end_at", CacheKey("/starcraft-2/matches", a))
}

func TestCacheKeyEscapesSeparators(t *testing.T) {
	injected := SearchPlayers("x&search[team]=y").Request()
	split := PlayersRequest{Search: map[string]string{"name": "x", "team": "y"}}.Request()

	assert.NotEqual(t, injected.CacheKey(), split.CacheKey())
	assert.Contains(t, injected.CacheKey(), "search%5Bname%5D=x%26search%5Bteam%5D%3Dy")
}

func TestCacheKeySlicesExpandPerItem(t *testing.T) {
	list := CacheKey("/starcraft-2/tournaments", Params{"filter[id]": []string{"1", "2"}})
	joined := CacheKey("/starcraft-2/tournaments", Params{"filter[id]": "1,2"})

	assert.NotEqual(t, list, joined)
	assert.Equal(t, "/starcraft-2/tournaments&filter%5Bid%5D=1&filter%5Bid%5D=2", list)
	assert.Equal(t, "/starcraft-2/tournaments&filter%5Bid%5D=1%2C2", joined)
}

func TestCacheKeyDistinguishesParams(t *testing.T) {
	assert.NotEqual(t,
		CacheKey("/starcraft-2/players", Params{"page[number]": 1}),
		CacheKey("/starcraft-2/players", Params{"page[number]": 2}),
	)
	assert.Equal(t, "/starcraft-2/players", CacheKey("/starcraft-2/players", nil))
}

func TestCachePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  CachePolicy
		enabled bool
		ttl     time.Duration
	}{
		{"no cache", NoCache(), false, 0},
		{"explicit ttl", UseCache(time.Minute), true, time.Minute},
		{"fallback ttl", UseCache(0), true, 42 * time.Second},
		{"zero value uses cache", CachePolicy{}, true, 42 * time.Second},
		{"forever", CacheForever(), true, foreverTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enabled, tt.policy.Enabled())
			assert.Equal(t, tt.ttl, tt.policy.TTL(42*time.Second))
		})
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want Scope
		ok   bool
	}{
		{"", ScopeAll, true},
		{"all", ScopeAll, true},
		{"Past", ScopePast, true},
		{"live", ScopeRunning, true},
		{"running", ScopeRunning, true},
		{"upcoming", ScopeUpcoming, true},
		{"soon", ScopeAll, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseScope(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesRequest(t *testing.T) {
	req := PastMatches()
	req.OpponentID = 7
	req.PageSize = 10

	r := req.Request()
	assert.Equal(t, "/starcraft-2/matches/past", r.Path)
	assert.Equal(t, http.MethodGet, r.method())
	assert.True(t, r.Paginated)
	assert.True(t, r.Cache.Enabled())
	assert.Equal(t, "-end_at", r.Params["sort"])
	assert.Equal(t, 7, r.Params["filter[opponent_id]"])
	assert.Equal(t, 10, r.Params["page[size]"])
	assert.Equal(t, 1, r.Params["page[number]"])
	assert.NotContains(t, r.Params, "filter[tournament_id]")
}

func TestRequestDefaults(t *testing.T) {
	r := MatchesRequest{}.Request()
	assert.Equal(t, "/starcraft-2/matches", r.Path)
	assert.Equal(t, DefaultPageSize, r.Params["page[size]"])

	r = MatchesRequest{PageSize: 500}.Request()
	assert.Equal(t, MaxPageSize, r.Params["page[size]"])
}

func TestRequestFactories(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		path   string
		params Params
	}{
		{"running matches", RunningMatches().Request(), "/starcraft-2/matches/running", nil},
		{"upcoming matches", UpcomingMatches().Request(), "/starcraft-2/matches/upcoming", Params{"sort": "begin_at"}},
		{"search players", SearchPlayers("Maru").Request(), "/starcraft-2/players", Params{"search[name]": "Maru"}},
		{"players by nationality", PlayersByNationality("KR").Request(), "/starcraft-2/players", Params{"filter[nationality]": "KR"}},
		{"players by team", PlayersByTeam(9).Request(), "/starcraft-2/players", Params{"filter[current_team_id]": 9}},
		{"search teams", SearchTeams("Liquid").Request(), "/starcraft-2/teams", Params{"search[name]": "Liquid"}},
		{"teams by location", TeamsByLocation("DE").Request(), "/starcraft-2/teams", Params{"filter[location]": "DE"}},
		{"teams alphabetical", TeamsAlphabetical().Request(), "/starcraft-2/teams", Params{"sort": "name"}},
		{"past series", PastSeries().Request(), "/starcraft-2/series/past", Params{"sort": "-end_at"}},
		{"running series", RunningSeries().Request(), "/starcraft-2/series/running", nil},
		{"upcoming series", UpcomingSeries().Request(), "/starcraft-2/series/upcoming", Params{"sort": "begin_at"}},
		{"series by year", SeriesByYear(2024).Request(), "/starcraft-2/series", Params{"filter[year]": 2024}},
		{"past tournaments", PastTournaments().Request(), "/starcraft-2/tournaments/past", Params{"sort": "-end_at"}},
		{"running tournaments", RunningTournaments().Request(), "/starcraft-2/tournaments/running", nil},
		{"upcoming tournaments", UpcomingTournaments().Request(), "/starcraft-2/tournaments/upcoming", Params{"sort": "begin_at"}},
		{"prizepool tournaments", TournamentsWithPrizepools().Request(), "/starcraft-2/tournaments", Params{"filter[has_prizepool]": true}},
		{"leagues", LeaguesRequest{}.Request(), "/starcraft-2/leagues", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.path, tt.req.Path)
			for k, v := range tt.params {
				require.Contains(t, tt.req.Params, k)
				assert.Equal(t, v, tt.req.Params[k])
			}
		})
	}
}
