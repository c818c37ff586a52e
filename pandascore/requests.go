package pandascore

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultCacheTTL is the TTL of UseCache when none is given
const DefaultCacheTTL = 300 * time.Second

// foreverTTL stands in for "never expires"; entries still count toward capacity.
const foreverTTL = 100 * 365 * 24 * time.Hour

type cacheMode int

const (
	cacheModeUse cacheMode = iota
	cacheModeNone
	cacheModeForever
)

// CachePolicy controls whether a request reads and writes the response cache
type CachePolicy struct {
	mode cacheMode
	ttl  time.Duration
}

// NoCache bypasses the cache entirely
func NoCache() CachePolicy {
	return CachePolicy{mode: cacheModeNone}
}

// UseCache caches the response for ttl. A zero ttl uses the cache's default.
func UseCache(ttl time.Duration) CachePolicy {
	return CachePolicy{mode: cacheModeUse, ttl: ttl}
}

// CacheForever caches the response for the lifetime of the process
func CacheForever() CachePolicy {
	return CachePolicy{mode: cacheModeForever}
}

// Enabled reports whether the cache is consulted
func (p CachePolicy) Enabled() bool {
	return p.mode != cacheModeNone
}

// TTL resolves the entry lifetime, using fallback when the policy has none
func (p CachePolicy) TTL(fallback time.Duration) time.Duration {
	switch p.mode {
	case cacheModeForever:
		return foreverTTL
	case cacheModeNone:
		return 0
	}
	if p.ttl > 0 {
		return p.ttl
	}
	return fallback
}

// String describes the policy
func (p CachePolicy) String() string {
	switch p.mode {
	case cacheModeNone:
		return "no-cache"
	case cacheModeForever:
		return "forever"
	default:
		return "ttl=" + p.TTL(DefaultCacheTTL).String()
	}
}

// Request describes one API call. The zero Method is GET and the zero Cache
// policy is UseCache with the client's default TTL.
type Request struct {
	Path      string
	Method    string
	Params    Params
	Headers   http.Header
	Body      []byte
	Paginated bool
	Cache     CachePolicy
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// CacheKey returns the cache fingerprint of r
func (r Request) CacheKey() string {
	return CacheKey(r.Path, r.Params)
}

// CacheKey joins path and the sorted key=value pairs of params with "&".
// Keys and values are query-escaped and slices contribute one pair per item,
// matching the wire encoding. The result does not depend on parameter
// insertion order.
func CacheKey(path string, params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, path)
	for _, k := range keys {
		ek := url.QueryEscape(k)
		for _, v := range expandValue(params[k]) {
			parts = append(parts, ek+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// Scope narrows a listing to past, running or upcoming items
type Scope string

const (
	ScopeAll      Scope = ""
	ScopePast     Scope = "past"
	ScopeRunning  Scope = "running"
	ScopeUpcoming Scope = "upcoming"
)

// ParseScope maps "all", "past", "running" and "upcoming" to a Scope
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, true
	case "past":
		return ScopePast, true
	case "running", "live":
		return ScopeRunning, true
	case "upcoming":
		return ScopeUpcoming, true
	}
	return ScopeAll, false
}

const basePath = "/starcraft-2/"

func resourcePath(resource string, scope Scope) string {
	if scope == ScopeAll {
		return basePath + resource
	}
	return basePath + resource + "/" + string(scope)
}

// listing holds the parameters every list request shares
type listing struct {
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter
}

func (l listing) query(extra map[string]any) QueryParameters {
	page := NewPagination(l.Page, l.PageSize)
	if l.PageSize == 0 {
		page.Size = DefaultPageSize
	}

	filters := make(map[string]any, len(l.Filters)+len(extra))
	for k, v := range l.Filters {
		filters[k] = v
	}
	for k, v := range extra {
		filters[k] = v
	}

	return QueryParameters{
		Pagination: &page,
		Sort:       l.Sort,
		Filters:    filters,
		Search:     l.Search,
		Ranges:     l.Ranges,
	}
}

func listRequest(resource string, scope Scope, q QueryParameters) Request {
	return Request{
		Path:      resourcePath(resource, scope),
		Method:    http.MethodGet,
		Params:    q.Params(),
		Paginated: true,
		Cache:     UseCache(DefaultCacheTTL),
	}
}

// MatchesRequest lists matches
type MatchesRequest struct {
	Scope    Scope
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter

	OpponentID   int
	TournamentID int
	SerieID      int
	LeagueID     int
}

// Request converts r into a Request
func (r MatchesRequest) Request() Request {
	extra := map[string]any{}
	setID(extra, "opponent_id", r.OpponentID)
	setID(extra, "tournament_id", r.TournamentID)
	setID(extra, "serie_id", r.SerieID)
	setID(extra, "league_id", r.LeagueID)
	l := listing{r.Page, r.PageSize, r.Sort, r.Filters, r.Search, r.Ranges}
	return listRequest("matches", r.Scope, l.query(extra))
}

// PastMatches lists finished matches, most recent first
func PastMatches() MatchesRequest {
	return MatchesRequest{Scope: ScopePast, Sort: []SortParameter{SortByDesc("end_at")}}
}

// RunningMatches lists live matches
func RunningMatches() MatchesRequest {
	return MatchesRequest{Scope: ScopeRunning}
}

// UpcomingMatches lists scheduled matches, soonest first
func UpcomingMatches() MatchesRequest {
	return MatchesRequest{Scope: ScopeUpcoming, Sort: []SortParameter{SortBy("begin_at")}}
}

// PlayersRequest lists players
type PlayersRequest struct {
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter

	Nationality string
	TeamID      int
}

// Request converts r into a Request
func (r PlayersRequest) Request() Request {
	extra := map[string]any{}
	if r.Nationality != "" {
		extra["nationality"] = r.Nationality
	}
	setID(extra, "current_team_id", r.TeamID)
	l := listing{r.Page, r.PageSize, r.Sort, r.Filters, r.Search, r.Ranges}
	return listRequest("players", ScopeAll, l.query(extra))
}

// SearchPlayers searches players by name
func SearchPlayers(name string) PlayersRequest {
	return PlayersRequest{Search: map[string]string{"name": name}}
}

// PlayersByNationality filters players by ISO country code
func PlayersByNationality(nationality string) PlayersRequest {
	return PlayersRequest{Nationality: nationality}
}

// PlayersByTeam filters players by current team
func PlayersByTeam(teamID int) PlayersRequest {
	return PlayersRequest{TeamID: teamID}
}

// TeamsRequest lists teams
type TeamsRequest struct {
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter

	Location string
}

// Request converts r into a Request
func (r TeamsRequest) Request() Request {
	extra := map[string]any{}
	if r.Location != "" {
		extra["location"] = r.Location
	}
	l := listing{r.Page, r.PageSize, r.Sort, r.Filters, r.Search, r.Ranges}
	return listRequest("teams", ScopeAll, l.query(extra))
}

// SearchTeams searches teams by name
func SearchTeams(name string) TeamsRequest {
	return TeamsRequest{Search: map[string]string{"name": name}}
}

// TeamsByLocation filters teams by location code
func TeamsByLocation(location string) TeamsRequest {
	return TeamsRequest{Location: location}
}

// TeamsAlphabetical sorts teams by name
func TeamsAlphabetical() TeamsRequest {
	return TeamsRequest{Sort: []SortParameter{SortBy("name")}}
}

// SeriesRequest lists series
type SeriesRequest struct {
	Scope    Scope
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter

	LeagueID int
	Year     int
}

// Request converts r into a Request
func (r SeriesRequest) Request() Request {
	extra := map[string]any{}
	setID(extra, "league_id", r.LeagueID)
	setID(extra, "year", r.Year)
	l := listing{r.Page, r.PageSize, r.Sort, r.Filters, r.Search, r.Ranges}
	return listRequest("series", r.Scope, l.query(extra))
}

// PastSeries lists finished series, most recent first
func PastSeries() SeriesRequest {
	return SeriesRequest{Scope: ScopePast, Sort: []SortParameter{SortByDesc("end_at")}}
}

// RunningSeries lists series in progress
func RunningSeries() SeriesRequest {
	return SeriesRequest{Scope: ScopeRunning}
}

// UpcomingSeries lists scheduled series, soonest first
func UpcomingSeries() SeriesRequest {
	return SeriesRequest{Scope: ScopeUpcoming, Sort: []SortParameter{SortBy("begin_at")}}
}

// SeriesByYear filters series by year
func SeriesByYear(year int) SeriesRequest {
	return SeriesRequest{Year: year}
}

// TournamentsRequest lists tournaments
type TournamentsRequest struct {
	Scope    Scope
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
	Ranges   map[string]RangeParameter

	SerieID      int
	LeagueID     int
	Tier         string
	HasPrizepool bool
}

// Request converts r into a Request
func (r TournamentsRequest) Request() Request {
	extra := map[string]any{}
	setID(extra, "serie_id", r.SerieID)
	setID(extra, "league_id", r.LeagueID)
	if r.Tier != "" {
		extra["tier"] = r.Tier
	}
	if r.HasPrizepool {
		extra["has_prizepool"] = true
	}
	l := listing{r.Page, r.PageSize, r.Sort, r.Filters, r.Search, r.Ranges}
	return listRequest("tournaments", r.Scope, l.query(extra))
}

// PastTournaments lists finished tournaments, most recent first
func PastTournaments() TournamentsRequest {
	return TournamentsRequest{Scope: ScopePast, Sort: []SortParameter{SortByDesc("end_at")}}
}

// RunningTournaments lists tournaments in progress
func RunningTournaments() TournamentsRequest {
	return TournamentsRequest{Scope: ScopeRunning}
}

// UpcomingTournaments lists scheduled tournaments, soonest first
func UpcomingTournaments() TournamentsRequest {
	return TournamentsRequest{Scope: ScopeUpcoming, Sort: []SortParameter{SortBy("begin_at")}}
}

// TournamentsWithPrizepools lists tournaments that have a prizepool
func TournamentsWithPrizepools() TournamentsRequest {
	return TournamentsRequest{HasPrizepool: true}
}

// LeaguesRequest lists leagues
type LeaguesRequest struct {
	Page     int
	PageSize int
	Sort     []SortParameter
	Filters  map[string]any
	Search   map[string]string
}

// Request converts r into a Request
func (r LeaguesRequest) Request() Request {
	l := listing{Page: r.Page, PageSize: r.PageSize, Sort: r.Sort, Filters: r.Filters, Search: r.Search}
	return listRequest("leagues", ScopeAll, l.query(nil))
}

func setID(m map[string]any, key string, id int) {
	if id != 0 {
		m[key] = id
	}
}
