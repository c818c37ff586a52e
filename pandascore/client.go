package pandascore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/s0up4200/sc2kit/cache"
	"github.com/s0up4200/sc2kit/retry"
)

// AuthMethod selects how the API token is sent
type AuthMethod int

const (
	// AuthBearer sends "Authorization: Bearer <token>"
	AuthBearer AuthMethod = iota
	// AuthQuery sends the token as the "token" query parameter
	AuthQuery
)

// ParseAuthMethod maps "bearer" and "query" to an AuthMethod
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bearer":
		return AuthBearer, nil
	case "query":
		return AuthQuery, nil
	default:
		return AuthBearer, fmt.Errorf("unknown auth method: %s", s)
	}
}

// String returns the configuration name of the method
func (a AuthMethod) String() string {
	if a == AuthQuery {
		return "query"
	}
	return "bearer"
}

// CacheConfig sizes the response cache
type CacheConfig struct {
	MaxSize    int
	DefaultTTL time.Duration
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	authMethod   AuthMethod
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	retry        retry.Config
	cache        CacheConfig
	cacheEnabled bool
	rateLimit    float64
	userAgent    string
	retryOpts    []retry.Option
}

// WithAuthMethod selects bearer or query-parameter auth
func WithAuthMethod(method AuthMethod) Option {
	return func(o *clientOptions) {
		o.authMethod = method
	}
}

// WithBaseURL points the client at another API root
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRetryConfig sets the retry policy
func WithRetryConfig(cfg retry.Config, opts ...retry.Option) Option {
	return func(o *clientOptions) {
		o.retry = cfg
		o.retryOpts = opts
	}
}

// WithCacheConfig sizes the response cache
func WithCacheConfig(cfg CacheConfig) Option {
	return func(o *clientOptions) {
		o.cache = cfg
		o.cacheEnabled = true
	}
}

// WithoutCache disables the response cache
func WithoutCache() Option {
	return func(o *clientOptions) {
		o.cacheEnabled = false
	}
}

// WithRateLimit paces outgoing requests to perSecond. Zero disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(o *clientOptions) {
		if perSecond >= 0 {
			o.rateLimit = perSecond
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// Client is the PandaScore StarCraft II API client. It checks the response
// cache, injects authentication and retries transient failures. It is safe
// for concurrent use.
type Client struct {
	network    *NetworkClient
	cache      *cache.Cache
	retry      *retry.Handler
	logger     zerolog.Logger
	authMethod AuthMethod
	token      string
	group      singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*flight
}

// flight is the detached context of one collapsed fetch and the number of
// callers still waiting on it
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewClient creates a client authenticated with token
func NewClient(token string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("pandascore API token is required")
	}

	o := clientOptions{
		authMethod:   AuthBearer,
		baseURL:      DefaultBaseURL,
		timeout:      30 * time.Second,
		retry:        retry.Default(),
		cache:        CacheConfig{MaxSize: cache.DefaultMaxSize, DefaultTTL: cache.DefaultTTL},
		cacheEnabled: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}

	headers := http.Header{}
	if o.authMethod == AuthBearer {
		headers.Set("Authorization", "Bearer "+token)
	}
	if o.userAgent != "" {
		headers.Set("User-Agent", o.userAgent)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	var limiter *rate.Limiter
	if o.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.rateLimit), 1)
	}

	network, err := NewNetworkClient(o.baseURL, httpClient, headers, limiter, logger.With().Str("component", "network").Logger())
	if err != nil {
		return nil, err
	}

	c := &Client{
		network:    network,
		retry:      retry.New(o.retry, logger.With().Str("component", "retry").Logger(), o.retryOpts...),
		logger:     logger,
		authMethod: o.authMethod,
		token:      token,
	}

	if o.cacheEnabled {
		c.cache = cache.New(logger.With().Str("component", "cache").Logger(),
			cache.WithMaxSize(o.cache.MaxSize),
			cache.WithDefaultTTL(o.cache.DefaultTTL),
		)
	}

	return c, nil
}

// response is a raw successful response shared between collapsed callers
type response struct {
	headers http.Header
	body    []byte
}

// Execute performs req and decodes the JSON response into v
func (c *Client) Execute(ctx context.Context, req Request, v any) error {
	_, err := c.ExecuteWithHeaders(ctx, req, v)
	return err
}

// ExecuteWithHeaders performs req, decodes the response into v and returns
// the response headers. Cached responses are returned without touching the
// network. Identical concurrent cacheable requests share one network call.
func (c *Client) ExecuteWithHeaders(ctx context.Context, req Request, v any) (http.Header, error) {
	key := req.CacheKey()
	useCache := c.cache != nil && req.Cache.Enabled()

	log := c.logger.With().
		Str("request_id", uuid.NewString()).
		Str("path", req.Path).
		Logger()

	if useCache {
		if headers, ok := c.fromCache(key, v, log); ok {
			log.Debug().Str("cache_key", key).Msg("Served from cache")
			return headers, nil
		}
	}

	var resp response
	var err error
	if useCache && req.method() == http.MethodGet {
		resp, err = c.shared(ctx, key, req, log)
	} else {
		resp, err = c.fetch(ctx, req, log)
	}
	if err != nil {
		return nil, err
	}

	if v != nil {
		if err := decodeBody(resp.body, v); err != nil {
			return nil, err
		}
	}

	if useCache {
		ttl := req.Cache.TTL(c.cache.DefaultTTL())
		c.cache.Set(key, resp.body, resp.headers, ttl)
	}

	return resp.headers, nil
}

// shared collapses identical in-flight requests into one fetch. The fetch
// runs on a context detached from any single caller; it is canceled only once
// every waiting caller has returned.
func (c *Client) shared(ctx context.Context, key string, req Request, log zerolog.Logger) (response, error) {
	c.flightMu.Lock()
	fl, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel}
		if c.flights == nil {
			c.flights = make(map[string]*flight)
		}
		c.flights[key] = fl
	}
	fl.waiters++
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(fl.ctx, req, log)
	})
	c.flightMu.Unlock()
	defer c.leaveFlight(key, fl)

	select {
	case <-ctx.Done():
		return response{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug().Str("cache_key", key).Msg("Shared in-flight response")
		}
		if res.Err != nil {
			return response{}, res.Err
		}
		return res.Val.(response), nil
	}
}

func (c *Client) leaveFlight(key string, fl *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if c.flights[key] == fl {
		delete(c.flights, key)
	}
	// a later caller must not join a fetch whose context is gone
	c.group.Forget(key)
}

// fromCache decodes a cached response into v. A corrupted entry has already
// been evicted by the cache and counts as a miss.
func (c *Client) fromCache(key string, v any, log zerolog.Logger) (http.Header, bool) {
	if v == nil {
		entry, ok := c.cache.Get(key)
		return entry.Headers, ok
	}
	headers, ok, err := c.cache.Decode(key, v)
	if err != nil {
		log.Warn().Err(err).Msg("Discarded corrupted cache entry")
		return nil, false
	}
	return headers, ok
}

// fetch injects auth, then builds and executes req under the retry policy
func (c *Client) fetch(ctx context.Context, req Request, log zerolog.Logger) (response, error) {
	params := req.Params
	if c.authMethod == AuthQuery {
		params = params.Clone()
		params["token"] = c.token
	}

	start := time.Now()
	var resp response
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		httpReq, err := c.network.BuildRequest(ctx, req.Path, req.method(), params, req.Headers, req.Body)
		if err != nil {
			return err
		}
		headers, body, err := c.network.Execute(httpReq, nil)
		if err != nil {
			return err
		}
		resp = response{headers: headers, body: body}
		return nil
	}, nil)
	if err != nil {
		log.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("Request failed")
		return response{}, err
	}

	log.Debug().
		Int("bytes", len(resp.body)).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")
	return resp, nil
}

// Cached decodes the cached response of req into v without touching the
// network. A corrupted entry is removed and reported as KindCache.
func (c *Client) Cached(req Request, v any) (bool, error) {
	if c.cache == nil {
		return false, nil
	}
	_, ok, err := c.cache.Decode(req.CacheKey(), v)
	if err != nil {
		return false, &APIError{Kind: KindCache, Err: err}
	}
	return ok, nil
}

// Identifiable is any entity with a numeric ID
type Identifiable interface {
	GetID() int
}

// ExecutePaginated requests consecutive pages of req and concatenates the
// items. It stops after a short page or after maxPages pages; maxPages <= 0
// means no page limit. Items are not deduplicated.
func ExecutePaginated[T any](ctx context.Context, c *Client, req Request, maxPages int) ([]T, error) {
	if !req.Paginated {
		return nil, invalidRequest("%s is not a paginated listing", req.Path)
	}

	size := DefaultPageSize
	if raw, ok := req.Params[paramPageSize]; ok {
		if n, err := strconv.Atoi(formatValue(raw)); err == nil && n > 0 {
			size = n
		}
	}

	var all []T
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		pageReq := req
		pageReq.Params = req.Params.Clone()
		pageReq.Params[paramPageNumber] = page
		pageReq.Params[paramPageSize] = size

		var items []T
		if err := c.Execute(ctx, pageReq, &items); err != nil {
			c.logger.Debug().Err(err).Str("path", req.Path).Int("page", page).Msg("Page request failed")
			return nil, err
		}
		all = append(all, items...)

		c.logger.Debug().
			Str("path", req.Path).
			Int("page", page).
			Int("count", len(items)).
			Int("total", len(all)).
			Msg("Retrieved page")

		if len(items) < size {
			break
		}
	}

	return all, nil
}

// DedupeByID drops later items whose ID was already seen, keeping order
func DedupeByID[T Identifiable](items []T) []T {
	seen := make(map[int]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.GetID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

// RateLimitStatus returns the most recent rate-limit headers
func (c *Client) RateLimitStatus() RateLimitStatus {
	return c.network.RateLimitStatus()
}

// ClearCache removes every cached response
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.ClearAll()
	}
}

// ClearExpired removes expired cached responses
func (c *Client) ClearExpired() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ClearExpired()
}

// CacheStats returns cache counters; zero when caching is disabled
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// CacheEnabled reports whether responses are cached
func (c *Client) CacheEnabled() bool {
	return c.cache != nil
}

// Pagination parses the pagination headers of a listing response
func (c *Client) Pagination(headers http.Header) (PaginationInfo, bool) {
	return ParsePagination(headers)
}

// TestConnection makes a single uncached call to verify the token
func (c *Client) TestConnection(ctx context.Context) error {
	req := LeaguesRequest{PageSize: 1}.Request()
	req.Cache = NoCache()

	var leagues []League
	if err := c.Execute(ctx, req, &leagues); err != nil {
		return err
	}

	c.logger.Debug().Msg("Successfully connected to PandaScore")
	return nil
}

// wrapList is the shared body of the list convenience methods
func wrapList[T any](ctx context.Context, c *Client, what string, req Request) ([]T, error) {
	var items []T
	if err := c.Execute(ctx, req, &items); err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return items, nil
}

// Matches lists one page of matches
func (c *Client) Matches(ctx context.Context, req MatchesRequest) ([]Match, error) {
	return wrapList[Match](ctx, c, "matches", req.Request())
}

// LiveMatches lists running matches
func (c *Client) LiveMatches(ctx context.Context) ([]Match, error) {
	return c.Matches(ctx, RunningMatches())
}

// UpcomingMatches lists up to limit scheduled matches, soonest first
func (c *Client) UpcomingMatches(ctx context.Context, limit int) ([]Match, error) {
	req := UpcomingMatches()
	req.PageSize = limit
	return c.Matches(ctx, req)
}

// PastMatches lists up to limit finished matches, most recent first
func (c *Client) PastMatches(ctx context.Context, limit int) ([]Match, error) {
	req := PastMatches()
	req.PageSize = limit
	return c.Matches(ctx, req)
}

// AllMatches pages through req
func (c *Client) AllMatches(ctx context.Context, req MatchesRequest, maxPages int) ([]Match, error) {
	return ExecutePaginated[Match](ctx, c, req.Request(), maxPages)
}

// Players lists one page of players
func (c *Client) Players(ctx context.Context, req PlayersRequest) ([]Player, error) {
	return wrapList[Player](ctx, c, "players", req.Request())
}

// AllPlayers pages through req
func (c *Client) AllPlayers(ctx context.Context, req PlayersRequest, maxPages int) ([]Player, error) {
	return ExecutePaginated[Player](ctx, c, req.Request(), maxPages)
}

// SearchPlayers searches players by name
func (c *Client) SearchPlayers(ctx context.Context, name string) ([]Player, error) {
	return c.Players(ctx, SearchPlayers(name))
}

// Teams lists one page of teams
func (c *Client) Teams(ctx context.Context, req TeamsRequest) ([]Team, error) {
	return wrapList[Team](ctx, c, "teams", req.Request())
}

// SearchTeams searches teams by name
func (c *Client) SearchTeams(ctx context.Context, name string) ([]Team, error) {
	return c.Teams(ctx, SearchTeams(name))
}

// Series lists one page of series
func (c *Client) Series(ctx context.Context, req SeriesRequest) ([]Series, error) {
	return wrapList[Series](ctx, c, "series", req.Request())
}

// Tournaments lists one page of tournaments
func (c *Client) Tournaments(ctx context.Context, req TournamentsRequest) ([]Tournament, error) {
	return wrapList[Tournament](ctx, c, "tournaments", req.Request())
}

// Leagues lists one page of leagues
func (c *Client) Leagues(ctx context.Context, req LeaguesRequest) ([]League, error) {
	return wrapList[League](ctx, c, "leagues", req.Request())
}

// AllLeagues pages through every league
func (c *Client) AllLeagues(ctx context.Context) ([]League, error) {
	return ExecutePaginated[League](ctx, c, LeaguesRequest{PageSize: MaxPageSize}.Request(), 0)
}

// IsCanceled reports whether err comes from context cancellation or deadline
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
