package pandascore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/sc2kit/retry"
)

// noWait keeps retry tests from sleeping
var noWait = retry.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() })

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(serverURL),
		WithRetryConfig(retry.Default(), noWait),
	}, opts...)
	c, err := NewClient("test-token", zerolog.Nop(), opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		opts    []Option
		wantErr string
	}{
		{name: "valid", token: "abc"},
		{name: "missing token", token: "", wantErr: "token is required"},
		{name: "bad base URL", token: "abc", opts: []Option{WithBaseURL("::")}, wantErr: "invalid base URL"},
		{name: "bad retry config", token: "abc", opts: []Option{WithRetryConfig(retry.Config{})}, wantErr: "invalid retry configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.token, zerolog.Nop(), tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, c.CacheEnabled())
		})
	}
}

func TestParseAuthMethod(t *testing.T) {
	m, err := ParseAuthMethod("query")
	require.NoError(t, err)
	assert.Equal(t, AuthQuery, m)

	m, err = ParseAuthMethod("")
	require.NoError(t, err)
	assert.Equal(t, AuthBearer, m)

	m, err = ParseAuthMethod(" Query ")
	require.NoError(t, err)
	assert.Equal(t, AuthQuery, m)

	m, err = ParseAuthMethod("BEARER")
	require.NoError(t, err)
	assert.Equal(t, AuthBearer, m)

	_, err = ParseAuthMethod("cookie")
	assert.Error(t, err)
}

func TestBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("token"))
		assert.Equal(t, "sc2kit-test", r.Header.Get("User-Agent"))
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithUserAgent("sc2kit-test"))
	_, err := c.LiveMatches(context.Background())
	require.NoError(t, err)
}

func TestQueryAuthInjectsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithAuthMethod(AuthQuery))
	req := SearchPlayers("Serral").Request()

	var players []Player
	require.NoError(t, c.Execute(context.Background(), req, &players))

	// the caller's params are left untouched and the token stays out of the cache key
	assert.NotContains(t, req.Params, "token")
	assert.NotContains(t, req.CacheKey(), "test-token")
}

func TestCacheHitBypassesNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Total", "1")
		io.WriteString(w, `[{"id":1,"name":"Serral"}]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := SearchPlayers("Serral").Request()

	for i := 0; i < 3; i++ {
		var players []Player
		headers, err := c.ExecuteWithHeaders(context.Background(), req, &players)
		require.NoError(t, err)
		require.Len(t, players, 1)
		assert.Equal(t, "Serral", players[0].Name)
		assert.Equal(t, "1", headers.Get("X-Total"))
	}

	assert.Equal(t, int32(1), calls.Load())
	stats := c.CacheStats()
	assert.Equal(t, 2, stats.Hits)
	assert.Equal(t, 1, stats.Misses)

	var cached []Player
	ok, err := c.Cached(req, &cached)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestNoCachePolicyAlwaysHitsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := LeaguesRequest{}.Request()
	req.Cache = NoCache()

	for i := 0; i < 2; i++ {
		var leagues []League
		require.NoError(t, c.Execute(context.Background(), req, &leagues))
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestWithoutCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithoutCache())
	assert.False(t, c.CacheEnabled())

	for i := 0; i < 2; i++ {
		_, err := c.Teams(context.Background(), TeamsRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.CacheStats().Hits)
}

func TestCacheExpiryRefetches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := LeaguesRequest{}.Request()
	req.Cache = UseCache(20 * time.Millisecond)

	var leagues []League
	require.NoError(t, c.Execute(context.Background(), req, &leagues))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, c.Execute(context.Background(), req, &leagues))

	assert.Equal(t, int32(2), calls.Load())
}

func TestFailedResponsesAreNotCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := LeaguesRequest{}.Request()

	for i := 0; i < 2; i++ {
		err := c.Execute(context.Background(), req, &[]League{})
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.CacheStats().Size)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[{"id":9,"name":"GSL"}]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	leagues, err := c.Leagues(context.Background(), LeaguesRequest{})
	require.NoError(t, err)
	require.Len(t, leagues, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitRetriedThenSurfaced(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "30")
		w.Header().Set("X-Rate-Limit-Remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var delays []time.Duration
	record := retry.WithSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	c := newTestClient(t, server.URL, WithRetryConfig(retry.Default(), record))

	_, err := c.LiveMatches(context.Background())
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), calls.Load())

	// Retry-After of 30s is honored, scaled by jitter
	require.Len(t, delays, 2)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 24*time.Second)
		assert.LessOrEqual(t, d, 36*time.Second)
	}

	status := c.RateLimitStatus()
	require.NotNil(t, status.Remaining)
	assert.Equal(t, 0, *status.Remaining)
}

func TestUnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.TestConnection(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTestConnectionUsesSingleUncachedCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/starcraft-2/leagues", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page[size]"))
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	require.NoError(t, c.TestConnection(context.Background()))
	require.NoError(t, c.TestConnection(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

// pagedServer serves total sequential players at the requested page size
func pagedServer(t *testing.T, total int, requests *[]string, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page[number]"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page[size]"))

		mu.Lock()
		*requests = append(*requests, r.URL.Query().Get("page[number]"))
		mu.Unlock()

		start := (page - 1) * size
		end := min(start+size, total)

		w.Write([]byte("["))
		for i := start; i < end; i++ {
			if i > start {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"id":%d,"name":"player-%d"}`, i+1, i+1)
		}
		w.Write([]byte("]"))
	}))
}

func TestExecutePaginatedStopsOnShortPage(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	server := pagedServer(t, 125, &requests, &mu)
	defer server.Close()

	c := newTestClient(t, server.URL)
	players, err := ExecutePaginated[Player](context.Background(), c, PlayersRequest{PageSize: 50}.Request(), 0)
	require.NoError(t, err)

	assert.Len(t, players, 125)
	assert.Equal(t, []string{"1", "2", "3"}, requests)
	assert.Equal(t, 1, players[0].ID)
	assert.Equal(t, 125, players[124].ID)
}

func TestExecutePaginatedRespectsMaxPages(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	server := pagedServer(t, 1000, &requests, &mu)
	defer server.Close()

	c := newTestClient(t, server.URL)
	players, err := c.AllPlayers(context.Background(), PlayersRequest{PageSize: 20}, 2)
	require.NoError(t, err)

	assert.Len(t, players, 40)
	assert.Equal(t, []string{"1", "2"}, requests)
}

func TestExecutePaginatedExactMultiple(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	server := pagedServer(t, 100, &requests, &mu)
	defer server.Close()

	c := newTestClient(t, server.URL)
	players, err := ExecutePaginated[Player](context.Background(), c, PlayersRequest{PageSize: 50}.Request(), 0)
	require.NoError(t, err)

	// a full last page needs one more empty request to detect the end
	assert.Len(t, players, 100)
	assert.Equal(t, []string{"1", "2", "3"}, requests)
}

func TestExecutePaginatedPropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page[number]") == "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("["))
		for i := 0; i < 10; i++ {
			if i > 0 {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"id":%d}`, i)
		}
		w.Write([]byte("]"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := ExecutePaginated[Match](context.Background(), c, MatchesRequest{PageSize: 10}.Request(), 0)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, KindForbidden, apiErr.Kind)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestExecutePaginatedRejectsSingleResource(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := Request{Path: "/starcraft-2/matches/42"}
	_, err := ExecutePaginated[Match](context.Background(), c, req, 0)

	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.Zero(t, calls.Load())
}

// flightWaiters reports how many callers wait on the collapsed fetch for key
func (c *Client) flightWaiters(key string) int {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if fl, ok := c.flights[key]; ok {
		return fl.waiters
	}
	return 0
}

// blockingServer holds every request until release is closed
func blockingServer(t *testing.T, calls *atomic.Int32, release <-chan struct{}, aborted chan<- struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
			io.WriteString(w, `[{"id":1}]`)
		case <-r.Context().Done():
			if aborted != nil {
				aborted <- struct{}{}
			}
		}
	}))
}

func TestConcurrentIdenticalRequestsShareCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := blockingServer(t, &calls, release, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	key := RunningMatches().Request().CacheKey()

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.LiveMatches(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return c.flightWaiters(key) == callers && calls.Load() == 1
	}, 2*time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, c.flightWaiters(key))
}

func TestCanceledCallerDoesNotFailSharedCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := blockingServer(t, &calls, release, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	key := RunningMatches().Request().CacheKey()

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.LiveMatches(leaderCtx)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, time.Millisecond)

	type result struct {
		matches []Match
		err     error
	}
	followerDone := make(chan result, 1)
	go func() {
		matches, err := c.LiveMatches(context.Background())
		followerDone <- result{matches, err}
	}()
	require.Eventually(t, func() bool { return c.flightWaiters(key) == 2 }, 2*time.Second, time.Millisecond)

	cancelLeader()
	err := <-leaderErr
	require.Error(t, err)
	assert.True(t, IsCanceled(err))

	close(release)
	res := <-followerDone
	require.NoError(t, res.err)
	assert.Len(t, res.matches, 1)
	assert.Equal(t, int32(1), calls.Load())

	// the follower's result was cached
	_, err = c.LiveMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLastCanceledCallerAbortsSharedCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	defer close(release)
	aborted := make(chan struct{}, 1)
	server := blockingServer(t, &calls, release, aborted)
	defer server.Close()

	c := newTestClient(t, server.URL)
	key := RunningMatches().Request().CacheKey()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.LiveMatches(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	assert.True(t, IsCanceled(<-errc))

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not aborted")
	}
	assert.Zero(t, c.flightWaiters(key))
	assert.Zero(t, c.CacheStats().Size)
}

func TestParamsWithSeparatorsAreCachedSeparately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `[{"id":%d,"name":%q}]`, calls.Load(), r.URL.Query().Get("search[name]"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	injected, err := c.Players(context.Background(), SearchPlayers("x&search[team]=y"))
	require.NoError(t, err)
	split, err := c.Players(context.Background(), PlayersRequest{Search: map[string]string{"name": "x", "team": "y"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, injected, 1)
	require.Len(t, split, 1)
	assert.Equal(t, "x&search[team]=y", injected[0].Name)
	assert.Equal(t, "x", split[0].Name)
}

func TestClearCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.LiveMatches(context.Background())
	require.NoError(t, err)
	c.ClearCache()
	_, err = c.LiveMatches(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamUnsupported(t *testing.T) {
	c := newTestClient(t, "https://api.pandascore.co")

	ch, err := c.Stream(context.Background(), StreamRequest{Path: "/matches/1/events", Feeds: []StreamFeed{FeedEvents}})
	assert.Nil(t, ch)
	assert.Equal(t, KindWebSocket, KindOf(err))
}

func TestPaginationFromHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Page", "1")
		w.Header().Set("X-Per-Page", "50")
		w.Header().Set("X-Total", "51")
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	headers, err := c.ExecuteWithHeaders(context.Background(), PlayersRequest{}.Request(), &[]Player{})
	require.NoError(t, err)

	info, ok := c.Pagination(headers)
	require.True(t, ok)
	assert.Equal(t, 2, info.TotalPages())
	assert.True(t, info.HasNext())
}
