package cache

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache(t *testing.T, opts ...Option) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(zerolog.Nop(), opts...), clock
}

func TestSetThenGetBeforeExpiry(t *testing.T) {
	c, clock := newTestCache(t)

	headers := http.Header{"X-Total": []string{"3"}}
	c.Set("players", []byte(`[1,2,3]`), headers, time.Minute)

	clock.Advance(59 * time.Second)
	entry, ok := c.Get("players")
	require.True(t, ok)
	assert.Equal(t, []byte(`[1,2,3]`), entry.Payload)
	assert.Equal(t, "3", entry.Headers.Get("X-Total"))
}

func TestGetAfterExpiryMissesAndRemoves(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("players", []byte(`[]`), nil, time.Minute)
	clock.Advance(time.Minute + time.Second)

	_, ok := c.Get("players")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	stats := c.Stats()
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}

func TestSetUsesDefaultTTL(t *testing.T) {
	c, clock := newTestCache(t, WithDefaultTTL(10*time.Second))

	c.Set("k", []byte(`1`), nil, 0)

	clock.Advance(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestEvictionKeepsLatestExpiry(t *testing.T) {
	const maxSize = 5
	const extra = 3
	c, _ := newTestCache(t, WithMaxSize(maxSize))

	// Entry i expires after i+1 minutes; insert in scrambled order
	order := []int{7, 0, 4, 2, 6, 1, 5, 3}
	for _, i := range order {
		c.Set(fmt.Sprintf("key-%d", i), []byte(`{}`), nil, time.Duration(i+1)*time.Minute)
	}

	assert.Equal(t, maxSize, c.Len())
	for i := 0; i < extra; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		assert.False(t, ok, "key-%d should have been evicted", i)
	}
	for i := extra; i < maxSize+extra; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		assert.True(t, ok, "key-%d should be retained", i)
	}
	assert.Equal(t, extra, c.Stats().Evictions)
}

func TestDecode(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("good", []byte(`{"name":"Serral"}`), http.Header{"X-Page": []string{"1"}}, time.Minute)

	var out struct {
		Name string `json:"name"`
	}
	headers, ok, err := c.Decode("good", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Serral", out.Name)
	assert.Equal(t, "1", headers.Get("X-Page"))

	_, ok, err = c.Decode("absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeCorruptEntrySelfHeals(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("bad", []byte(`{"name":`), nil, time.Minute)

	var out map[string]any
	_, ok, err := c.Decode("bad", &out)
	assert.False(t, ok)

	var corrupt *CorruptEntryError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "bad", corrupt.Key)
	assert.Equal(t, 0, c.Len())
}

func TestGetReturnsIsolatedHeaders(t *testing.T) {
	c, _ := newTestCache(t)

	h := http.Header{}
	h.Set("X-Total", "125")
	c.Set("k", []byte(`[]`), h, time.Minute)

	first, ok := c.Get("k")
	require.True(t, ok)
	first.Headers.Set("X-Total", "0")
	first.Headers.Set("X-Injected", "1")

	headers, ok, err := c.Decode("k", &[]int{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "125", headers.Get("X-Total"))
	assert.Empty(t, headers.Get("X-Injected"))
}

func TestClearExpired(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("short", []byte(`1`), nil, time.Second)
	c.Set("long", []byte(`2`), nil, time.Hour)
	clock.Advance(time.Minute)

	assert.Equal(t, 1, c.ClearExpired())
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("a", []byte(`1`), nil, time.Hour)
	c.Set("b", []byte(`2`), nil, time.Hour)
	c.ClearAll()

	assert.Equal(t, 0, c.Len())
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t)

	assert.Equal(t, Stats{}, c.Stats())

	c.Set("a", []byte(`1`), nil, time.Hour)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, 3, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 0.75, stats.HitRate, 1e-9)
}

func TestStatsHitRateZeroWithOnlyMisses(t *testing.T) {
	c, _ := newTestCache(t)
	c.Get("missing")
	assert.Equal(t, 0.0, c.Stats().HitRate)
}
