package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_PositiveHit(t *testing.T) {
	m := NewMemory()
	m.PutPositive("k", []byte(`{"close":42}`), time.Minute)

	v, ok, neg := m.Get("k")
	require.True(t, ok)
	require.False(t, neg)
	require.JSONEq(t, `{"close":42}`, string(v))
}

func TestMemory_NegativeHit(t *testing.T) {
	m := NewMemory()
	m.PutNegative("k", time.Minute)

	v, ok, neg := m.Get("k")
	require.True(t, ok)
	require.True(t, neg)
	require.Nil(t, v)
}

func TestMemory_LazyExpiry(t *testing.T) {
	m := NewMemory()
	m.PutPositive("k", []byte("x"), 20*time.Millisecond)

	_, ok, _ := m.Get("k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok, _ = m.Get("k")
	require.False(t, ok, "expired entry must read as a miss")
	require.Equal(t, 0, m.Len())
}

func TestMemory_NewerEntrySupersedes(t *testing.T) {
	m := NewMemory()
	m.PutNegative("k", time.Minute)
	m.PutPositive("k", []byte("fresh"), time.Minute)

	v, ok, neg := m.Get("k")
	require.True(t, ok)
	require.False(t, neg, "positive rewrite must supersede the negative entry")
	require.Equal(t, "fresh", string(v))
}

func TestMemory_Invalidate(t *testing.T) {
	m := NewMemory()
	m.PutPositive("k", []byte("x"), time.Minute)
	m.Invalidate("k")
	_, ok, _ := m.Get("k")
	require.False(t, ok)
}

func TestFile_RoundTripAndReopen(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	f.PutPositive("aapl", []byte(`{"close":1}`), time.Minute)
	f.PutNegative("msft", time.Minute)

	// A fresh handle over the same directory sees both entries.
	f2, err := NewFile(dir)
	require.NoError(t, err)

	v, ok, neg := f2.Get("aapl")
	require.True(t, ok)
	require.False(t, neg)
	require.JSONEq(t, `{"close":1}`, string(v))

	_, ok, neg = f2.Get("msft")
	require.True(t, ok)
	require.True(t, neg)
}

func TestFile_ExpiredEntryRemovedOnRead(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	f.PutPositive("k", []byte("x"), time.Second)
	// Rewrite the entry with a creation time in the past.
	f.write("k", fileEntry{Value: []byte(`"x"`), CreatedAt: time.Now().Add(-2 * time.Second), TTLSec: 1})

	_, ok, _ := f.Get("k")
	require.False(t, ok)
	_, ok, _ = f.Get("k") // second read: file is gone entirely
	require.False(t, ok)
}

func TestFile_PruneNegativeOnlyRemovesExpiredMarkers(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	f.PutPositive("pos", []byte(`1`), time.Minute)
	f.PutNegative("live", time.Minute)
	f.write("stale", fileEntry{CreatedAt: time.Now().Add(-time.Hour), TTLSec: 60, Negative: true})

	require.Equal(t, 1, f.PruneNegative())

	_, ok, _ := f.Get("pos")
	require.True(t, ok)
	_, ok, neg := f.Get("live")
	require.True(t, ok)
	require.True(t, neg)
}

func TestKey_StableAndFilenameSafe(t *testing.T) {
	k1 := Key("eodhd", "AAPL.US", "2024-01-01", "2024-02-01", "d")
	k2 := Key("eodhd", "AAPL.US", "2024-01-01", "2024-02-01", "d")
	require.Equal(t, k1, k2)

	k3 := Key("eodhd", "AAPL.US", "2024-01-01", "2024-02-02", "d")
	require.NotEqual(t, k1, k3)

	k4 := Key("Tavily", "giá vàng SJC hôm nay?", "30")
	require.NotContains(t, k4, "/")
	require.NotContains(t, k4, "?")
	require.NotContains(t, k4, " ")
}
