package cachex

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "flights", []byte(`{"a":1}`), time.Minute))

	got, ok, err := c.Get(ctx, "flights")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(got))

	// Exactly at expiry the entry is gone
	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "flights")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, c.size())
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	val := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", val, time.Minute))
	val[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _, _ := c.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestMemoryNonPositiveTTL(t *testing.T) {
	c := NewMemory()
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	require.Equal(t, 0, c.size())
}

func TestMemorySweepsExpiredOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	now = now.Add(time.Minute)

	// The write that triggers the sweep is the sweepEvery-th one
	for i := 2; i < sweepEvery; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("long-%d", i), []byte("2"), time.Hour))
	}
	require.Equal(t, sweepEvery-1, c.size(), "expired entry kept until the sweep")

	require.NoError(t, c.Set(ctx, "last", []byte("3"), time.Hour))
	require.Equal(t, sweepEvery-1, c.size())

	c.mu.RLock()
	_, ok := c.entries["short"]
	c.mu.RUnlock()
	require.False(t, ok)
}
