package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocal_GetSetIdempotence(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(v))
}

func TestLocal_Expiry(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	require.False(t, ok)
}

func TestLocal_OverflowEvictsExactlyOne(t *testing.T) {
	c := NewLocal(3)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Millisecond))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))
	require.Equal(t, 3, c.Stats()["size"])

	// 4th insert must evict exactly one entry (the earliest-expiring: "b").
	require.NoError(t, c.Set(ctx, "d", []byte("4"), time.Hour))
	require.Equal(t, 3, c.Stats()["size"])

	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	require.True(t, ok)
	_, ok, _ = c.Get(ctx, "d")
	require.True(t, ok)
}

func TestLocal_Clear(t *testing.T) {
	c := NewLocal(10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Clear(ctx))
	_, ok, _ := c.Get(ctx, "a")
	require.False(t, ok)
}

func TestCanonicalQuery_OrderIndependent(t *testing.T) {
	require.Equal(t, CanonicalQuery("b=2&a=1"), CanonicalQuery("a=1&b=2"))
}

func TestFingerprint_Stable(t *testing.T) {
	f1 := Fingerprint("chart", "GET", "/api/chart/signal", "a=1&b=2")
	f2 := Fingerprint("chart", "GET", "/api/chart/signal", "b=2&a=1")
	require.Equal(t, f1, f2)

	f3 := Fingerprint("chart", "GET", "/api/chart/signal", "a=1")
	require.NotEqual(t, f1, f3)
}
