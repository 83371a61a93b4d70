package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreaker_Monotonicity(t *testing.T) {
	b := New(3, 50*time.Millisecond)

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Closed, b.GetState())

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Closed, b.GetState())

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.GetState())

	// Within reset_timeout, refused without an upstream call.
	require.False(t, b.Allow())

	time.Sleep(60 * time.Millisecond)

	// Exactly one probe admitted.
	require.True(t, b.Allow())
	require.False(t, b.Allow())

	b.RecordSuccess()
	require.Equal(t, Closed, b.GetState())
	require.True(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.GetState())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.GetState())
}

func TestBreaker_Reset(t *testing.T) {
	b := New(1, time.Hour)
	b.Allow()
	b.RecordFailure()
	require.Equal(t, Open, b.GetState())
	b.Reset()
	require.Equal(t, Closed, b.GetState())
	require.True(t, b.Allow())
}
