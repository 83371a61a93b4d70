package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/domain"
)

func at(y, m, d, hh, mm, ss int) time.Time {
	return time.Date(y, time.Month(m), d, hh, mm, ss, 0, KST)
}

func TestMarketClock_Phase(t *testing.T) {
	c := NewMarketClock()

	// 2026-07-27 is a Monday.
	require.Equal(t, domain.PhasePreMarket, c.Phase(at(2026, 7, 27, 8, 59, 59)))
	require.Equal(t, domain.PhaseMarketHours, c.Phase(at(2026, 7, 27, 9, 0, 0)))
	require.Equal(t, domain.PhaseMarketHours, c.Phase(at(2026, 7, 27, 15, 29, 59)))
	require.Equal(t, domain.PhaseAfterMarket, c.Phase(at(2026, 7, 27, 15, 30, 0)))
	// Saturday / Sunday are always Weekend, regardless of hour.
	require.Equal(t, domain.PhaseWeekend, c.Phase(at(2026, 8, 1, 10, 0, 0)))
	require.Equal(t, domain.PhaseWeekend, c.Phase(at(2026, 8, 2, 10, 0, 0)))
}

func TestInPeakWindow_Boundaries(t *testing.T) {
	windows := DefaultNewsPeakWindows()

	require.False(t, InPeakWindow(at(2026, 7, 27, 9, 29, 59), windows[:0])) // empty: sanity
	require.True(t, InPeakWindow(at(2026, 7, 27, 7, 30, 0), windows))
	require.True(t, InPeakWindow(at(2026, 7, 27, 9, 29, 59), windows))
	require.False(t, InPeakWindow(at(2026, 7, 27, 9, 30, 0), windows))
	require.True(t, InPeakWindow(at(2026, 7, 27, 14, 30, 0), windows))
	require.False(t, InPeakWindow(at(2026, 7, 27, 16, 30, 0), windows))
}

func TestInAnchorWindow_ReportAnchor(t *testing.T) {
	a := ReportAnchor()

	// Friday 15:30 +/- epsilon around a weekday boundary is irrelevant to
	// the weekly anchor itself but the Sunday-only gate must hold.
	require.False(t, InAnchorWindow(at(2026, 8, 2, 19, 59, 59), a)) // Sunday before window
	require.True(t, InAnchorWindow(at(2026, 8, 2, 20, 0, 0), a))
	require.True(t, InAnchorWindow(at(2026, 8, 2, 20, 59, 59), a))
	require.False(t, InAnchorWindow(at(2026, 8, 2, 21, 0, 0), a))
	require.False(t, InAnchorWindow(at(2026, 8, 3, 20, 30, 0), a)) // Monday, same hour
}

func TestInAnchorWindow_FlowAnchor(t *testing.T) {
	a := FlowAnchor()
	require.False(t, InAnchorWindow(at(2026, 7, 27, 17, 59, 59), a))
	require.True(t, InAnchorWindow(at(2026, 7, 27, 18, 0, 0), a))
	require.True(t, InAnchorWindow(at(2026, 7, 27, 18, 59, 59), a))
	require.False(t, InAnchorWindow(at(2026, 7, 27, 19, 0, 0), a))
}
