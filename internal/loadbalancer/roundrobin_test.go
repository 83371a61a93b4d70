package loadbalancer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobin_Fairness(t *testing.T) {
	lb := New()
	instances := []string{"A", "B", "C"}
	counts := map[string]int{}
	for i := 0; i < 300; i++ {
		counts[lb.Next(instances)]++
	}
	require.Equal(t, 100, counts["A"])
	require.Equal(t, 100, counts["B"])
	require.Equal(t, 100, counts["C"])
}

func TestRoundRobin_Empty(t *testing.T) {
	lb := New()
	require.Equal(t, "", lb.Next(nil))
}
