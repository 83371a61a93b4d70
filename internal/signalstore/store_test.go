package signalstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/domain"
)

func sig(code, msg string) domain.Signal {
	return domain.Signal{StockCode: code, EmittedAt: time.Now(), Kind: domain.ServiceChart, Message: msg}
}

func TestStore_LatestAndRecent(t *testing.T) {
	s := New(100)
	_, ok := s.LatestOrNone()
	require.False(t, ok)

	s.Append(sig("005930", "S1"))
	s.Append(sig("005930", "S2"))
	s.Append(sig("005930", "S3"))

	latest, ok := s.LatestOrNone()
	require.True(t, ok)
	require.Equal(t, "S3", latest.Message)

	recent := s.ListRecent()
	require.Len(t, recent, 3)
	require.Equal(t, []string{"S1", "S2", "S3"}, []string{recent[0].Message, recent[1].Message, recent[2].Message})
}

func TestStore_OverflowOverwritesOldest(t *testing.T) {
	s := New(2)
	s.Append(sig("a", "S1"))
	s.Append(sig("a", "S2"))
	s.Append(sig("a", "S3"))

	recent := s.ListRecent()
	require.Len(t, recent, 2)
	require.Equal(t, "S2", recent[0].Message)
	require.Equal(t, "S3", recent[1].Message)
}

// TestStore_ConcurrentAppendsYieldPrefixClosedReads exercises the
// signal-store prefix property: a reader never observes a sequence that
// isn't a prefix of some valid interleaving of the writer's appends.
func TestStore_ConcurrentAppendsYieldPrefixClosedReads(t *testing.T) {
	s := New(1000)
	const n = 200
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			s.Append(domain.Signal{StockCode: "a", Message: "x"})
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prevLen := 0
			for i := 0; i < 50; i++ {
				cur := s.ListRecent()
				require.GreaterOrEqual(t, len(cur), prevLen)
				prevLen = len(cur)
			}
		}()
	}
	<-done
	wg.Wait()
	require.Len(t, s.ListRecent(), n)
}
