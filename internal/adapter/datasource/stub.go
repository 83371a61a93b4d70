package datasource

import (
	"context"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
)

// Stub is the default DataSourceAdapter when no real market-data
// collaborator is configured (spec §1: data acquisition clients are
// opaque, out-of-scope collaborators). FetchHistory returns no bars;
// Subscribe blocks until ctx is canceled without ever calling
// onMessage. This keeps every worker process runnable end-to-end (the
// scheduler, rebind and signal-store plumbing all still exercise)
// without a live upstream feed.
type Stub struct{}

func (Stub) FetchHistory(ctx context.Context, ticker domain.TickerCode, start, end time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (Stub) Subscribe(ctx context.Context, ticker domain.TickerCode, onMessage func([]byte)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Stub) Unsubscribe(ctx context.Context, ticker domain.TickerCode) error {
	return nil
}

// StaticTokenSource vends a fixed token that never expires, the default
// worker.TokenSource when no real approval-token vendor is configured.
type StaticTokenSource struct {
	StaticToken string
}

func (s StaticTokenSource) Token(ctx context.Context) (string, time.Time, error) {
	return s.StaticToken, time.Now().Add(24 * time.Hour), nil
}
