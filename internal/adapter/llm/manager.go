// Package llm adapts the fabric's closed LLMKind variant to one HTTP
// client per vendor. Each client implements domain.LLMAdapter; Manager
// dispatches a user's configured LLMKind to the matching client the way
// the original per-user LLMManager.clients map picked a vendor client
// per request.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/peter0524/service-fabric/internal/adapter/llm/tokencount"
	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/domain"
)

// Manager holds one domain.LLMAdapter per vendor and dispatches by kind.
type Manager struct {
	clients map[domain.LLMKind]domain.LLMAdapter
	counter *tokencount.Counter
}

// NewManager builds a Manager over the given vendor clients. A nil or
// missing entry for a kind means that vendor is unconfigured; Pick
// returns an error for it rather than panicking.
func NewManager(clients map[domain.LLMKind]domain.LLMAdapter) *Manager {
	return &Manager{clients: clients, counter: tokencount.DefaultCounter}
}

// Pick returns the adapter bound to kind, or an AdapterError if the
// vendor was never configured.
func (m *Manager) Pick(kind domain.LLMKind) (domain.LLMAdapter, error) {
	c, ok := m.clients[kind]
	if !ok || c == nil {
		return nil, domain.NewAdapterError("llm:"+string(kind), fmt.Errorf("vendor not configured"))
	}
	return c, nil
}

// Generate picks the adapter for kind, runs it, and records latency,
// outcome and token usage metrics around the call.
func (m *Manager) Generate(ctx context.Context, kind domain.LLMKind, prompt string, params map[string]any) (string, error) {
	adapter, err := m.Pick(kind)
	if err != nil {
		return "", err
	}

	promptTokens, _ := m.counter.CountTokens(prompt, string(kind))
	start := time.Now()
	out, err := adapter.Generate(ctx, prompt, params)
	dur := time.Since(start)

	completionTokens := 0
	if err == nil {
		completionTokens, _ = m.counter.CountTokens(out, string(kind))
	}
	observability.RecordLLMRequest(string(kind), err, dur, promptTokens, completionTokens)

	if err != nil {
		return "", domain.NewAdapterError("llm:"+string(kind), err)
	}
	return out, nil
}
