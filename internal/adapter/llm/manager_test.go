package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/domain"
)

type fakeAdapter struct {
	kind domain.LLMKind
	out  string
	err  error
}

func (f *fakeAdapter) Kind() domain.LLMKind { return f.kind }

func (f *fakeAdapter) Generate(_ context.Context, _ string, _ map[string]any) (string, error) {
	return f.out, f.err
}

func TestManager_Pick_NotConfigured(t *testing.T) {
	m := NewManager(map[domain.LLMKind]domain.LLMAdapter{})
	_, err := m.Pick(domain.LLMOpenAI)
	require.Error(t, err)
	var adapterErr *domain.AdapterError
	require.ErrorAs(t, err, &adapterErr)
}

func TestManager_Generate_Success(t *testing.T) {
	fake := &fakeAdapter{kind: domain.LLMClaude, out: "answer"}
	m := NewManager(map[domain.LLMKind]domain.LLMAdapter{domain.LLMClaude: fake})

	out, err := m.Generate(context.Background(), domain.LLMClaude, "prompt", nil)
	require.NoError(t, err)
	require.Equal(t, "answer", out)
}

func TestManager_Generate_AdapterError(t *testing.T) {
	fake := &fakeAdapter{kind: domain.LLMGemini, err: errors.New("boom")}
	m := NewManager(map[domain.LLMKind]domain.LLMAdapter{domain.LLMGemini: fake})

	_, err := m.Generate(context.Background(), domain.LLMGemini, "prompt", nil)
	require.Error(t, err)
}

func TestManager_Generate_VendorNotConfigured(t *testing.T) {
	m := NewManager(map[domain.LLMKind]domain.LLMAdapter{})
	_, err := m.Generate(context.Background(), domain.LLMHyperClova, "prompt", nil)
	require.Error(t, err)
}
