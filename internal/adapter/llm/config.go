package llm

import (
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
)

// NewManagerFromConfig builds a Manager with one vendor client per
// configured API key. A vendor whose key is empty is left unregistered;
// Pick/Generate then report it as not configured rather than the
// Manager panicking or silently falling back to another vendor.
func NewManagerFromConfig(cfg config.Config) *Manager {
	clients := make(map[domain.LLMKind]domain.LLMAdapter)
	if cfg.LLMHyperClovaAPIKey != "" {
		clients[domain.LLMHyperClova] = NewHyperClovaClient(cfg.LLMHyperClovaAPIKey, "")
	}
	if cfg.LLMGeminiAPIKey != "" {
		clients[domain.LLMGemini] = NewGeminiClient(cfg.LLMGeminiAPIKey, "", "")
	}
	if cfg.LLMOpenAIAPIKey != "" {
		clients[domain.LLMOpenAI] = NewOpenAIClient(cfg.LLMOpenAIAPIKey, "", "")
	}
	if cfg.LLMClaudeAPIKey != "" {
		clients[domain.LLMClaude] = NewClaudeClient(cfg.LLMClaudeAPIKey, "", "")
	}
	return NewManager(clients)
}
