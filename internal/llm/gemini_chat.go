package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/contexta-labs/filingsrag/internal/core"
)

// GeminiChat wraps two model handles, the default quality tier and a
// cheaper Fast tier, both resolved lazily from a single client. The
// teacher's GeminiLLM only ever holds one model name; this adds the
// Fast tier the Answer Orchestrator's query rewrite uses (§6).
type GeminiChat struct {
	client       *genai.Client
	defaultModel string
	fastModel    string
}

func NewGeminiChat(ctx context.Context, apiKey, defaultModel, fastModel string) (*GeminiChat, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "gemini-1.5-pro"
	}
	if fastModel == "" {
		fastModel = "gemini-1.5-flash"
	}
	return &GeminiChat{client: cl, defaultModel: defaultModel, fastModel: fastModel}, nil
}

func (g *GeminiChat) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

var _ core.ChatProvider = (*GeminiChat)(nil)

func (g *GeminiChat) modelForTier(tier core.Tier) string {
	if tier == core.TierFast {
		return g.fastModel
	}
	return g.defaultModel
}

// Generate runs a single-turn completion with an optional system
// instruction, the same GenerativeModel/SystemInstruction wiring as the
// teacher's Generate, with model selection added for Tier.
func (g *GeminiChat) Generate(ctx context.Context, tier core.Tier, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelForTier(tier))
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", core.ErrProviderFailure, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", core.ErrProviderFailure)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
