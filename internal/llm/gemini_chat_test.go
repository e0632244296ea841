package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contexta-labs/filingsrag/internal/core"
)

func TestModelForTier_SelectsFastOnlyForFastTier(t *testing.T) {
	g := &GeminiChat{defaultModel: "gemini-1.5-pro", fastModel: "gemini-1.5-flash"}

	assert.Equal(t, "gemini-1.5-pro", g.modelForTier(core.TierDefault))
	assert.Equal(t, "gemini-1.5-flash", g.modelForTier(core.TierFast))
}
