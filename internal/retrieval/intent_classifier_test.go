package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contexta-labs/filingsrag/internal/core"
)

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Generate(ctx context.Context, tier core.Tier, systemPrompt, userPrompt string) (string, error) {
	return s.reply, s.err
}

func TestClassify_EmptyQueryIsRegularWithoutCallingProvider(t *testing.T) {
	c := NewIntentClassifier(&stubChat{reply: "should not be used"})
	result := c.Classify(context.Background(), "   ")
	assert.Equal(t, IntentRegular, result.Intent)
}

func TestClassify_WellFormedJSONIsTrusted(t *testing.T) {
	c := NewIntentClassifier(&stubChat{reply: `{"intent": "EXHAUSTIVE", "reasoning": "asks for all mentions"}`})
	result := c.Classify(context.Background(), "find every mention of litigation")
	assert.Equal(t, IntentExhaustive, result.Intent)
	assert.Equal(t, "asks for all mentions", result.Reasoning)
}

func TestClassify_JSONWrappedInProseIsExtracted(t *testing.T) {
	c := NewIntentClassifier(&stubChat{reply: "Sure thing: {\"intent\": \"REGULAR\", \"reasoning\": \"single fact\"} Hope that helps."})
	result := c.Classify(context.Background(), "what was Q3 revenue?")
	assert.Equal(t, IntentRegular, result.Intent)
}

func TestClassify_ProviderErrorFallsBackToKeywordRule(t *testing.T) {
	c := NewIntentClassifier(&stubChat{err: errors.New("boom")})
	result := c.Classify(context.Background(), "list all risk factors")
	assert.Equal(t, IntentExhaustive, result.Intent)
}

func TestClassify_UnparseableReplyFallsBackToKeywordRule(t *testing.T) {
	c := NewIntentClassifier(&stubChat{reply: "not json at all"})
	result := c.Classify(context.Background(), "what is the revenue figure?")
	assert.Equal(t, IntentRegular, result.Intent)
}

func TestClassify_UnknownIntentValueFallsBackToKeywordRule(t *testing.T) {
	c := NewIntentClassifier(&stubChat{reply: `{"intent": "MAYBE", "reasoning": "unsure"}`})
	result := c.Classify(context.Background(), "give me every instance of buyback activity")
	assert.Equal(t, IntentExhaustive, result.Intent)
}

func TestFallbackClassify_KeywordMatchIsCaseInsensitive(t *testing.T) {
	result := fallbackClassify("Show ALL related party transactions", "test")
	assert.Equal(t, IntentExhaustive, result.Intent)
}

func TestFallbackClassify_NoKeywordMatchIsRegular(t *testing.T) {
	result := fallbackClassify("what was the operating margin last quarter?", "test")
	assert.Equal(t, IntentRegular, result.Intent)
}
