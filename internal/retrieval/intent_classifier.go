// Package retrieval implements the Intent Classifier, Retrieval
// Strategy, merge/aggregation, and Answer Orchestrator (§4.6-4.8). None
// of this has a direct teacher analogue; it is built in the teacher's
// plain-struct, method-per-step service style
// (internal/services/document_service.go) over this repo's core
// interfaces.
package retrieval

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/contexta-labs/filingsrag/internal/core"
)

// Intent is the Regular/Exhaustive classification of §4.7.
type Intent string

const (
	IntentRegular    Intent = "REGULAR"
	IntentExhaustive Intent = "EXHAUSTIVE"
)

// ClassifyResult is the classifier's output shape, confidence optional.
type ClassifyResult struct {
	Intent     Intent
	Reasoning  string
	Confidence float64
}

// exhaustiveKeywords triggers the deterministic fallback rule when the
// chat provider's classification is unusable.
var exhaustiveKeywords = []string{
	"list all", "find all", "show all", "every", "all cases", "all instances",
	"all documents", "all mentions", "complete list", "exhaustive", "entire",
	"give me every", "what are all", "all of", "each",
}

const classifierSystemPrompt = `You classify a user's question about company filings into one of two intents.
Reply with a single JSON object: {"intent": "REGULAR" or "EXHAUSTIVE", "reasoning": "<one sentence>"}.
Use EXHAUSTIVE when the user asks for a complete enumeration (all instances, every mention, a full list).
Use REGULAR for everything else, including single-fact or comparison questions.
Reply with the JSON object only, no other text.`

type classifierResponse struct {
	Intent    string `json:"intent"`
	Reasoning string `json:"reasoning"`
}

// IntentClassifier calls the chat provider for a structured
// classification, falling back to a deterministic keyword rule on any
// failure per §4.7.
type IntentClassifier struct {
	chat core.ChatProvider
}

func NewIntentClassifier(chat core.ChatProvider) *IntentClassifier {
	return &IntentClassifier{chat: chat}
}

// Classify returns Regular for empty input without calling the
// provider, tries the chat provider otherwise, and falls back to the
// keyword rule on any parse failure, unknown intent value, or provider
// error.
func (c *IntentClassifier) Classify(ctx context.Context, query string) ClassifyResult {
	if strings.TrimSpace(query) == "" {
		return ClassifyResult{Intent: IntentRegular, Reasoning: "empty query"}
	}

	raw, err := c.chat.Generate(ctx, core.TierDefault, classifierSystemPrompt, query)
	if err != nil {
		return fallbackClassify(query, "provider error: "+err.Error())
	}

	result, ok := parseClassifierResponse(raw)
	if !ok {
		return fallbackClassify(query, "unparseable or unknown classifier response")
	}
	return result
}

func parseClassifierResponse(raw string) (ClassifyResult, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClassifyResult{}, false
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return ClassifyResult{}, false
	}

	switch strings.ToUpper(strings.TrimSpace(parsed.Intent)) {
	case string(IntentRegular):
		return ClassifyResult{Intent: IntentRegular, Reasoning: parsed.Reasoning}, true
	case string(IntentExhaustive):
		return ClassifyResult{Intent: IntentExhaustive, Reasoning: parsed.Reasoning}, true
	default:
		return ClassifyResult{}, false
	}
}

// extractJSONObject tolerates a model wrapping its JSON reply in prose
// or a code fence by taking the outermost {...} span.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func fallbackClassify(query, reasoning string) ClassifyResult {
	lower := strings.ToLower(query)
	for _, kw := range exhaustiveKeywords {
		if strings.Contains(lower, kw) {
			return ClassifyResult{Intent: IntentExhaustive, Reasoning: reasoning}
		}
	}
	return ClassifyResult{Intent: IntentRegular, Reasoning: reasoning}
}
