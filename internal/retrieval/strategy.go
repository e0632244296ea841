package retrieval

// MaxKUnlimited signals "no cap" on the Exhaustive strategy's maxK.
const MaxKUnlimited = 0

// StrategyParams is the (maxK, minSimilarity) pair a Strategy resolves
// an Intent to.
type StrategyParams struct {
	MaxK          int
	MinSimilarity float32
}

// Strategy is a pure lookup from intent to retrieval configuration
// (§4.8), overridable per deployment via NewStrategy's arguments rather
// than hardcoded defaults.
type Strategy struct {
	regular    StrategyParams
	exhaustive StrategyParams
}

// DefaultStrategy returns the table values from §4.8: Regular
// (15, 0.70), Exhaustive (unlimited, 0.00).
func DefaultStrategy() *Strategy {
	return NewStrategy(
		StrategyParams{MaxK: 15, MinSimilarity: 0.70},
		StrategyParams{MaxK: MaxKUnlimited, MinSimilarity: 0.00},
	)
}

func NewStrategy(regular, exhaustive StrategyParams) *Strategy {
	return &Strategy{regular: regular, exhaustive: exhaustive}
}

func (s *Strategy) ParamsFor(intent Intent) StrategyParams {
	if intent == IntentExhaustive {
		return s.exhaustive
	}
	return s.regular
}
