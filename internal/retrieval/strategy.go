package retrieval

import "fmt"

// Strategy selects the ranking algorithm used for retrieval.
type Strategy int

const (
	// StrategySimilarity ranks by raw cosine similarity.
	StrategySimilarity Strategy = iota
	// StrategyMMR re-ranks with maximal marginal relevance to trade
	// relevance against diversity.
	StrategyMMR
	// StrategyHybrid blends dense similarity with lexical term overlap.
	StrategyHybrid
)

// ParseStrategy converts a wire name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "similarity", "":
		return StrategySimilarity, nil
	case "mmr":
		return StrategyMMR, nil
	case "hybrid":
		return StrategyHybrid, nil
	default:
		return 0, fmt.Errorf("unknown retrieval strategy: %q", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategySimilarity:
		return "similarity"
	case StrategyMMR:
		return "mmr"
	case StrategyHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySimilarity, StrategyMMR, StrategyHybrid:
		return true
	default:
		return false
	}
}
