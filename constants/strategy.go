package constants

import "strings"

// Strategy selects the matching algorithm for a job or a single match.
type Strategy string

const (
	StrategyLexical        Strategy = "LEXICAL"
	StrategySemanticLocal  Strategy = "SEMANTIC_LOCAL"
	StrategySemanticOpenAI Strategy = "SEMANTIC_OPENAI"
	StrategySemanticOllama Strategy = "SEMANTIC_OLLAMA"
	StrategyHybrid         Strategy = "HYBRID"
)

// Method tags the scorer that produced a result. Every Strategy is a Method;
// MethodContext marks context-header rows that never reach a scorer.
type Method string

const (
	MethodLexical        Method = Method(StrategyLexical)
	MethodSemanticLocal  Method = Method(StrategySemanticLocal)
	MethodSemanticOpenAI Method = Method(StrategySemanticOpenAI)
	MethodSemanticOllama Method = Method(StrategySemanticOllama)
	MethodHybrid         Method = Method(StrategyHybrid)
	MethodContext        Method = "CONTEXT"
	MethodNone           Method = "NONE"
)

var allStrategies = []Strategy{
	StrategyLexical,
	StrategySemanticLocal,
	StrategySemanticOpenAI,
	StrategySemanticOllama,
	StrategyHybrid,
}

// Strategies returns every known strategy.
func Strategies() []Strategy {
	out := make([]Strategy, len(allStrategies))
	copy(out, allStrategies)
	return out
}

// ParseStrategy canonicalizes user input ("lexical", "openai", "hybrid", ...).
func ParseStrategy(input string) (Strategy, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return "", false
	}

	// short aliases
	aliases := map[string]Strategy{
		"FUZZY":  StrategyLexical,
		"LOCAL":  StrategySemanticLocal,
		"OPENAI": StrategySemanticOpenAI,
		"OLLAMA": StrategySemanticOllama,
	}
	if s, ok := aliases[normalized]; ok {
		return s, true
	}
	for _, s := range allStrategies {
		if normalized == string(s) {
			return s, true
		}
	}
	return "", false
}

// IsSemantic reports whether the strategy is embedding based.
func (s Strategy) IsSemantic() bool {
	return strings.HasPrefix(string(s), "SEMANTIC_")
}
