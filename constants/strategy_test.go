package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"lexical":         StrategyLexical,
		" Hybrid ":        StrategyHybrid,
		"openai":          StrategySemanticOpenAI,
		"semantic-ollama": StrategySemanticOllama,
		"local":           StrategySemanticLocal,
	}
	for in, want := range cases {
		got, ok := ParseStrategy(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseStrategy("quantum")
	assert.False(t, ok)
	_, ok = ParseStrategy("")
	assert.False(t, ok)
}

func TestStrategyIsSemantic(t *testing.T) {
	assert.True(t, StrategySemanticOpenAI.IsSemantic())
	assert.False(t, StrategyLexical.IsSemantic())
	assert.False(t, StrategyHybrid.IsSemantic())
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(JobStatusPending, JobStatusParsing))
	assert.True(t, CanTransition(JobStatusParsing, JobStatusMatching))
	assert.True(t, CanTransition(JobStatusMatching, JobStatusCompleted))
	assert.True(t, CanTransition(JobStatusPending, JobStatusCancelled))
	assert.False(t, CanTransition(JobStatusPending, JobStatusCompleted))
	for _, terminal := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
		for _, to := range AllJobStatuses {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestCanonicalizeWorkType(t *testing.T) {
	wt, ok := CanonicalizeWorkType("Earth Works")
	assert.True(t, ok)
	assert.Equal(t, Earthworks, wt)

	wt, ok = CanonicalizeWorkType("Concrete")
	assert.True(t, ok)
	assert.Equal(t, Concrete, wt)

	wt, ok = CanonicalizeWorkType("supply pvc pipe")
	assert.True(t, ok)
	assert.Equal(t, Plumbing, wt)

	_, ok = CanonicalizeWorkType("miscellaneous")
	assert.False(t, ok)
}
