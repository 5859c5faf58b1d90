package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tcm-backend/config"
)

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		FastModels:   []string{"gpt-4o-mini"},
		ExpertModels: []string{"gpt-4o", "gpt-4o-mini"},
		MasterModels: []string{"gpt-4-turbo", "gpt-4o"},
	}
}

func TestCandidatesOrdering(t *testing.T) {
	s := NewSelector(testAIConfig())
	assert.Equal(t, []string{"gpt-4-turbo", "gpt-4o"}, s.Candidates(TierMaster))
}

func TestUnknownTierDegradesToDefault(t *testing.T) {
	s := NewSelector(testAIConfig())
	assert.Equal(t, s.Candidates(TierExpert), s.Candidates("galactic"))
}

func TestCandidatesReturnsCopy(t *testing.T) {
	s := NewSelector(testAIConfig())
	first := s.Candidates(TierFast)
	first[0] = "mutated"
	assert.Equal(t, "gpt-4o-mini", s.Candidates(TierFast)[0])
}

func TestTierForLevel(t *testing.T) {
	s := NewSelector(testAIConfig())
	assert.Equal(t, TierFast, s.TierForLevel("resident"))
	assert.Equal(t, TierExpert, s.TierForLevel("attending"))
	assert.Equal(t, TierMaster, s.TierForLevel("chief"))
	assert.Equal(t, TierExpert, s.TierForLevel("intern-of-the-future"))
}

func TestExtractAliasOrder(t *testing.T) {
	payload := map[string]any{"analysis": "a", "description": "d"}
	v, ok := ExtractAlias(payload, []string{"observation", "analysis", "description"})
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = ExtractAlias(payload, []string{"missing"})
	assert.False(t, ok)
}

func TestNormalizeCanonicalizesAlias(t *testing.T) {
	req := Request{JSONMode: true, Aliases: []string{"observation", "analysis"}}
	vr := ValidatedResult{IsValid: true, Payload: map[string]any{"analysis": "slippery pulse"}}
	res := normalize(req, vr, "gpt-4o", nil)
	assert.Equal(t, "slippery pulse", res.Payload["observation"])
}
