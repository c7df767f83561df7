package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldflow/internal/model"
)

func TestFoldName_AccentAndCaseInsensitive(t *testing.T) {
	// NFD (decomposed) and NFC (composed) spellings of the same word.
	decomposed := "Manutenção"
	composed := "manutenção"
	assert.Equal(t, foldName(composed), foldName(decomposed))
	assert.Equal(t, foldName("  ELÉTRICA "), foldName("elétrica"))
}

func TestMatchServiceType_StrategyOrder(t *testing.T) {
	types := []model.ServiceType{
		{ID: "st-1", Name: "Manutenção"},
		{ID: "st-2", Name: "Manutenção Elétrica"},
	}

	// Exact name wins even though "Manutenção" is a substring of the
	// longer name.
	st, strategy, _ := matchServiceType("Manutenção", types)
	require.NotNil(t, st)
	assert.Equal(t, "st-1", st.ID)
	assert.Equal(t, "exact-name", strategy)

	// Id match beats everything.
	st, strategy, _ = matchServiceType("st-2", types)
	require.NotNil(t, st)
	assert.Equal(t, "st-2", st.ID)
	assert.Equal(t, "exact-id", strategy)

	// Folded match for accent-free input.
	st, strategy, _ = matchServiceType("manutencao eletrica", types)
	require.NotNil(t, st)
	assert.Equal(t, "st-2", st.ID)
	assert.Equal(t, "folded-name", strategy)

	// Substring is the last resort.
	st, strategy, _ = matchServiceType("Manutenção Elétrica predial", types)
	require.NotNil(t, st)
	assert.Equal(t, "substring", strategy)
}

func TestMatchServiceType_NoMatchListsStrategies(t *testing.T) {
	types := []model.ServiceType{{ID: "st-1", Name: "Manutenção"}}

	st, strategy, tried := matchServiceType("Calibração", types)
	assert.Nil(t, st)
	assert.Empty(t, strategy)
	assert.Equal(t, []string{"exact-id", "exact-name", "folded-name", "substring"}, tried)
}

func TestMatchServiceType_EmptyOperationNeverMatches(t *testing.T) {
	types := []model.ServiceType{{ID: "st-1", Name: "Manutenção"}}
	st, _, _ := matchServiceType("", types)
	assert.Nil(t, st)
}

func TestFamilyMatches(t *testing.T) {
	assert.True(t, familyMatches("Elétrica", "elétrica"))
	assert.True(t, familyMatches("Elétrica Industrial", "Elétrica"), "containment counts")
	assert.False(t, familyMatches("Elétrica", "Hidráulica"))
	assert.False(t, familyMatches("", "Elétrica"), "unknown family matches nothing")
	assert.False(t, familyMatches("Elétrica", ""))
}
