package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldflow/internal/model"
)

func testRuleStore(t *testing.T) *RuleStore {
	t.Helper()
	rs, err := NewRuleStore(
		[]model.ServiceType{
			{ID: "st-manut", Name: "Manutenção"},
			{ID: "st-inst", Name: "Instalação"},
		},
		[]model.Equipment{
			{ID: "eq-1", SerialNumber: "SN-100", Model: "Chiller X200", Family: "Chillers"},
			{ID: "eq-2", SerialNumber: "SN-200", Model: "Split 9000", Family: "Climatização"},
		},
		[]model.FormTemplate{
			{ID: "tpl-chiller", Title: "Checklist Chillers", Active: true,
				Fields: []model.FormField{{ID: "f1", Label: "Pressão", Type: model.FieldText}}},
			{ID: "tpl-geral", Title: "Checklist Geral", Active: true},
			{ID: "tpl-inst", Title: "Instalação de equipamento", Active: true,
				ServiceTypes: []string{"Instalação"}},
			{ID: "tpl-explicit", Title: "Checklist dirigido", Active: true},
		},
		[]model.ActivationRule{
			{ID: "r-1", ServiceTypeID: "st-manut", EquipmentFamily: "Chillers", FormTemplateID: "tpl-chiller"},
			{ID: "r-2", ServiceTypeID: "st-manut", EquipmentFamily: "", FormTemplateID: "tpl-geral"},
		},
	)
	require.NoError(t, err)
	return rs
}

func TestResolve_ExplicitFormBypassesRules(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{
		ID:              "ord-1",
		FormID:          "tpl-explicit",
		OperationType:   "Manutenção",
		EquipmentSerial: "SN-100", // would hit the chiller rule without the explicit id
	}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepExplicit, res.Step)
	assert.Equal(t, "tpl-explicit", res.Template.ID)
	assert.Nil(t, res.ServiceType, "explicit resolution skips type matching")
}

func TestResolve_DefaultFormIDDoesNotBypass(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{
		ID:              "ord-2",
		FormID:          DefaultFormID,
		OperationType:   "Manutenção",
		EquipmentSerial: "SN-100",
	}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepRule, res.Step, "the generic form id must fall through to rule search")
	assert.Equal(t, "tpl-chiller", res.Template.ID)
}

func TestResolve_ExplicitFormMissing(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{ID: "ord-3", FormID: "tpl-gone", OperationType: "Manutenção"}

	_, err := Resolve(order, rs)
	require.Error(t, err)
	assert.True(t, IsExplicitFormMissing(err))
	assert.False(t, IsNoFormResolved(err))

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "tpl-gone", re.FormID)
}

func TestResolve_ExactFamilyBeatsWildcard(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{
		ID:              "ord-4",
		OperationType:   "manutencao", // accent-insensitive folded match
		EquipmentSerial: "SN-100",
	}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepRule, res.Step)
	assert.Equal(t, "tpl-chiller", res.Template.ID)
	assert.Equal(t, "folded-name", res.TypeStrategy)
	assert.Equal(t, "Chillers", res.EquipmentFamily)
}

func TestResolve_WildcardWhenFamilyHasNoRule(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{
		ID:              "ord-5",
		OperationType:   "Manutenção",
		EquipmentSerial: "SN-200", // family Climatização has no exact rule
	}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepWildcard, res.Step)
	assert.Equal(t, "tpl-geral", res.Template.ID)
}

func TestResolve_LegacyTextFallbackMatchesRuleFamily(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{
		ID:            "ord-6",
		Title:         "Manutenção preventiva em chillers do bloco B",
		OperationType: "Manutenção",
		// No serial and no catalog equipment: family is unknown.
	}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepRule, res.Step, "rule family found in the order title text")
	assert.Equal(t, "tpl-chiller", res.Template.ID)
	assert.Empty(t, res.EquipmentFamily)
}

func TestResolve_SoftMatchOnDeclaredServiceTypes(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{ID: "ord-7", OperationType: "Instalação"}

	res, err := Resolve(order, rs)
	require.NoError(t, err)
	assert.Equal(t, StepSoftMatch, res.Step)
	assert.Equal(t, "tpl-inst", res.Template.ID)
}

func TestResolve_NoFormResolvedCarriesDiagnostics(t *testing.T) {
	rs := testRuleStore(t)
	order := model.ServiceOrder{ID: "ord-8", OperationType: "Calibração"}

	_, err := Resolve(order, rs)
	require.Error(t, err)
	assert.True(t, IsNoFormResolved(err))

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.ElementsMatch(t, []string{"Manutenção", "Instalação"}, re.Diagnostics.CandidateServiceTypes)
	assert.Contains(t, re.Diagnostics.StrategiesTried, "substring")
}

func TestNewRuleStore_RejectsDanglingRuleRefs(t *testing.T) {
	_, err := NewRuleStore(
		[]model.ServiceType{{ID: "st-1", Name: "Manutenção"}},
		nil,
		[]model.FormTemplate{{ID: "tpl-1", Title: "T"}},
		[]model.ActivationRule{{ID: "r-1", ServiceTypeID: "st-1", FormTemplateID: "tpl-missing"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown form template")

	_, err = NewRuleStore(
		[]model.ServiceType{{ID: "st-1", Name: "Manutenção"}},
		nil,
		[]model.FormTemplate{{ID: "tpl-1", Title: "T"}},
		[]model.ActivationRule{{ID: "r-1", ServiceTypeID: "st-ghost", FormTemplateID: "tpl-1"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service type")
}

func TestNewRuleStore_RejectsDuplicateWildcard(t *testing.T) {
	_, err := NewRuleStore(
		[]model.ServiceType{{ID: "st-1", Name: "Manutenção"}},
		nil,
		[]model.FormTemplate{{ID: "tpl-1", Title: "T"}, {ID: "tpl-2", Title: "U"}},
		[]model.ActivationRule{
			{ID: "r-1", ServiceTypeID: "st-1", FormTemplateID: "tpl-1"},
			{ID: "r-2", ServiceTypeID: "st-1", FormTemplateID: "tpl-2"},
		},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one wildcard rule")
}
