package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTemplate() FormTemplate {
	return FormTemplate{
		ID:     "tpl-1",
		Title:  "Checklist",
		Active: true,
		Fields: []FormField{
			{ID: "f1", Label: "Estado", Type: FieldSelect, Options: []string{"Bom", "Ruim"}},
			{ID: "f2", Label: "Detalhe", Type: FieldText, Condition: &FieldCondition{
				SourceFieldID: "f1",
				ExpectedValue: "Ruim",
			}},
		},
	}
}

func TestFormTemplate_Validate_OK(t *testing.T) {
	tmpl := validTemplate()
	require.NoError(t, tmpl.Validate())
}

func TestFormTemplate_Validate_DuplicateFieldID(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Fields = append(tmpl.Fields, FormField{ID: "f1", Label: "Dup", Type: FieldText})

	err := tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field id")
}

func TestFormTemplate_Validate_SelectNeedsOptions(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Fields[0].Options = nil

	err := tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SELECT requires options")
}

func TestFormTemplate_Validate_ConditionMustReferenceEarlierField(t *testing.T) {
	tmpl := FormTemplate{
		ID: "tpl-fwd",
		Fields: []FormField{
			{ID: "f1", Label: "A", Type: FieldText, Condition: &FieldCondition{
				SourceFieldID: "f2", ExpectedValue: "x",
			}},
			{ID: "f2", Label: "B", Type: FieldText},
		},
	}

	err := tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not appear earlier")
}

func TestFormTemplate_Validate_SelfReferenceRejected(t *testing.T) {
	tmpl := FormTemplate{
		ID: "tpl-self",
		Fields: []FormField{
			{ID: "f1", Label: "A", Type: FieldText, Condition: &FieldCondition{
				SourceFieldID: "f1", ExpectedValue: "x",
			}},
		},
	}
	require.Error(t, tmpl.Validate())
}

func TestFormTemplate_Validate_UnknownOperator(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Fields[1].Condition.Operator = "greater_than"
	require.Error(t, tmpl.Validate())
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusBlocked.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestActivationRule_Wildcard(t *testing.T) {
	assert.True(t, ActivationRule{}.Wildcard())
	assert.False(t, ActivationRule{EquipmentFamily: "Chillers"}.Wildcard())
}
