package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldflow/internal/forms"
	"fieldflow/internal/model"
)

// RulePack is the YAML shape of a back-office rule export: the full set
// of resolution inputs in one file.
type RulePack struct {
	ServiceTypes []model.ServiceType    `yaml:"service_types"`
	Equipments   []model.Equipment      `yaml:"equipments,omitempty"`
	Templates    []model.FormTemplate   `yaml:"templates"`
	Rules        []model.ActivationRule `yaml:"rules"`
}

// LoadRulePack reads a rule pack, folds the legacy wildcard spelling, and
// builds a validated rule store. Unknown YAML fields are rejected.
func LoadRulePack(path string) (*forms.RuleStore, *RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rule pack: %w", err)
	}

	var pack RulePack
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pack); err != nil {
		return nil, nil, fmt.Errorf("parse rule pack: %w", err)
	}

	// Back-office exports spell the match-all family "Todos"; internally
	// the wildcard is the empty family.
	for i := range pack.Rules {
		if strings.EqualFold(strings.TrimSpace(pack.Rules[i].EquipmentFamily), forms.WildcardFamily) {
			pack.Rules[i].EquipmentFamily = ""
		}
	}

	rs, err := forms.NewRuleStore(pack.ServiceTypes, pack.Equipments, pack.Templates, pack.Rules)
	if err != nil {
		return nil, &pack, err
	}
	return rs, &pack, nil
}

// OrderFile is the YAML shape of an order used for resolution dry runs.
type OrderFile struct {
	ID              string `yaml:"id"`
	Title           string `yaml:"title,omitempty"`
	OperationType   string `yaml:"operation_type,omitempty"`
	EquipmentName   string `yaml:"equipment_name,omitempty"`
	EquipmentSerial string `yaml:"equipment_serial,omitempty"`
	FormID          string `yaml:"form_id,omitempty"`
}

// ToOrder converts the file shape to a domain order.
func (o OrderFile) ToOrder() model.ServiceOrder {
	return model.ServiceOrder{
		ID:              o.ID,
		Title:           o.Title,
		OperationType:   o.OperationType,
		EquipmentName:   o.EquipmentName,
		EquipmentSerial: o.EquipmentSerial,
		FormID:          o.FormID,
	}
}

// LoadOrderFile reads an order description for a resolution dry run.
func LoadOrderFile(path string) (OrderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OrderFile{}, fmt.Errorf("read order file: %w", err)
	}
	var o OrderFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&o); err != nil {
		return OrderFile{}, fmt.Errorf("parse order file: %w", err)
	}
	if o.ID == "" {
		return OrderFile{}, fmt.Errorf("order file: id is required")
	}
	return o, nil
}
