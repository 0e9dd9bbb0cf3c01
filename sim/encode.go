package sim

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToJSON serializes a model to indented JSON.
func ToJSON(m *Model) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sim: marshal json: %w", err)
	}
	return data, nil
}

// FromJSON parses a serialized model.
func FromJSON(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sim: parse json: %w", err)
	}
	return &m, nil
}

// ToYAML serializes a model to YAML.
func ToYAML(m *Model) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("sim: marshal yaml: %w", err)
	}
	return data, nil
}

// FromYAML parses a YAML-serialized model.
func FromYAML(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sim: parse yaml: %w", err)
	}
	return &m, nil
}
