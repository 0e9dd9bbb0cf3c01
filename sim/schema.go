package sim

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

var compiledSchema = jsonschema.MustCompileString("sim.schema.json", schemaJSON)

// ValidateSerialized checks a JSON-serialized model against the embedded
// schema. It guards imports of externally produced SIM documents before
// they are parsed into a Model.
func ValidateSerialized(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("sim: not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("sim: schema violation: %w", err)
	}
	return nil
}
