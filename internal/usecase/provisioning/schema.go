package provisioning

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"raptorfleet/internal/errs"
)

// Schema returns the JSON Schema of a provisioning document.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(&Document{})
	schema.Title = "raptor provisioning document"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "encode provisioning schema")
	}
	return data, nil
}
