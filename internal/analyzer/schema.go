package analyzer

import (
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
)

// generateSchema reflects T into a JSON schema map suitable for the
// response-format declaration.
func generateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	data, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		panic(err)
	}
	ensureStrictSchema(schema)
	return schema
}

// ensureStrictSchema forces the shape strict mode requires: every object
// closes additionalProperties and lists all of its properties as required.
func ensureStrictSchema(schema map[string]interface{}) {
	if schemaType, ok := schema["type"].(string); ok && schemaType == "object" {
		schema["additionalProperties"] = false

		if properties, ok := schema["properties"].(map[string]interface{}); ok {
			required := make([]string, 0, len(properties))
			for name := range properties {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}

	if properties, ok := schema["properties"].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureStrictSchema(propMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		ensureStrictSchema(items)
	}
}
