package validation

import (
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nvallejo/weft/pkg/schema"
)

// nodeParamSchemas maps node types to the JSON Schemas their parameters
// must satisfy. Types without an entry accept any parameters; the trigger
// and merge variants are deliberately absent.
var nodeParamSchemas = map[string]string{
	"http-request": `{
	  "type": "object",
	  "required": ["url"],
	  "properties": {
	    "url": { "type": "string", "minLength": 1 },
	    "method": {
	      "type": "string",
	      "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"]
	    },
	    "headers": { "type": "object" },
	    "body": {},
	    "timeout": { "type": "string", "pattern": "^[0-9]+(ms|s|m)$" },
	    "credentialId": { "type": "string" }
	  }
	}`,

	"if": `{
	  "type": "object",
	  "required": ["condition"],
	  "properties": {
	    "condition": { "type": "string", "minLength": 1 }
	  }
	}`,

	"switch": `{
	  "type": "object",
	  "required": ["field"],
	  "properties": {
	    "field": { "type": "string", "minLength": 1 },
	    "cases": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "required": ["value", "branch"],
	        "properties": {
	          "value": {},
	          "branch": { "type": "string", "minLength": 1 }
	        }
	      }
	    }
	  }
	}`,

	"split": `{
	  "type": "object",
	  "required": ["field"],
	  "properties": {
	    "field": { "type": "string", "minLength": 1 }
	  }
	}`,

	"data-transform": `{
	  "type": "object",
	  "properties": {
	    "mapping": { "type": "object" },
	    "query": { "type": "string" }
	  }
	}`,

	"log": `{
	  "type": "object",
	  "properties": {
	    "level": { "type": "string", "enum": ["debug", "info", "warn", "error"] },
	    "channel": { "type": "string" },
	    "message": { "type": "string" }
	  }
	}`,
}

var (
	paramSchemaOnce     sync.Once
	paramSchemaCompiled map[string]*jsonschema.Schema
	paramSchemaErr      error
)

func compiledParamSchemas() (map[string]*jsonschema.Schema, error) {
	paramSchemaOnce.Do(func() {
		compiled := make(map[string]*jsonschema.Schema, len(nodeParamSchemas))
		for nodeType, raw := range nodeParamSchemas {
			s, err := compileDynamic(raw, fmt.Sprintf("weft://node-params/%s", nodeType))
			if err != nil {
				paramSchemaErr = fmt.Errorf("compile %s parameter schema: %w", nodeType, err)
				return
			}
			compiled[nodeType] = s
		}
		paramSchemaCompiled = compiled
	})
	return paramSchemaCompiled, paramSchemaErr
}

// ValidateNodeParameters checks a node's parameters against its type's
// schema. Types without a schema, including unregistered ones, pass: an
// unknown type is the dispatcher's concern, not the validator's.
func ValidateNodeParameters(nodeType string, params map[string]any) error {
	schemas, err := compiledParamSchemas()
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "parameter schemas unavailable").WithCause(err)
	}

	compiled, ok := schemas[nodeType]
	if !ok {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}
	doc, err := toJSONValue(params)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize parameters").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toEngineError(err)
	}
	return nil
}
