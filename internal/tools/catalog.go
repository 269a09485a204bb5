// Tool definitions listed by tools/list.

package tools

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a tool to clients.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON Schema object of a tool's arguments.
type InputSchema struct {
	Type       string                                             `json:"type"`
	Properties *orderedmap.OrderedMap[string, *jsonschema.Schema] `json:"properties"`
	Required   []string                                           `json:"required,omitempty"`
}

// Property returns the schema of one argument, or nil.
func (s *InputSchema) Property(name string) *jsonschema.Schema {
	if s.Properties == nil {
		return nil
	}
	p, _ := s.Properties.Get(name)
	return p
}

// schemaFor reflects the arguments struct T into an input schema.
//
// Properties keep the struct field order. Fields without omitempty are
// required.
func schemaFor[T any]() InputSchema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, AllowAdditionalProperties: true}
	s := r.Reflect(new(T))
	props := s.Properties
	if props == nil {
		props = orderedmap.New[string, *jsonschema.Schema]()
	}
	return InputSchema{Type: "object", Properties: props, Required: s.Required}
}
