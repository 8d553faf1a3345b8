package ai

import (
	"encoding/json"
	"fmt"
)

// Schema kinds, spelled the way the generative service expects them in
// a responseSchema directive.
const (
	TypeString = "STRING"
	TypeObject = "OBJECT"
	TypeArray  = "ARRAY"
)

// Schema is a declarative structured-output contract. It is sent with a
// generation request to constrain the model, and applied again locally
// after parse; the remote enforcement alone is not trusted.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// SchemaError is a structured response that parsed as JSON but violated
// the declared contract, or did not parse at all when JSON was mandated.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ai schema: %s", e.Reason)
	}
	return fmt.Sprintf("ai schema: %s: %s", e.Path, e.Reason)
}

// Validate parses raw and checks it against the schema. Only presence
// and kind are enforced; free-text field contents are the model's
// business.
func (s *Schema) Validate(raw []byte) error {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return &SchemaError{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	return s.check(value, "$")
}

func (s *Schema) check(value any, path string) error {
	switch s.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return &SchemaError{Path: path, Reason: "expected string"}
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return &SchemaError{Path: path, Reason: "expected object"}
		}
		for _, name := range s.Required {
			v, present := obj[name]
			if !present || v == nil {
				return &SchemaError{Path: path + "." + name, Reason: "missing required field"}
			}
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present || v == nil {
				continue // optional and absent
			}
			if err := prop.check(v, path+"."+name); err != nil {
				return err
			}
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return &SchemaError{Path: path, Reason: "expected array"}
		}
		if s.Items != nil {
			for i, v := range arr {
				if err := s.Items.check(v, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	default:
		return &SchemaError{Path: path, Reason: fmt.Sprintf("unknown schema type %q", s.Type)}
	}
	return nil
}
