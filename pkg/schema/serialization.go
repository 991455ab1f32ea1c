package schema

import (
	"encoding/json"
	"fmt"
)

type fieldJSON struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// MarshalJSON serializes the schema as an ordered list of {key, type} pairs.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	raw := make([]fieldJSON, 0, len(s))
	for _, f := range s {
		if f.Type == nil {
			return nil, fmt.Errorf("field %s: type is nil", f.Key)
		}
		raw = append(raw, fieldJSON{Key: f.Key, Type: f.Type.Name()})
	}
	return json.Marshal(raw)
}

// UnmarshalJSON accepts either the ordered list form or a map of field names
// to type strings (ordered by name).
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(data) == "null" {
		*s = nil
		return nil
	}

	var list []fieldJSON
	if err := json.Unmarshal(data, &list); err == nil {
		parsed := make(Schema, 0, len(list))
		for _, f := range list {
			t, err := ParseField(f.Key, f.Type)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
			parsed = append(parsed, Field{Key: f.Key, Type: t})
		}
		*s = parsed
		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Fallback: try map[string]any for cases where JSON decodes to mixed types
		var rawAny map[string]any
		if errAny := json.Unmarshal(data, &rawAny); errAny != nil {
			return err
		}
		raw = make(map[string]string, len(rawAny))
		for key, value := range rawAny {
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: expected string type, got %T", key, value)
			}
			raw[key] = str
		}
	}

	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}
