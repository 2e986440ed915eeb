package model

import (
	"encoding/json"
	"fmt"
)

// Metadata is a free-form key/value container attached to entities. It is
// persisted as a JSON object in a TEXT column.
type Metadata map[string]string

// Merge overwrites keys in m with values from other. The merge is shallow:
// keys are replaced wholesale, never deep-merged. A nil receiver returns a
// copy of other so callers can assign the result back.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		m = make(Metadata, len(other))
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// MarshalJSON serializes nil maps as an empty object so the stored column is
// always valid JSON.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

// ParseMetadata decodes the JSON object stored in a TEXT column. An empty
// string decodes to an empty map.
func ParseMetadata(raw string) (Metadata, error) {
	if raw == "" {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if m == nil {
		m = Metadata{}
	}
	return m, nil
}
