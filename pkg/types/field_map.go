package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldMap represents a schema-less string map persisted as JSONB. The ad
// platform defines the keys, so consumers must tolerate missing entries.
type FieldMap map[string]string

// Value marshals the map into JSON for Postgres.
func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the map.
func (m *FieldMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("field map: unsupported scan type %T", value)
	}

	result := make(FieldMap)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

// Get returns the value for key, or empty string when absent.
func (m FieldMap) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}
