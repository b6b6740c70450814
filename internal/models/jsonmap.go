package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is an open key/value document stored as JSONB. Values are whatever
// encoding/json produces: string, float64, bool, nil, []any or map[string]any.
type JSONMap map[string]any

// Value encodes the map as text, writing {} for nil so NOT NULL columns stay
// satisfied. lib/pq would send []byte as bytea.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}

	decoded := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
	}
	*m = decoded
	return nil
}

// OrEmpty never returns nil, so responses encode {} instead of null.
func (m JSONMap) OrEmpty() JSONMap {
	if m == nil {
		return JSONMap{}
	}
	return m
}
