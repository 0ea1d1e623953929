package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func jsonScan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("types: unsupported json Scan type %T", src)
	}
}

// JSONMap is a free-form JSON object column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return jsonValue(map[string]any(m))
}

func (m *JSONMap) Scan(src any) error {
	out := map[string]any{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// ItemAttributes are the per-item product options chosen at checkout.
type ItemAttributes struct {
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	PrintArea string `json:"printArea,omitempty"`
}

func (a ItemAttributes) Value() (driver.Value, error) {
	return jsonValue(a)
}

func (a *ItemAttributes) Scan(src any) error {
	var out ItemAttributes
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

// Asset is one printable image attached to an order item.
type Asset struct {
	URL       string `json:"url"`
	PrintArea string `json:"printArea,omitempty"`
}

type AssetList []Asset

func (l AssetList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]Asset(l))
}

func (l *AssetList) Scan(src any) error {
	out := []Asset{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// First returns the first asset, if any.
func (l AssetList) First() (Asset, bool) {
	if len(l) == 0 {
		return Asset{}, false
	}
	return l[0], true
}

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]string(l))
}

func (l *StringList) Scan(src any) error {
	out := []string{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// ToJSONMap round-trips v through encoding/json so the result only holds
// JSON-native values, the same shape a JSONMap has after a database read.
func ToJSONMap(v any) (JSONMap, error) {
	if v == nil {
		return JSONMap{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("types: value is not a json object: %w", err)
	}
	return out, nil
}
