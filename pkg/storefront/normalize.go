package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeID returns the first non-empty identifier. Backend documents carry
// their identity as either "_id" or "id"; every decoder in this package
// resolves it here and nowhere else.
func NormalizeID(candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// identity is embedded in wire structs to capture both identifier spellings.
type identity struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
}

func (i identity) value() string {
	return NormalizeID(i.MongoID, i.ID)
}

// ref is a field that holds either a bare identifier or a populated document.
type ref struct {
	ID   string
	Name string
	Doc  json.RawMessage
}

func (r *ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.ID)
	}
	var doc struct {
		identity
		Name string `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fmt.Errorf("decoding reference: %w", err)
	}
	r.ID = doc.value()
	r.Name = doc.Name
	r.Doc = append(json.RawMessage(nil), trimmed...)
	return nil
}

// unwrap decodes data into out, looking first under the named envelope keys
// (for example {"cart": {...}} or {"data": [...]}) and falling back to the
// whole body.
func unwrap(data []byte, out any, keys ...string) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty response body")
	}
	if trimmed[0] == '{' && len(keys) > 0 {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return err
		}
		for _, key := range keys {
			if inner, ok := envelope[key]; ok && !isNull(inner) {
				if key != "data" {
					return json.Unmarshal(inner, out)
				}
				// {"data": {"cart": ...}} nests one more level.
				return unwrap(inner, out, withoutKey(keys, "data")...)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

func withoutKey(keys []string, drop string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != drop {
			out = append(out, key)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decimalOr(value *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if value == nil {
		return fallback
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	return NormalizeID(values...)
}
