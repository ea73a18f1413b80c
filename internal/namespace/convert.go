package namespace

import "encoding/json"

// toDSLValue converts a typed Go result (structs, slices of structs,
// etc.) into the plain-value tree evalengine.eval understands
// (nil/bool/string/float64/[]any/map[string]any), via a JSON
// round-trip. This keeps every namespace-facing Go type a normal
// exported struct (clean API, clean logging) while letting the
// interpreter handle call results uniformly.
func toDSLValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
