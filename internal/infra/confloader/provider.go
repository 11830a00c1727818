package confloader

import "errors"

// errReadBytes is returned by mapProvider.ReadBytes.
var errReadBytes = errors.New("confloader: map provider does not support ReadBytes")

// mapProvider is a koanf provider backed by a map. Dotted keys are
// unflattened on Read.
type mapProvider map[string]any

// ReadBytes is not supported; koanf calls Read for parser-less loads.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

// Read returns the map.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return unflatten(out), nil
}

// unflatten turns {"a.b": 1} into {"a": {"b": 1}}.
func unflatten(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		parts := splitKey(k)
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out
}

func splitKey(k string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(k); i++ {
		if k[i] == '.' {
			parts = append(parts, k[start:i])
			start = i + 1
		}
	}
	return append(parts, k[start:])
}
