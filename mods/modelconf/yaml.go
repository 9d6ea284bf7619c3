package modelconf

import (
	"fmt"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"gopkg.in/yaml.v3"
)

// LoadYAML builds a model from a YAML or JSON definition.
func LoadYAML(content []byte) (*kalman.Model, error) {
	tree, err := ParseYAML(content)
	if err != nil {
		return nil, err
	}
	return Build(tree)
}

// ParseYAML decodes a YAML or JSON definition into the tree Build accepts.
func ParseYAML(content []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("model definition: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("model definition: empty document")
	}
	return normalize(raw).(map[string]any), nil
}

// normalize rewrites the maps yaml.v3 may produce for nested mappings
// with non string keys.
func normalize(v any) any {
	switch n := v.(type) {
	case map[string]any:
		for k, e := range n {
			n[k] = normalize(e)
		}
		return n
	case map[any]any:
		ret := make(map[string]any, len(n))
		for k, e := range n {
			ret[fmt.Sprint(k)] = normalize(e)
		}
		return ret
	case []any:
		for i, e := range n {
			n[i] = normalize(e)
		}
		return n
	default:
		return v
	}
}
