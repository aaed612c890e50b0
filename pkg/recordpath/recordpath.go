// Package recordpath reads and writes nested record trees addressed by dotted
// paths such as "sample_event.site" or "obs_belt_fishes.3.size".
//
// A tree is built from map[string]any, []any and scalar leaves, the shape
// produced by encoding/json when decoding into an any. Reads never fail on
// missing or mistyped intermediate nodes; they report the value as absent.
package recordpath

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Separator joins path segments.
const Separator = "."

// Split breaks a dotted path into its segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Join concatenates path segments, skipping empty ones.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, Separator)
}

// Get returns the value stored at path. The second result is false when any
// segment is missing, indexes out of range, or traverses a scalar.
func Get(tree any, path string) (any, bool) {
	node := tree
	for _, seg := range Split(path) {
		switch cur := node.(type) {
		case map[string]any:
			next, ok := cur[seg]
			if !ok {
				return nil, false
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur) {
				return nil, false
			}
			node = cur[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// Has reports whether path resolves to a non-nil value.
func Has(tree any, path string) bool {
	v, ok := Get(tree, path)
	return ok && v != nil
}

// Set stores value at path, creating intermediate maps as needed. Numeric
// segments index into existing lists and never grow them. Set returns false
// when a segment cannot be created, for example when a scalar already occupies
// an intermediate node.
func Set(tree map[string]any, path string, value any) bool {
	segs := Split(path)
	if tree == nil || len(segs) == 0 {
		return false
	}
	var node any = tree
	for i, seg := range segs {
		last := i == len(segs)-1
		switch cur := node.(type) {
		case map[string]any:
			if last {
				cur[seg] = value
				return true
			}
			next, ok := cur[seg]
			if !ok || next == nil {
				next = make(map[string]any)
				cur[seg] = next
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur) {
				return false
			}
			if last {
				cur[idx] = value
				return true
			}
			if cur[idx] == nil {
				cur[idx] = make(map[string]any)
			}
			node = cur[idx]
		default:
			return false
		}
	}
	return false
}

// String returns the value at path when it is a string.
func String(tree any, path string) (string, bool) {
	v, ok := Get(tree, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the value at path coerced to float64. Numeric strings are
// accepted because drafts are frequently typed in as text.
func Float(tree any, path string) (float64, bool) {
	v, ok := Get(tree, path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat coerces a scalar leaf to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// List returns the list stored at path.
func List(tree any, path string) ([]any, bool) {
	v, ok := Get(tree, path)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// Map returns the sub-record stored at path. The empty path returns tree itself.
func Map(tree any, path string) (map[string]any, bool) {
	v, ok := Get(tree, path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Clone deep-copies a tree of maps and lists. Leaves are shared.
func Clone(v any) any {
	switch cur := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(cur))
		for k, child := range cur {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(cur))
		for i, child := range cur {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}
