// Package validators provides the reusable and survey-specific validators
// that pipelines bind to record paths.
package validators

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"reefcore/internal/validation"
	"reefcore/pkg/recordpath"
)

// relative strips the list prefix from an element path bound alongside list.
func relative(list, path string) string {
	return strings.TrimPrefix(path, list+recordpath.Separator)
}

// elementPaths returns the bound paths from index from on, relative to the
// list bound at index 0.
func elementPaths(in validation.Input, from int) []string {
	list := in.Path(0)
	out := make([]string, 0, len(in.Paths))
	for i := from; i < len(in.Paths); i++ {
		out = append(out, relative(list, in.Paths[i]))
	}
	return out
}

// parseID normalises a uuid string. ok is false for anything unparseable.
func parseID(v any) (string, bool) {
	s, isString := v.(string)
	if !isString {
		return "", false
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// collectIDs returns the distinct parseable ids found at key in each row, sorted.
func collectIDs(rows []any, key string) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		v, ok := recordpath.Get(row, key)
		if !ok {
			continue
		}
		if id, ok := parseID(v); ok {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
