package flatten

import (
	"fmt"
	"sort"
	"strconv"
)

// sortedKeys returns m's keys in sorted order, since Go map iteration
// order is randomized and the traversal needs to be deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// toDisplayString renders a leaf value the way Python's str() would
// for joining purposes.
func toDisplayString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprintf("%v", val)
	}
}
