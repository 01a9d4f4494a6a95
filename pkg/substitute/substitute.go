package substitute

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Engine rewrites every string leaf of a parsed JSON document,
// replacing all occurrences of Search with Replace. Map keys are never
// touched, only values.
type Engine struct {
	Search  string
	Replace string
}

func New(search, replace string) Engine {
	return Engine{Search: search, Replace: replace}
}

// Apply returns a rebuilt copy of doc with the substitution applied to
// every string leaf, plus the number of leaves that changed. A leaf
// with multiple occurrences counts once.
func (e Engine) Apply(doc any) (any, int) {
	changed := 0
	result := e.replaceInValue(doc, &changed)
	return result, changed
}

// replaceInValue recursively traverses a value and replaces all string
// occurrences of the search string
func (e Engine) replaceInValue(obj any, changed *int) any {
	switch v := obj.(type) {
	case string:
		if strings.Contains(v, e.Search) {
			newValue := strings.ReplaceAll(v, e.Search, e.Replace)
			*changed++
			log.Debug().Msgf("Replaced '%s' -> '%s'", v, newValue)
			return newValue
		}
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = e.replaceInValue(value, changed)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, value := range v {
			result[i] = e.replaceInValue(value, changed)
		}
		return result
	default:
		// For other types (numbers, bools, null), return as-is
		return obj
	}
}
