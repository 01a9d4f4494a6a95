package extract

import "strings"

// Field names that always carry an asset identifier, even when the
// substring heuristic below would miss them (e.g. "backingAssetId").
var identifierKeyAliases = map[string]struct{}{
	"uid":             {},
	"parentAssetUid":  {},
	"assetUid":        {},
	"asset_uid":       {},
	"backingAssetUid": {},
	"backingAssetId":  {},
}

// Field names whose values are asset objects or lists of asset objects.
// They get no special treatment beyond a debug log; recursion into them
// is the same as into any other value.
var assetContainerKeys = map[string]struct{}{
	"asset":         {},
	"assets":        {},
	"backingAsset":  {},
	"backingAssets": {},
}

// isIdentifierKey reports whether a field name should be treated as
// carrying an asset identifier. Deliberately over-inclusive: any key
// containing "uid" (case-insensitive) matches, so "uidList",
// "squidName", and even "liquid" are captured. Downstream CSV
// consumers depend on this exact behavior; tighten it only together
// with them.
func isIdentifierKey(key string) bool {
	if _, ok := identifierKeyAliases[key]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(key), "uid")
}

func isAssetContainerKey(key string) bool {
	_, ok := assetContainerKeys[key]
	return ok
}
