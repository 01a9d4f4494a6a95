package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miktoft/policy-transform/pkg/stats"
)

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func TestScan_SegmentedSparkPolicy(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"name":        "policy-1",
		"isSegmented": true,
		"engineType":  "SPARK",
		"backingAssets": []any{
			map[string]any{"uid": "a.b.c"},
			map[string]any{"uid": "d.e.f"},
		},
	})

	assert.ElementsMatch(t, []string{"a.b.c", "d.e.f"}, keys(e.Filtered))
	assert.Equal(t, 1, st.SegmentedSparkPolicies)
	assert.Equal(t, 1, st.TotalPoliciesProcessed)
	assert.Empty(t, st.Errors)

	// The deep scan picks the same uids up for the broad set.
	assert.ElementsMatch(t, []string{"a.b.c", "d.e.f"}, keys(e.All))
}

func TestScan_SegmentedJdbcPolicyExtractsNothing(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"name":        "policy-2",
		"isSegmented": true,
		"engineType":  "JDBC_SQL",
		"backingAssets": []any{
			map[string]any{"uid": "a.b.c"},
		},
	})

	assert.Empty(t, e.Filtered)
	assert.Equal(t, 1, st.SegmentedJdbcPolicies)
	assert.Equal(t, 0, st.SegmentedSparkPolicies)
}

func TestScan_NonSegmentedPolicyExtractsNothing(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"name":       "policy-3",
		"engineType": "SPARK",
		"backingAssets": []any{
			map[string]any{"uid": "a.b.c"},
		},
	})

	assert.Empty(t, e.Filtered)
	assert.Equal(t, 1, st.NonSegmentedPolicies)
}

func TestScan_UnknownEngineCombinationSkippedWithoutCategoryCounter(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"name":        "policy-4",
		"isSegmented": true,
		"engineType":  "PRESTO",
	})

	assert.Empty(t, e.Filtered)
	assert.Equal(t, 1, st.TotalPoliciesProcessed)
	assert.Equal(t, 0, st.SegmentedSparkPolicies)
	assert.Equal(t, 0, st.SegmentedJdbcPolicies)
	assert.Equal(t, 0, st.NonSegmentedPolicies)
}

func TestScan_ArrayOfPolicies(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan([]any{
		map[string]any{
			"isSegmented":   true,
			"engineType":    "SPARK",
			"backingAssets": []any{map[string]any{"uid": "spark.asset"}},
		},
		map[string]any{
			"isSegmented": true,
			"engineType":  "JDBC_SQL",
		},
		map[string]any{
			"isSegmented": false,
		},
		"not-a-policy",
	})

	assert.ElementsMatch(t, []string{"spark.asset"}, keys(e.Filtered))
	assert.Equal(t, 3, st.TotalPoliciesProcessed)
	assert.Equal(t, 1, st.SegmentedSparkPolicies)
	assert.Equal(t, 1, st.SegmentedJdbcPolicies)
	assert.Equal(t, 1, st.NonSegmentedPolicies)
}

func TestScan_DeepScanHeuristic(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"parentAssetUid": "x1",
		"nested": map[string]any{
			"somethingUidLike": "x2",
		},
		"items": []any{
			map[string]any{"backingAssetId": "x3"},
		},
		"liquid": "x4", // "liq-uid" matches the substring heuristic too
		"flavor": "not-captured",
		"uidNum": float64(7), // non-string values are never captured
	})

	assert.ElementsMatch(t, []string{"x1", "x2", "x3", "x4"}, keys(e.All))
}

func TestScan_TrimsAndSkipsBlankValues(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan(map[string]any{
		"uid":      "  padded.uid  ",
		"assetUid": "   ",
	})

	assert.ElementsMatch(t, []string{"padded.uid"}, keys(e.All))
}

func TestScan_MalformedBackingAssetsDoesNotAbort(t *testing.T) {
	st := stats.New()
	e := New(st)

	e.Scan([]any{
		map[string]any{
			"isSegmented":   true,
			"engineType":    "SPARK",
			"backingAssets": "not-a-list",
		},
		map[string]any{
			"isSegmented":   true,
			"engineType":    "SPARK",
			"backingAssets": []any{map[string]any{"uid": "survivor.uid"}},
		},
	})

	// The malformed sibling never blocks the valid one.
	assert.ElementsMatch(t, []string{"survivor.uid"}, keys(e.Filtered))
	assert.Equal(t, 2, st.SegmentedSparkPolicies)
}

func TestScan_AddingTwiceIsNoOp(t *testing.T) {
	st := stats.New()
	e := New(st)

	doc := map[string]any{"uid": "same.uid"}
	e.Scan(doc)
	e.Scan(doc)

	assert.Len(t, e.All, 1)
}
