package extract

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/rs/zerolog/log"

	"github.com/miktoft/policy-transform/pkg/stats"
)

// backingAssetUIDs pulls every backingAssets[].uid out of a single
// policy object. Missing or oddly typed fields yield nothing instead of
// an error.
var backingAssetUIDs = mustCompile(".backingAssets[]?.uid? // empty")

func mustCompile(query string) *gojq.Code {
	q, err := gojq.Parse(query)
	if err != nil {
		panic(fmt.Sprintf("invalid gojq query %q: %v", query, err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("failed to compile gojq query %q: %v", query, err))
	}
	return code
}

// Extractor harvests asset identifiers from parsed policy documents.
// Identifiers accumulate across every document of a run in two sets:
// All holds every heuristic match anywhere in any document, Filtered
// holds only backing-asset uids from segmented SPARK policies.
type Extractor struct {
	All      map[string]struct{}
	Filtered map[string]struct{}

	stats *stats.Stats
}

func New(st *stats.Stats) *Extractor {
	return &Extractor{
		All:      make(map[string]struct{}),
		Filtered: make(map[string]struct{}),
		stats:    st,
	}
}

// Scan runs both extraction passes over one parsed document. The
// document is either a single policy object or an array of policy
// objects; anything else is deep-scanned only. Failures are recorded
// per policy and never abort the scan.
func (e *Extractor) Scan(doc any) {
	sparkBefore := e.stats.SegmentedSparkPolicies
	jdbcBefore := e.stats.SegmentedJdbcPolicies
	nonSegBefore := e.stats.NonSegmentedPolicies
	totalBefore := e.stats.TotalPoliciesProcessed

	// Unscoped pass: every identifier-bearing field in the whole tree.
	e.deepScan(doc, "")

	// Scoped pass: top-level policy objects only.
	switch d := doc.(type) {
	case []any:
		for _, item := range d {
			if policy, ok := item.(map[string]any); ok {
				e.scanPolicy(policy)
			}
		}
	case map[string]any:
		e.scanPolicy(d)
	}

	if processed := e.stats.TotalPoliciesProcessed - totalBefore; processed > 0 {
		log.Info().Msgf("📊 Policies in document: %d total, %d segmented SPARK, %d segmented JDBC_SQL, %d non-segmented",
			processed,
			e.stats.SegmentedSparkPolicies-sparkBefore,
			e.stats.SegmentedJdbcPolicies-jdbcBefore,
			e.stats.NonSegmentedPolicies-nonSegBefore)
	}
	log.Debug().Msgf("Unique asset identifiers found so far: %d", len(e.All))
}

// deepScan recursively visits every object field and array element,
// collecting string values whose key matches the identifier heuristic.
func (e *Extractor) deepScan(obj any, path string) {
	switch v := obj.(type) {
	case map[string]any:
		for key, value := range v {
			currentPath := key
			if path != "" {
				currentPath = path + "." + key
			}

			if s, ok := value.(string); ok && isIdentifierKey(key) {
				if uid := strings.TrimSpace(s); uid != "" {
					e.All[uid] = struct{}{}
					log.Debug().Msgf("Found asset UID at %s: %s", currentPath, uid)
				}
			}

			if isAssetContainerKey(key) {
				log.Debug().Msgf("Found asset object at %s, scanning for UIDs", currentPath)
			}

			e.deepScan(value, currentPath)
		}
	case []any:
		for i, item := range v {
			e.deepScan(item, fmt.Sprintf("%s[%d]", path, i))
		}
	}
	// Primitive leaves need no further scanning.
}

// scanPolicy classifies a single top-level policy object and, for
// segmented SPARK policies, extracts its backing-asset uids into the
// filtered set.
func (e *Extractor) scanPolicy(policy map[string]any) {
	isSegmented, _ := policy["isSegmented"].(bool)
	engineType, _ := policy["engineType"].(string)
	policyName, _ := policy["name"].(string)
	if policyName == "" {
		policyName = "unknown"
	}

	e.stats.TotalPoliciesProcessed++

	switch {
	case isSegmented && engineType == "SPARK":
		e.stats.SegmentedSparkPolicies++
		log.Debug().Msgf("Extracting from segmented SPARK policy: %s", policyName)
		e.extractBackingAssetUIDs(policy, policyName)
	case isSegmented && engineType == "JDBC_SQL":
		e.stats.SegmentedJdbcPolicies++
		log.Debug().Msgf("Skipping segmented JDBC_SQL policy: %s", policyName)
	case !isSegmented:
		e.stats.NonSegmentedPolicies++
		log.Debug().Msgf("Skipping non-segmented policy: %s", policyName)
	default:
		log.Debug().Msgf("Skipping policy (isSegmented=%t, engineType=%s): %s", isSegmented, engineType, policyName)
	}
}

func (e *Extractor) extractBackingAssetUIDs(policy map[string]any, policyName string) {
	iter := backingAssetUIDs.Run(policy)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			e.stats.AddError("Policy extraction error for '%s': %v", policyName, err)
			continue
		}
		if uid, isStr := v.(string); isStr && uid != "" {
			e.Filtered[uid] = struct{}{}
			log.Debug().Msgf("Extracted asset uid: %s", uid)
		}
	}
}
