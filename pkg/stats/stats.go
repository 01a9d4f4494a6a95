package stats

import "fmt"

// Stats accumulates counters and non-fatal errors for a single run.
// Every processing unit mutates the same instance; the run is
// single-threaded, so no locking is needed.
type Stats struct {
	FilesInvestigated  int
	ChangesMade        int
	JSONFilesProcessed int
	ZipFilesProcessed  int

	TotalPoliciesProcessed int
	SegmentedSparkPolicies int
	SegmentedJdbcPolicies  int
	NonSegmentedPolicies   int

	Errors []string
}

func New() *Stats {
	return &Stats{}
}

// AddError records a non-fatal error. Processing always continues after
// recording; the final tally decides what the caller does with it.
func (s *Stats) AddError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}
