package downloader

import (
	"fmt"
	"sort"
	"strings"

	"histflow/models"
)

// Summary aggregates the per-instrument outcomes of one run.
type Summary struct {
	Written  int
	NoData   int
	Rejected int
	Failed   int
}

func Summarize(outcomes []models.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case models.StatusWritten:
			s.Written++
		case models.StatusNoData:
			s.NoData++
		case models.StatusRejected:
			s.Rejected++
		case models.StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (s Summary) Total() int {
	return s.Written + s.NoData + s.Rejected + s.Failed
}

// Counts returns the summary as status-keyed counts for metric publishing.
func (s Summary) Counts() map[string]int {
	return map[string]int{
		models.StatusWritten.String():  s.Written,
		models.StatusNoData.String():   s.NoData,
		models.StatusRejected.String(): s.Rejected,
		models.StatusFailed.String():   s.Failed,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("written=%d no_data=%d rejected=%d failed=%d",
		s.Written, s.NoData, s.Rejected, s.Failed)
}

// Report renders a human-readable run report: one line per instrument,
// failures last so they are visible at the bottom of the output.
func Report(outcomes []models.Outcome) string {
	sorted := make([]models.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return statusRank(sorted[i].Status) < statusRank(sorted[j].Status)
	})

	var b strings.Builder
	for _, o := range sorted {
		fmt.Fprintf(&b, "%-10s %-8s %s", o.Instrument.Ticker, o.Status, o.Detail)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "total %d: %s\n", len(outcomes), Summarize(outcomes))
	return b.String()
}

func statusRank(s models.Status) int {
	switch s {
	case models.StatusWritten:
		return 0
	case models.StatusNoData:
		return 1
	case models.StatusRejected:
		return 2
	default:
		return 3
	}
}
