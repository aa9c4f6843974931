package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/byuccl/bfat/pkg/fault"
)

// statOrder lists every counted statistic in report order.
var statOrder = []string{
	"Bit Groups",
	"Bit Groups w/ Errors",
	"Fault Bits",
	"INT Fault Bits",
	"CLB Fault Bits",
	"IOI3 Fault Bits",
	"Non-Failure Fault Bits",
	"Undefined Fault Bits",
	"Bits Driven High",
	"Bits Driven Low",
	"Found Errors",
	"PIP Open Errors",
	"PIP Short Errors",
	"CLB Altered Bit Errors",
	"IOI3 Altered Bit Errors",
	"IOI3 Routing Errors",
}

// Statistics counts fault bits and found errors over one or more bit groups.
type Statistics struct {
	counts map[string]int
}

// NewStatistics returns a zeroed counter set.
func NewStatistics() *Statistics {
	s := &Statistics{counts: make(map[string]int, len(statOrder))}
	for _, stat := range statOrder {
		s.counts[stat] = 0
	}
	return s
}

// Add increments the named statistic.
func (s *Statistics) Add(stat string, n int) {
	if _, ok := s.counts[stat]; ok {
		s.counts[stat] += n
	}
}

// Count returns the current value of the named statistic.
func (s *Statistics) Count(stat string) int { return s.counts[stat] }

// Merge folds another counter set into this one.
func (s *Statistics) Merge(other *Statistics) {
	for stat, value := range other.counts {
		s.Add(stat, value)
	}
}

// String renders the totals with each child statistic as a percentage of its
// parent: groups with errors against all groups, everything else against all
// fault bits.
func (s *Statistics) String() string {
	var sb strings.Builder
	for _, stat := range statOrder {
		if stat == "Fault Bits" || stat == "Found Errors" {
			sb.WriteByte('\n')
		}
		switch stat {
		case "Bit Groups", "Fault Bits":
			fmt.Fprintf(&sb, "%s: %d\n", stat, s.counts[stat])
		case "Bit Groups w/ Errors":
			fmt.Fprintf(&sb, "%s: %d (%s%%)\n", stat, s.counts[stat],
				formatPercent(s.counts[stat], s.counts["Bit Groups"]))
		default:
			fmt.Fprintf(&sb, "%s: %d (%s%%)\n", stat, s.counts[stat],
				formatPercent(s.counts[stat], s.counts["Fault Bits"]))
		}
	}
	return sb.String()
}

// GroupStats tallies the statistics of one analyzed bit group.
func GroupStats(groupBits map[string]*fault.FaultBit) *Statistics {
	s := NewStatistics()
	s.Add("Bit Groups", 1)

	errorInGroup := false
	for _, fb := range groupBits {
		s.Add("Fault Bits", 1)

		switch {
		case !fb.Defined():
			s.Add("Undefined Fault Bits", 1)
		case fb.IsInterconnect():
			s.Add("INT Fault Bits", 1)
		case strings.Contains(fb.Tile, "CLB"):
			s.Add("CLB Fault Bits", 1)
		case strings.Contains(fb.Tile, "IOI3"):
			s.Add("IOI3 Fault Bits", 1)
		}

		switch fb.Type {
		case fault.DrivenHigh:
			s.Add("Bits Driven High", 1)
		case fault.DrivenLow:
			s.Add("Bits Driven Low", 1)
		}

		hasOpens := strings.Contains(fb.Failure, "Opens created")
		hasShorts := strings.Contains(fb.Failure, "Shorts formed")

		switch {
		case isNonFailure(fb):
			s.Add("Non-Failure Fault Bits", 1)
		case strings.Contains(fb.Tile, "CLB") && strings.Contains(fb.Failure, "bit altered"):
			s.Add("CLB Altered Bit Errors", 1)
			s.Add("Found Errors", 1)
			errorInGroup = true
		case strings.Contains(fb.Tile, "IOI3") && strings.Contains(fb.Failure, "function(s) affected"):
			s.Add("IOI3 Altered Bit Errors", 1)
			s.Add("Found Errors", 1)
			errorInGroup = true
		case strings.Contains(fb.Tile, "IOI3") && strings.Contains(fb.Failure, "Faults occurred in net"):
			s.Add("IOI3 Routing Errors", 1)
			s.Add("Found Errors", 1)
			errorInGroup = true
		case hasOpens && !hasShorts:
			s.Add("PIP Open Errors", countOpens(fb.Failure))
			s.Add("Found Errors", 1)
			errorInGroup = true
		case hasShorts && !hasOpens:
			s.Add("PIP Short Errors", 1)
			s.Add("Found Errors", 1)
			errorInGroup = true
		case hasOpens && hasShorts:
			s.Add("PIP Open Errors", countOpens(fb.Failure))
			s.Add("PIP Short Errors", 1)
			s.Add("Found Errors", 1)
			errorInGroup = true
		}
	}

	if errorInGroup {
		s.Add("Bit Groups w/ Errors", 1)
	}
	return s
}

// isNonFailure classifies a bit with no actionable error. The unsupported
// message counts only for defined bits; undefined bits keep their own
// category.
func isNonFailure(fb *fault.FaultBit) bool {
	if fb.Defined() && strings.Contains(fb.Failure, "not yet supported") {
		return true
	}
	return strings.Contains(fb.Failure, "Not able to find any failures") ||
		strings.Contains(fb.Failure, "No instanced resource")
}

// countOpens counts the opened nets named in the failure message: one plus
// the commas in the opens clause.
func countOpens(failure string) int {
	clause := failure
	if i := strings.IndexByte(failure, ';'); i >= 0 {
		clause = failure[:i]
	}
	return 1 + strings.Count(clause, ",")
}

// writeGroupStats prints the per-group bit and error counts.
func writeGroupStats(w io.Writer, s *Statistics) {
	fmt.Fprintf(w, "Bits: %d\n", s.counts["Fault Bits"])

	errorsFound := s.counts["PIP Open Errors"] +
		s.counts["PIP Short Errors"] +
		s.counts["CLB Altered Bit Errors"] +
		s.counts["IOI3 Altered Bit Errors"] +
		s.counts["IOI3 Routing Errors"]
	fmt.Fprintf(w, "Errors Found: %d (%s%%)\n\n", errorsFound,
		formatPercent(errorsFound, s.counts["Fault Bits"]))
}

// formatPercent renders n/d as a percentage rounded to two decimals, always
// keeping at least one decimal place.
func formatPercent(n, d int) string {
	if d == 0 {
		return "0.0"
	}
	p := math.Round(float64(n)/float64(d)*10000) / 100
	if p == math.Trunc(p) {
		return strconv.FormatFloat(p, 'f', 1, 64)
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
