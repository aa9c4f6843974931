// Package report renders the fault analysis results as the text fault
// report: per-group failure, non-failure, and undefined sections, generated
// Vivado tcl commands, and the statistics footer.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/byuccl/bfat/pkg/device"
	"github.com/byuccl/bfat/pkg/fault"
)

const (
	heavyDivider = "======================================================================"
	softDivider  = "------------------------------"
	noteWrapLen  = 70
)

// Write renders every bit group of the report in group order and returns the
// accumulated run statistics.
func Write(w io.Writer, rep fault.GroupReport) *Statistics {
	totals := NewStatistics()

	groups := make([]int, 0, len(rep))
	for num := range rep {
		groups = append(groups, num)
	}
	sort.Ints(groups)

	for _, num := range groups {
		groupBits := rep[num]
		if len(groupBits) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n%sBit Group %d\n%s\n\n", heavyDivider, strings.Repeat(" ", 29), num, heavyDivider)

		failures, nonFailures, undefined := classifyBits(groupBits)
		writeFailureSection(w, failures)
		writeNonFailureSection(w, nonFailures)
		writeUndefinedSection(w, undefined)

		groupStats := GroupStats(groupBits)
		writeGroupStats(w, groupStats)
		totals.Merge(groupStats)
	}
	return totals
}

// classifyBits splits a group's bits into the three report sections, each
// sorted by bit name.
func classifyBits(groupBits map[string]*fault.FaultBit) (failures, nonFailures, undefined []*fault.FaultBit) {
	names := make([]string, 0, len(groupBits))
	for name := range groupBits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fb := groupBits[name]
		switch {
		case !fb.Defined():
			undefined = append(undefined, fb)
		case isNonFailure(fb):
			nonFailures = append(nonFailures, fb)
		default:
			failures = append(failures, fb)
		}
	}
	return failures, nonFailures, undefined
}

func writeFailureSection(w io.Writer, bits []*fault.FaultBit) {
	if len(bits) == 0 {
		return
	}
	fmt.Fprintf(w, "Failure Bits:\n%s\n", softDivider)

	for _, fb := range bits {
		fmt.Fprintf(w, "%s (%s)\n", fb.Name, fb.Type)

		if len(fb.Functions) > 1 {
			fmt.Fprint(w, "\tBit Functions:\n")
			for _, fctn := range fb.Functions {
				fmt.Fprintf(w, "\t\t%s - %s\n", fb.Tile, strings.Join(fctn, " - "))
			}
		} else {
			fmt.Fprintf(w, "\t%s - %s\n", fb.Tile, strings.Join(primaryFunction(fb), " - "))
		}

		fmt.Fprintf(w, "\tResource Design Name: %s\n", fb.DesignName)
		fmt.Fprintf(w, "\t%s\n", rewriteGlobalLogic(fb.Failure))

		if strings.Contains(fb.Tile, "INT") {
			fmt.Fprint(w, "\tAffected PIPs:\n")
			for _, pip := range fb.AffectedPips {
				fmt.Fprintf(w, "\t\t%s\n", pip)
			}
		}

		fmt.Fprint(w, "\tAffected Resources:\n")
		resources := append([]string(nil), fb.AffectedResources...)
		sort.Strings(resources)
		for _, rsrc := range resources {
			fmt.Fprintf(w, "\t\t%s\n", rsrc)
		}

		if fb.Note != "NA" {
			if strings.Contains(fb.Note, "\n") {
				fmt.Fprintf(w, "\n\t%s", fb.Note)
			} else {
				fmt.Fprintf(w, "\n\t%s\n", strings.Join(wrapText(fb.Note, noteWrapLen), "\n\t"))
			}
		}

		writeTclCommands(w, fb)
	}
}

func writeNonFailureSection(w io.Writer, bits []*fault.FaultBit) {
	if len(bits) == 0 {
		return
	}
	fmt.Fprintf(w, "Non-Failure Bits:\n%s\n", softDivider)
	for _, fb := range bits {
		fmt.Fprintf(w, "%s (%s): %s\n", fb.Name, fb.Type,
			strings.Join([]string{fb.Tile, strings.Join(primaryFunction(fb), " - "), fb.DesignName}, " - "))
		fmt.Fprintf(w, "\t%s\n", fb.Failure)
	}
	fmt.Fprint(w, "\n")
}

func writeUndefinedSection(w io.Writer, bits []*fault.FaultBit) {
	if len(bits) == 0 {
		return
	}
	fmt.Fprintf(w, "Undefined Bits:\n%s\n", softDivider)
	for _, fb := range bits {
		fmt.Fprintf(w, "%s (%s)\n", fb.Name, fb.Type)
		fmt.Fprint(w, "\tPotential Affected Resources:\n")

		tiles := make([]string, 0, len(fb.PossibleResources))
		for tile := range fb.PossibleResources {
			tiles = append(tiles, tile)
		}
		sort.Strings(tiles)
		for _, tile := range tiles {
			fmt.Fprintf(w, "\t\t%s:\n", tile)
			resources := fb.PossibleResources[tile]
			bels := make([]string, 0, len(resources))
			for bel := range resources {
				bels = append(bels, bel)
			}
			sort.Strings(bels)
			for _, bel := range bels {
				fmt.Fprintf(w, "\t\t\t%s: %s\n", bel, resources[bel])
			}
			if len(resources) == 0 {
				fmt.Fprint(w, "\t\t\tNo resources found for this tile\n")
			}
		}
		if len(fb.PossibleResources) == 0 {
			fmt.Fprint(w, "\t\tNo potential tiles found\n")
		}
	}
	fmt.Fprint(w, "\n")
}

// primaryFunction returns the bit's first physical function, or its resource
// and function fields when the databases named none.
func primaryFunction(fb *fault.FaultBit) []string {
	if len(fb.Functions) > 0 {
		return fb.Functions[0]
	}
	return []string{fb.Resource, fb.Function}
}

// writeTclCommands emits Vivado tcl select_objects commands for the bit's
// pips, nets, and cells so the fault can be inspected on the open design.
func writeTclCommands(w io.Writer, fb *fault.FaultBit) {
	fmt.Fprint(w, "\n\tVivado Tcl Commands:\n")

	routing := strings.Contains(fb.Failure, "Opens") || strings.Contains(fb.Failure, "Shorts") ||
		strings.Contains(fb.Failure, "Faults")
	if routing {
		if strings.Contains(fb.Tile, "INT") {
			pips := make([]string, 0, len(fb.AffectedPips))
			for _, pip := range fb.AffectedPips {
				pips = append(pips, fb.Tile+"/"+device.TileType(fb.Tile)+"."+firstToken(pip))
			}
			sort.Strings(pips)
			fmt.Fprintf(w, "\t\tselect_objects [get_pips {%s}]\n", strings.Join(pips, " "))
		}

		if nets := failureNets(fb.Failure); len(nets) > 0 {
			sort.Strings(nets)
			netsStr := strings.Join(nets, " ")
			netsStr = strings.ReplaceAll(netsStr, "GLOBAL_LOGIC0", "<const0>")
			netsStr = strings.ReplaceAll(netsStr, "GLOBAL_LOGIC1", "<const1>")
			netsStr = strings.ReplaceAll(netsStr, " (initially connected)", "")
			fmt.Fprintf(w, "\t\tselect_objects [get_nets {%s}]\n", netsStr)
		}
	}

	if len(fb.AffectedResources) > 0 &&
		!containsString(fb.AffectedResources, "NA") &&
		!containsString(fb.AffectedResources, "No affected resources found") {
		resources := append([]string(nil), fb.AffectedResources...)
		sort.Strings(resources)
		fmt.Fprintf(w, "\t\tselect_objects [get_cells {%s}]\n", strings.Join(resources, " "))
	} else if strings.Contains(fb.Tile, "INT") && routing {
		fmt.Fprint(w, "\n")
	}
	fmt.Fprint(w, "\n")
}

// WriteFooter appends the report footer: the modeled design, the query
// backend used, the elapsed time, and the run's total statistics.
func WriteFooter(w io.Writer, dcpPath, queryName string, stats *Statistics, elapsedSeconds float64) {
	var dcpName string
	for _, segment := range strings.Split(strings.TrimSpace(dcpPath), "/") {
		if strings.Contains(segment, ".dcp") {
			dcpName = segment
			break
		}
	}
	designStr := "Design modeled: " + dcpName
	queryStr := "Design query used: " + queryName

	fmt.Fprintf(w, "\n%s\n", heavyDivider)
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", centerOffset(designStr)), designStr)
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", centerOffset(queryStr)), queryStr)
	fmt.Fprintf(w, "\t\t\t\tTotal time elapsed: %s sec\t(%d min)\n", formatSeconds(elapsedSeconds), int(elapsedSeconds/60))
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("-", 70))
	fmt.Fprint(w, stats.String())
}

func centerOffset(s string) int {
	off := 35 - len(s)/2
	if off < 0 {
		return 0
	}
	return off
}

func formatSeconds(sec float64) string {
	rounded := math.Round(sec*100) / 100
	if rounded == math.Trunc(rounded) {
		return strconv.FormatFloat(rounded, 'f', 1, 64)
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// failureNets extracts the net names out of an opens/shorts failure message,
// dropping unconnected wire placeholders.
func failureNets(failure string) []string {
	var nets []string
	for _, section := range strings.Split(failure, ";") {
		_, list, ok := strings.Cut(section, ":")
		if !ok {
			continue
		}
		for _, net := range strings.Split(strings.TrimSpace(list), ", ") {
			if strings.Contains(net, "Unconnected Wire") {
				continue
			}
			nets = append(nets, net)
		}
	}
	return nets
}

// rewriteGlobalLogic renames the constant nets to their Vivado display names.
func rewriteGlobalLogic(s string) string {
	s = strings.ReplaceAll(s, "GLOBAL_LOGIC0", "<const0>")
	return strings.ReplaceAll(s, "GLOBAL_LOGIC1", "<const1>")
}

// wrapText greedily wraps words into lines no longer than width.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
