package report

import (
	"strings"
	"testing"

	"github.com/byuccl/bfat/pkg/fault"
)

func openFaultBit() *fault.FaultBit {
	return &fault.FaultBit{
		Name:              "bit_00400a01_050_00",
		Tile:              "INT_L_X10Y120",
		LocalAddr:         "01_00",
		Functions:         [][]string{{"EE2BEG0 2-12 Routing Mux", "Column Bit"}},
		Resource:          "EE2BEG0 2-12 Routing Mux",
		Function:          "Column Bit",
		Type:              fault.DrivenLow,
		DesignName:        "INT_L_X10Y120/EE2BEG0",
		Failure:           "Opens created for net(s): net_a",
		AffectedPips:      []string{"SRC_R0C0->>EE2BEG0 (deactivated)"},
		AffectedResources: []string{"data_path/q_reg[0]"},
		Note:              "NA",
	}
}

func nonFailureBit() *fault.FaultBit {
	return &fault.FaultBit{
		Name:              "bit_00400b00_050_05",
		Tile:              "CLBLL_L_X11Y120",
		LocalAddr:         "00_05",
		Functions:         [][]string{{"SLICEL_X0", "AFF", "ZRST"}},
		Resource:          "SLICEL_X0.AFF",
		Function:          "ZRST",
		Type:              fault.DrivenHigh,
		DesignName:        "NA",
		Failure:           "No instanced resource found for this bit",
		AffectedPips:      []string{"NA"},
		AffectedResources: []string{"No affected resources found"},
		Note:              "NA",
	}
}

func undefinedBit() *fault.FaultBit {
	return &fault.FaultBit{
		Name:              "bit_00400a02_051_30",
		Type:              fault.DrivenHigh,
		Candidates:        []string{"INT_L_X10Y120"},
		Failure:           "fault evaluation not yet supported for this bit",
		AffectedPips:      []string{"NA"},
		AffectedResources: []string{"NA"},
		Note:              "NA",
		PossibleResources: map[string]map[string]string{
			"INT_L_X10Y120": {},
		},
	}
}

func TestWriteReport(t *testing.T) {
	rep := fault.GroupReport{
		1: {
			"bit_00400a01_050_00": openFaultBit(),
			"bit_00400b00_050_05": nonFailureBit(),
			"bit_00400a02_051_30": undefinedBit(),
		},
	}

	var sb strings.Builder
	stats := Write(&sb, rep)
	out := sb.String()

	for _, want := range []string{
		strings.Repeat(" ", 29) + "Bit Group 1\n",
		"Failure Bits:\n" + softDivider + "\n",
		"bit_00400a01_050_00 (1->0)\n",
		"\tINT_L_X10Y120 - EE2BEG0 2-12 Routing Mux - Column Bit\n",
		"\tResource Design Name: INT_L_X10Y120/EE2BEG0\n",
		"\tOpens created for net(s): net_a\n",
		"\tAffected PIPs:\n\t\tSRC_R0C0->>EE2BEG0 (deactivated)\n",
		"\t\tselect_objects [get_pips {INT_L_X10Y120/INT_L.SRC_R0C0->>EE2BEG0}]\n",
		"\t\tselect_objects [get_nets {net_a}]\n",
		"\t\tselect_objects [get_cells {data_path/q_reg[0]}]\n",
		"Non-Failure Bits:\n" + softDivider + "\n",
		"bit_00400b00_050_05 (0->1): CLBLL_L_X11Y120 - SLICEL_X0 - AFF - ZRST - NA\n",
		"\tNo instanced resource found for this bit\n",
		"Undefined Bits:\n" + softDivider + "\n",
		"bit_00400a02_051_30 (0->1)\n",
		"\tPotential Affected Resources:\n",
		"\t\tINT_L_X10Y120:\n\t\t\tNo resources found for this tile\n",
		"Bits: 3\n",
		"Errors Found: 1 (33.33%)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\nreport:\n%s", want, out)
		}
	}

	if got := stats.Count("Fault Bits"); got != 3 {
		t.Errorf("Fault Bits = %d", got)
	}
	if got := stats.Count("PIP Open Errors"); got != 1 {
		t.Errorf("PIP Open Errors = %d", got)
	}
	if got := stats.Count("Undefined Fault Bits"); got != 1 {
		t.Errorf("Undefined Fault Bits = %d", got)
	}
	if got := stats.Count("Bit Groups w/ Errors"); got != 1 {
		t.Errorf("Bit Groups w/ Errors = %d", got)
	}
}

func TestWriteRepeatable(t *testing.T) {
	rep := fault.GroupReport{
		1: {
			"bit_00400a01_050_00": openFaultBit(),
			"bit_00400b00_050_05": nonFailureBit(),
			"bit_00400a02_051_30": undefinedBit(),
		},
	}

	var first, second strings.Builder
	Write(&first, rep)
	Write(&second, rep)
	if first.String() != second.String() {
		t.Fatalf("repeated rendering diverged:\nfirst:\n%s\nsecond:\n%s",
			first.String(), second.String())
	}
}

func TestGroupStatsOpensAndShorts(t *testing.T) {
	fb := openFaultBit()
	fb.Failure = "Opens created for net(s): net_a, net_b; Shorts formed between net(s): net_c"
	s := GroupStats(map[string]*fault.FaultBit{fb.Name: fb})

	if got := s.Count("PIP Open Errors"); got != 2 {
		t.Errorf("PIP Open Errors = %d", got)
	}
	if got := s.Count("PIP Short Errors"); got != 1 {
		t.Errorf("PIP Short Errors = %d", got)
	}
	if got := s.Count("Found Errors"); got != 1 {
		t.Errorf("Found Errors = %d", got)
	}
}

func TestStatisticsString(t *testing.T) {
	s := NewStatistics()
	s.Add("Bit Groups", 2)
	s.Add("Bit Groups w/ Errors", 1)
	s.Add("Fault Bits", 3)
	s.Add("INT Fault Bits", 1)
	s.Add("Found Errors", 1)

	out := s.String()
	for _, want := range []string{
		"Bit Groups: 2\n",
		"Bit Groups w/ Errors: 1 (50.0%)\n",
		"\nFault Bits: 3\n",
		"INT Fault Bits: 1 (33.33%)\n",
		"\nFound Errors: 1 (33.33%)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("statistics missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestWriteFooter(t *testing.T) {
	var sb strings.Builder
	WriteFooter(&sb, "designs/counter/counter.dcp", "Vivado", NewStatistics(), 75.5)
	out := sb.String()

	if !strings.Contains(out, "Design modeled: counter.dcp\n") {
		t.Errorf("footer missing design line:\n%s", out)
	}
	if !strings.Contains(out, "Design query used: Vivado\n") {
		t.Errorf("footer missing query line:\n%s", out)
	}
	if !strings.Contains(out, "Total time elapsed: 75.5 sec\t(1 min)\n") {
		t.Errorf("footer missing elapsed line:\n%s", out)
	}
}

func TestWrapText(t *testing.T) {
	note := strings.Repeat("word ", 30)
	lines := wrapText(note, 70)
	if len(lines) < 2 {
		t.Fatalf("long note not wrapped: %v", lines)
	}
	for _, line := range lines {
		if len(line) > 70 {
			t.Errorf("line exceeds wrap width: %q", line)
		}
	}
}
