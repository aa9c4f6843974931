package fault

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/byuccl/bfat/pkg/bitstream"
	"github.com/byuccl/bfat/pkg/design"
	"github.com/byuccl/bfat/pkg/device"
)

// intArchetype builds an INT_L type with one 2-12 routing mux feeding
// EE2BEG0: three row bits (00_00..00_02) and four column bits
// (01_00..01_03), each source selected by one row and one column bit.
func intArchetype(t *testing.T) *device.Archetype {
	t.Helper()
	var sb strings.Builder
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			fmt.Fprintf(&sb, "INT_L.EE2BEG0.SRC_R%dC%d 00_%02d 01_%02d\n", r, c, r, c)
		}
	}
	segbits, err := device.ParseSegbits("segbits_int_l.db", strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("parsing segbits: %v", err)
	}
	ppips, err := device.ParsePpips("ppips_int_l.db", strings.NewReader("INT_L.EE2BEG0.VCC_WIRE default\n"))
	if err != nil {
		t.Fatalf("parsing ppips: %v", err)
	}
	return device.NewArchetype("INT_L", segbits, ppips)
}

func clbArchetype(t *testing.T) *device.Archetype {
	t.Helper()
	db := "CLBLL_L.SLICEL_X0.AFF.ZRST 00_05\n" +
		"CLBLL_L.SLICEL_X0.ALUT.INIT[63] 01_10\n" +
		"CLBLL_L.SLICEL_X0.NOCLKINV 00_07\n"
	segbits, err := device.ParseSegbits("segbits_clbll_l.db", strings.NewReader(db))
	if err != nil {
		t.Fatalf("parsing segbits: %v", err)
	}
	return device.NewArchetype("CLBLL_L", segbits, nil)
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()

	grid := device.Tilegrid{
		"INT_L_X10Y120":   {{Bus: "CLB_IO_CLK", BaseAddr: 0x00400a00, Frames: 36, Offset: 50, Words: 2}},
		"CLBLL_L_X11Y120": {{Bus: "CLB_IO_CLK", BaseAddr: 0x00400b00, Frames: 36, Offset: 50, Words: 2}},
	}
	tr := &device.Translator{
		Grid: grid,
		Types: map[string]*device.Archetype{
			"INT_L":   intArchetype(t),
			"CLBLL_L": clbArchetype(t),
		},
	}

	d := design.NewMemoryQuery("xc7a100tcsg324-1")
	d.AddNet("INT_L_X10Y120", "EE2BEG0", "net_a")
	d.AddNet("INT_L_X10Y120", "SRC_R0C0", "net_a")
	d.Traces["net_a INT_L_X10Y120/EE2BEG0"] = []string{"data_path/q_reg[0]"}
	d.AddCell("CLBLL_L_X11Y120", "SLICE_X14Y120", "AFF", "data_path/q_reg[0]")
	d.AddCell("CLBLL_L_X11Y120", "SLICE_X14Y120", "A6LUT", "logic/and_i")
	d.Inits["logic/and_i"] = "4'h8"
	d.PinMaps["logic/and_i"] = map[string]string{"A1": "I0", "A2": "I1", "O6": "O"}
	d.CLBTraces["SLICE_X14Y120 CLKINV"] = []string{"data_path/q_reg[0]"}

	// The design drives EE2BEG0 from SRC_R0C0: row bit 00_00 and column
	// bit 01_00 are set.
	return &Analyzer{
		Translator: tr,
		Design:     d,
		DesignBits: map[string]bool{
			"bit_00400a00_050_00": true,
			"bit_00400a01_050_00": true,
		},
		Frames: map[bitstream.FrameAddress]bool{
			0x00400a00: true, 0x00400a01: true, 0x00400a02: true,
			0x00400b00: true, 0x00400b01: true,
		},
	}
}

func TestDefineInterconnectBit(t *testing.T) {
	a := newTestAnalyzer(t)

	fb := Define(bitstream.BitAddress{Frame: 0x00400a01, Word: 50, Bit: 0}, a.Translator)
	if !fb.Defined() || fb.Tile != "INT_L_X10Y120" || fb.LocalAddr != "01_00" {
		t.Fatalf("bit located at %s %s", fb.Tile, fb.LocalAddr)
	}
	if fb.Resource != "EE2BEG0 2-12 Routing Mux" || fb.Function != "Column Bit" {
		t.Fatalf("bit defined as %q / %q", fb.Resource, fb.Function)
	}

	fb = Define(bitstream.BitAddress{Frame: 0x00400a00, Word: 50, Bit: 1}, a.Translator)
	if fb.Function != "Row Bit" {
		t.Fatalf("row bit defined as %q / %q", fb.Resource, fb.Function)
	}
}

func TestDefineUndefinedBit(t *testing.T) {
	a := newTestAnalyzer(t)

	fb := a.NewFaultBit(bitstream.BitAddress{Frame: 0x00400a02, Word: 51, Bit: 30})
	if fb.Defined() {
		t.Fatalf("unmodeled bit pinned to tile %s", fb.Tile)
	}
	if len(fb.Candidates) != 1 || fb.Candidates[0] != "INT_L_X10Y120" {
		t.Fatalf("candidates = %v", fb.Candidates)
	}
	if fb.Type != DrivenHigh {
		t.Fatalf("upset type = %s", fb.Type)
	}
	if fb.Failure != noFaultSupport {
		t.Fatalf("failure = %q", fb.Failure)
	}
}

func TestUpsetType(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		addr bitstream.BitAddress
		want UpsetType
	}{
		{bitstream.BitAddress{Frame: 0x00400a01, Word: 50, Bit: 0}, DrivenLow},
		{bitstream.BitAddress{Frame: 0x00400a01, Word: 50, Bit: 1}, DrivenHigh},
		{bitstream.BitAddress{Frame: 0x00500000, Word: 50, Bit: 1}, UnknownUpset},
	}
	for _, tt := range tests {
		if got := a.upsetType(tt.addr); got != tt.want {
			t.Errorf("upsetType(%s) = %s, want %s", tt.addr, got, tt.want)
		}
	}
}

func TestAnalyzeGroupOpen(t *testing.T) {
	a := newTestAnalyzer(t)

	// Driving the active column bit low disconnects the routed source.
	result := a.AnalyzeGroup(BitGroup{{Frame: 0x00400a01, Word: 50, Bit: 0}})
	fb, ok := result["bit_00400a01_050_00"]
	if !ok {
		t.Fatalf("fault bit missing from result: %v", result)
	}
	if fb.Type != DrivenLow {
		t.Errorf("upset type = %s", fb.Type)
	}
	if fb.DesignName != "INT_L_X10Y120/EE2BEG0" {
		t.Errorf("design name = %q", fb.DesignName)
	}
	if fb.Failure != "Opens created for net(s): net_a" {
		t.Errorf("failure = %q", fb.Failure)
	}
	wantPips := []string{"SRC_R0C0->>EE2BEG0 (deactivated)"}
	if len(fb.AffectedPips) != 1 || fb.AffectedPips[0] != wantPips[0] {
		t.Errorf("affected pips = %v, want %v", fb.AffectedPips, wantPips)
	}
	if len(fb.AffectedResources) != 1 || fb.AffectedResources[0] != "data_path/q_reg[0]" {
		t.Errorf("affected resources = %v", fb.AffectedResources)
	}
}

func TestAnalyzeGroupShort(t *testing.T) {
	a := newTestAnalyzer(t)

	// Driving a second column bit high connects a second source alongside
	// the routed one.
	result := a.AnalyzeGroup(BitGroup{{Frame: 0x00400a01, Word: 50, Bit: 1}})
	fb, ok := result["bit_00400a01_050_01"]
	if !ok {
		t.Fatalf("fault bit missing from result: %v", result)
	}
	if fb.Type != DrivenHigh {
		t.Errorf("upset type = %s", fb.Type)
	}
	want := "Shorts formed between net(s): Unconnected Wire(SRC_R0C1), net_a (initially connected)"
	if fb.Failure != want {
		t.Errorf("failure = %q, want %q", fb.Failure, want)
	}
	wantPips := []string{"SRC_R0C1->>EE2BEG0 (activated)"}
	if len(fb.AffectedPips) != 1 || fb.AffectedPips[0] != wantPips[0] {
		t.Errorf("affected pips = %v, want %v", fb.AffectedPips, wantPips)
	}
}

func TestAnalyzeGroupSourceSwapIsOpen(t *testing.T) {
	a := newTestAnalyzer(t)

	// Dropping the routed column bit while raising another leaves the mux
	// with one (different) source, so the fault is an open, not a short.
	result := a.AnalyzeGroup(BitGroup{
		{Frame: 0x00400a01, Word: 50, Bit: 0},
		{Frame: 0x00400a01, Word: 50, Bit: 1},
	})

	for _, name := range []string{"bit_00400a01_050_00", "bit_00400a01_050_01"} {
		fb := result[name]
		if fb == nil {
			t.Fatalf("%s missing from result: %v", name, result)
		}
		if fb.Failure != "Opens created for net(s): net_a" {
			t.Errorf("%s failure = %q", name, fb.Failure)
		}
		if strings.Contains(fb.Failure, "Shorts formed") {
			t.Errorf("%s classified as a short: %q", name, fb.Failure)
		}
	}

	wantPips := []string{"SRC_R0C0->>EE2BEG0 (deactivated)"}
	if pips := result["bit_00400a01_050_00"].AffectedPips; len(pips) != 1 || pips[0] != wantPips[0] {
		t.Errorf("affected pips = %v, want %v", pips, wantPips)
	}
	// The raised bit activates no pip: its source never conducts.
	if pips := result["bit_00400a01_050_01"].AffectedPips; len(pips) != 1 || pips[0] != notAvailable {
		t.Errorf("raised bit affected pips = %v", pips)
	}
}

func TestAnalyzeGroupRepeatable(t *testing.T) {
	a := newTestAnalyzer(t)

	groups := []BitGroup{
		{{Frame: 0x00400a01, Word: 50, Bit: 1}},
		{{Frame: 0x00400a01, Word: 50, Bit: 0}, {Frame: 0x00400a01, Word: 50, Bit: 1}},
	}
	for i, group := range groups {
		first := a.AnalyzeGroup(group)
		second := a.AnalyzeGroup(group)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("group %d analysis diverged:\nfirst:  %v\nsecond: %v", i, first, second)
		}
	}
}

func TestDefineClockInvertBit(t *testing.T) {
	a := newTestAnalyzer(t)
	addr := bitstream.BitAddress{Frame: 0x00400b00, Word: 50, Bit: 7}

	// The database names the deasserted side NOCLKINV; both sides report as
	// the CLKINV function.
	if fb := Define(addr, a.Translator); fb.Function != "CLKINV" {
		t.Fatalf("function = %q, want CLKINV", fb.Function)
	}

	fb := a.NewFaultBit(addr)
	if fb.Resource != "SLICE_X14Y120.CLKINV" || fb.Function != "Configuration" {
		t.Fatalf("bit resolved as %q / %q", fb.Resource, fb.Function)
	}
	if fb.DesignName != "CLKINV" {
		t.Errorf("design name = %q", fb.DesignName)
	}
	if len(fb.AffectedResources) != 1 || fb.AffectedResources[0] != "data_path/q_reg[0]" {
		t.Errorf("affected resources = %v", fb.AffectedResources)
	}
}

func TestAnalyzeGroupCLB(t *testing.T) {
	a := newTestAnalyzer(t)

	result := a.AnalyzeGroup(BitGroup{
		{Frame: 0x00400b00, Word: 50, Bit: 5},
		{Frame: 0x00400b01, Word: 50, Bit: 10},
	})

	ff := result["bit_00400b00_050_05"]
	if ff == nil {
		t.Fatalf("flip-flop bit missing from result")
	}
	if ff.Resource != "SLICEL_X0.AFF" || ff.Function != "ZRST" {
		t.Errorf("flip-flop bit defined as %q / %q", ff.Resource, ff.Function)
	}
	if ff.DesignName != "data_path/q_reg[0]" {
		t.Errorf("design name = %q", ff.DesignName)
	}
	if ff.Failure != "ZRST bit altered for data_path/q_reg[0]" {
		t.Errorf("failure = %q", ff.Failure)
	}

	lutBit := result["bit_00400b01_050_10"]
	if lutBit == nil {
		t.Fatalf("LUT bit missing from result")
	}
	if lutBit.DesignName != "logic/and_i" {
		t.Errorf("design name = %q", lutBit.DesignName)
	}
	if lutBit.Failure != "INIT[63] bit altered for logic/and_i" {
		t.Errorf("failure = %q", lutBit.Failure)
	}
	// Bit 63 flips the all-inputs-high entry, which zeroes the AND cell.
	if !strings.Contains(lutBit.Note, "4'h0") || !strings.Contains(lutBit.Note, "64'h0888888888888888") {
		t.Errorf("LUT upset note = %q", lutBit.Note)
	}
}

func TestAnalyzeGroups(t *testing.T) {
	a := newTestAnalyzer(t)

	groups := map[int]BitGroup{
		1: {{Frame: 0x00400a01, Word: 50, Bit: 0}},
		2: {{Frame: 0x00400b00, Word: 50, Bit: 5}},
	}
	var done atomic.Int32
	report, err := a.AnalyzeGroups(context.Background(), groups, 2, func() { done.Add(1) })
	if err != nil {
		t.Fatalf("AnalyzeGroups failed: %v", err)
	}
	if len(report) != 2 || done.Load() != 2 {
		t.Fatalf("report covers %d groups, %d callbacks", len(report), done.Load())
	}
	if _, ok := report[1]["bit_00400a01_050_00"]; !ok {
		t.Errorf("group 1 result missing: %v", report[1])
	}
	if _, ok := report[2]["bit_00400b00_050_05"]; !ok {
		t.Errorf("group 2 result missing: %v", report[2])
	}
}

func TestParseBitGroups(t *testing.T) {
	src := `[
		[["00400A00", "50", "1"]],
		[["00400a01", "050", "01"], ["00400a01", "050", "00"]]
	]`
	groups, err := ParseBitGroups(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseBitGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("parsed %d groups", len(groups))
	}
	want := bitstream.BitAddress{Frame: 0x00400a00, Word: 50, Bit: 1}
	if len(groups[1]) != 1 || groups[1][0] != want {
		t.Errorf("group 1 = %v", groups[1])
	}
	if len(groups[2]) != 2 {
		t.Errorf("group 2 = %v", groups[2])
	}

	if _, err := ParseBitGroups(strings.NewReader(`[[["zz", "0", "0"]]]`)); err == nil {
		t.Error("malformed frame address accepted")
	}
}

func TestGlobalSite(t *testing.T) {
	a := newTestAnalyzer(t)

	site, ok := globalSite("SLICEL_X0", "CLBLL_L_X11Y120", a.Design)
	if !ok || site != "SLICE_X14Y120" {
		t.Fatalf("globalSite = %q, %v", site, ok)
	}
	if _, ok := globalSite("SLICEL_X1", "CLBLL_L_X11Y120", a.Design); ok {
		t.Error("matched a site with the wrong X offset")
	}
	if _, ok := globalSite("RAMB18", "CLBLL_L_X11Y120", a.Design); ok {
		t.Error("matched a site name without an offset")
	}
}
