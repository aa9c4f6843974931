package design

import (
	"testing"
)

func newTestDesign() *MemoryQuery {
	q := NewMemoryQuery("xc7a100tcsg324-1")
	q.AddNet("INT_L_X10Y120", "EE2BEG0", "data_path/q_reg_0")
	q.AddNet("INT_L_X10Y120", "LOGIC_OUTS18", "data_path/q_reg_0")
	q.Pips["data_path/q_reg_0"] = []Pip{
		{Source: "INT_L_X10Y120/LOGIC_OUTS18", Sink: "INT_L_X10Y120/EE2BEG0"},
	}
	q.AddCell("CLBLL_L_X11Y120", "SLICE_X14Y120", "AFF", "data_path/q_reg[0]")
	q.AddCell("CLBLL_L_X11Y120", "SLICE_X14Y120", "B6LUT", "data_path/next_i_1")
	q.AddWire("INT_L_X10Y120", "EE2BEG0", "INT_L_X12Y120/EE2END0")
	q.Inits["data_path/next_i_1"] = "64'h8000000000000000"
	return q
}

func TestMemoryQueryLookups(t *testing.T) {
	q := newTestDesign()

	if got := q.Part(); got != "xc7a100tcsg324-1" {
		t.Fatalf("Part() = %q", got)
	}
	net, ok := q.Net("INT_L_X10Y120", "EE2BEG0")
	if !ok || net != "data_path/q_reg_0" {
		t.Fatalf("Net() = %q, %v", net, ok)
	}
	if _, ok := q.Net("INT_L_X10Y120", "EE2BEG1"); ok {
		t.Fatal("Net() found a pin that was never added")
	}
	if _, ok := q.Net("INT_L_X99Y99", "EE2BEG0"); ok {
		t.Fatal("Net() found a tile that was never added")
	}

	cell, ok := q.Cell("CLBLL_L_X11Y120", "SLICE_X14Y120", "AFF")
	if !ok || cell != "data_path/q_reg[0]" {
		t.Fatalf("Cell() = %q, %v", cell, ok)
	}
	cells := q.TileCells("CLBLL_L_X11Y120")
	if len(cells["SLICE_X14Y120"]) != 2 {
		t.Fatalf("TileCells() = %v", cells)
	}

	pips := q.NetPips("data_path/q_reg_0")
	if len(pips) != 1 || pips[0].Sink != "INT_L_X10Y120/EE2BEG0" {
		t.Fatalf("NetPips() = %v", pips)
	}

	conns := q.WireConnections("INT_L_X10Y120", "EE2BEG0")
	if len(conns) != 1 || conns[0] != "INT_L_X12Y120/EE2END0" {
		t.Fatalf("WireConnections() = %v", conns)
	}

	init, ok := q.CellInit("data_path/next_i_1")
	if !ok || init != "64'h8000000000000000" {
		t.Fatalf("CellInit() = %q, %v", init, ok)
	}
	if _, ok := q.CellInit("data_path/q_reg[0]"); ok {
		t.Fatal("CellInit() found an init for a cell without one")
	}
}

// countingQuery counts backend hits so memoization can be asserted.
type countingQuery struct {
	*MemoryQuery
	netCalls   int
	pipCalls   int
	cellCalls  int
	traceCalls int
}

func (q *countingQuery) Net(tile, pin string) (string, bool) {
	q.netCalls++
	return q.MemoryQuery.Net(tile, pin)
}

func (q *countingQuery) NetPips(net string) []Pip {
	q.pipCalls++
	return q.MemoryQuery.NetPips(net)
}

func (q *countingQuery) TileCells(tile string) map[string]map[string]string {
	q.cellCalls++
	return q.MemoryQuery.TileCells(tile)
}

func (q *countingQuery) AffectedResources(net, tile, wire string) []string {
	q.traceCalls++
	return q.MemoryQuery.AffectedResources(net, tile, wire)
}

func TestCachedMemoizesBackend(t *testing.T) {
	backend := &countingQuery{MemoryQuery: newTestDesign()}
	q := NewCached(backend)

	for i := 0; i < 3; i++ {
		if net, ok := q.Net("INT_L_X10Y120", "EE2BEG0"); !ok || net != "data_path/q_reg_0" {
			t.Fatalf("Net() = %q, %v", net, ok)
		}
		q.NetPips("data_path/q_reg_0")
		q.TileCells("CLBLL_L_X11Y120")
		q.AffectedResources("data_path/q_reg_0", "INT_L_X10Y120", "EE2BEG0")
	}
	if backend.netCalls != 1 || backend.pipCalls != 1 || backend.cellCalls != 1 || backend.traceCalls != 1 {
		t.Fatalf("backend hit counts = %d/%d/%d/%d, want 1 each",
			backend.netCalls, backend.pipCalls, backend.cellCalls, backend.traceCalls)
	}

	// Misses memoize too.
	for i := 0; i < 3; i++ {
		if _, ok := q.Net("INT_L_X10Y120", "EE2BEG1"); ok {
			t.Fatal("Net() found a pin that was never added")
		}
	}
	if backend.netCalls != 2 {
		t.Fatalf("negative lookups hit the backend %d times, want 1", backend.netCalls-1)
	}

	// Cell goes through the tile cell table.
	if cell, ok := q.Cell("CLBLL_L_X11Y120", "SLICE_X14Y120", "B6LUT"); !ok || cell != "data_path/next_i_1" {
		t.Fatalf("Cell() = %q, %v", cell, ok)
	}
	if backend.cellCalls != 1 {
		t.Fatalf("Cell() bypassed the tile cache, %d backend hits", backend.cellCalls)
	}
}

func TestPipDivider(t *testing.T) {
	tests := []struct {
		pip  string
		want string
	}{
		{"INT_L_X10Y120/INT_L.LOGIC_OUTS18->>EE2BEG0", "->>"},
		{"INT_L_X10Y120/INT_L.EE2END0<<->>EE2BEG0", "<<->>"},
		{"CLBLL_L_X11Y120/CLBLL_L.CLBLL_L_A->CLBLL_LOGIC_OUTS0", "->"},
	}
	for _, tt := range tests {
		if got := pipDivider(tt.pip); got != tt.want {
			t.Errorf("pipDivider(%q) = %q, want %q", tt.pip, got, tt.want)
		}
	}
}
