// Package design is the boundary to the implemented design's facts: nets,
// pips, cells and wires as placed and routed. The analysis core only consumes
// the Query interface; backends are interchangeable.
package design

// Pip is one directed programmable connection used by a net, identified by
// its full source and sink pin names ("TILE/WIRE").
type Pip struct {
	Source string
	Sink   string
}

// Query supplies read-only facts about one implemented design. All methods
// are idempotent; lookups that find nothing return ok=false or an empty
// slice, never an error — a missing fact degrades the report, it does not
// abort the run.
type Query interface {
	// Part returns the full name of the part the design is implemented on.
	Part() string

	// Net returns the net routed through the given tile pin.
	Net(tile, pin string) (string, bool)

	// NetPips returns every pip the named net drives.
	NetPips(net string) []Pip

	// Cell returns the design cell placed on the given BEL.
	Cell(tile, site, bel string) (string, bool)

	// TileCells returns every placed cell in the tile, keyed site -> BEL.
	TileCells(tile string) map[string]map[string]string

	// WireConnections returns the nodes reachable from the given tile wire,
	// as "TILE/WIRE" names.
	WireConnections(tile, wire string) []string

	// AffectedResources traces the named net downstream from the given tile
	// and wire and returns every design cell it reaches.
	AffectedResources(net, tile, wire string) []string

	// CLBAffectedResources resolves the cells affected by a CLB control
	// function (clock inversion, flip-flop control, LUTRAM write address)
	// through the site's used internal routing.
	CLBAffectedResources(site, function string) []string

	// CellInit returns a LUT cell's truth table init string.
	CellInit(cell string) (string, bool)

	// CellPins returns a LUT cell's BEL-pin to cell-pin mapping.
	CellPins(cell string) map[string]string
}
