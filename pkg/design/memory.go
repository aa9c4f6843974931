package design

// MemoryQuery is a Query backed entirely by preloaded maps. It serves tests
// and any flow where the design facts were extracted ahead of time.
type MemoryQuery struct {
	PartName  string
	Nets      map[string]map[string]string            // tile -> pin -> net
	Pips      map[string][]Pip                        // net -> pips
	Cells     map[string]map[string]map[string]string // tile -> site -> bel -> cell
	Wires     map[string]map[string][]string          // tile -> wire -> connections
	Traces    map[string][]string                     // net "tile/wire" key -> cells
	CLBTraces map[string][]string                     // "site function" key -> cells
	Inits     map[string]string                       // cell -> init string
	PinMaps   map[string]map[string]string            // cell -> bel pin -> cell pin
}

// NewMemoryQuery returns an empty in-memory design for the given part.
func NewMemoryQuery(part string) *MemoryQuery {
	return &MemoryQuery{
		PartName:  part,
		Nets:      make(map[string]map[string]string),
		Pips:      make(map[string][]Pip),
		Cells:     make(map[string]map[string]map[string]string),
		Wires:     make(map[string]map[string][]string),
		Traces:    make(map[string][]string),
		CLBTraces: make(map[string][]string),
		Inits:     make(map[string]string),
		PinMaps:   make(map[string]map[string]string),
	}
}

// AddNet registers the net routed through a tile pin.
func (q *MemoryQuery) AddNet(tile, pin, net string) {
	if q.Nets[tile] == nil {
		q.Nets[tile] = make(map[string]string)
	}
	q.Nets[tile][pin] = net
}

// AddCell places a cell on a BEL.
func (q *MemoryQuery) AddCell(tile, site, bel, cell string) {
	if q.Cells[tile] == nil {
		q.Cells[tile] = make(map[string]map[string]string)
	}
	if q.Cells[tile][site] == nil {
		q.Cells[tile][site] = make(map[string]string)
	}
	q.Cells[tile][site][bel] = cell
}

// AddWire registers the connections of a tile wire.
func (q *MemoryQuery) AddWire(tile, wire string, connections ...string) {
	if q.Wires[tile] == nil {
		q.Wires[tile] = make(map[string][]string)
	}
	q.Wires[tile][wire] = append(q.Wires[tile][wire], connections...)
}

func (q *MemoryQuery) Part() string { return q.PartName }

func (q *MemoryQuery) Net(tile, pin string) (string, bool) {
	net, ok := q.Nets[tile][pin]
	return net, ok
}

func (q *MemoryQuery) NetPips(net string) []Pip { return q.Pips[net] }

func (q *MemoryQuery) Cell(tile, site, bel string) (string, bool) {
	cell, ok := q.Cells[tile][site][bel]
	return cell, ok
}

func (q *MemoryQuery) TileCells(tile string) map[string]map[string]string {
	return q.Cells[tile]
}

func (q *MemoryQuery) WireConnections(tile, wire string) []string {
	return q.Wires[tile][wire]
}

func (q *MemoryQuery) AffectedResources(net, tile, wire string) []string {
	return q.Traces[net+" "+tile+"/"+wire]
}

func (q *MemoryQuery) CLBAffectedResources(site, function string) []string {
	return q.CLBTraces[site+" "+function]
}

func (q *MemoryQuery) CellInit(cell string) (string, bool) {
	init, ok := q.Inits[cell]
	return init, ok
}

func (q *MemoryQuery) CellPins(cell string) map[string]string { return q.PinMaps[cell] }
