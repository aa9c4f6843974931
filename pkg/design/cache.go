package design

import "sync"

// Cached wraps a Query with memoization and a mutex. The same tile and net
// are re-queried constantly during net tracing, and backends like the Vivado
// pipe are both slow and single-threaded; the wrapper makes any backend safe
// to share across analysis workers.
type Cached struct {
	backend Query

	mu     sync.Mutex
	nets   map[string]cachedNet
	pips   map[string][]Pip
	cells  map[string]map[string]map[string]string
	wires  map[string]map[string][]string
	traces map[string][]string
	clb    map[string][]string
	inits  map[string]cachedInit
	pinMap map[string]map[string]string
}

type cachedNet struct {
	net string
	ok  bool
}

type cachedInit struct {
	init string
	ok   bool
}

// NewCached wraps the given backend.
func NewCached(backend Query) *Cached {
	return &Cached{
		backend: backend,
		nets:    make(map[string]cachedNet),
		pips:    make(map[string][]Pip),
		cells:   make(map[string]map[string]map[string]string),
		wires:   make(map[string]map[string][]string),
		traces:  make(map[string][]string),
		clb:     make(map[string][]string),
		inits:   make(map[string]cachedInit),
		pinMap:  make(map[string]map[string]string),
	}
}

func (c *Cached) Part() string { return c.backend.Part() }

func (c *Cached) Net(tile, pin string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tile + "/" + pin
	if hit, ok := c.nets[key]; ok {
		return hit.net, hit.ok
	}
	net, ok := c.backend.Net(tile, pin)
	c.nets[key] = cachedNet{net, ok}
	return net, ok
}

func (c *Cached) NetPips(net string) []Pip {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pips, ok := c.pips[net]; ok {
		return pips
	}
	pips := c.backend.NetPips(net)
	c.pips[net] = pips
	return pips
}

func (c *Cached) Cell(tile, site, bel string) (string, bool) {
	cell, ok := c.TileCells(tile)[site][bel]
	return cell, ok
}

func (c *Cached) TileCells(tile string) map[string]map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cells, ok := c.cells[tile]; ok {
		return cells
	}
	cells := c.backend.TileCells(tile)
	c.cells[tile] = cells
	return cells
}

func (c *Cached) WireConnections(tile, wire string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	byWire, ok := c.wires[tile]
	if !ok {
		byWire = make(map[string][]string)
		c.wires[tile] = byWire
	}
	if conns, ok := byWire[wire]; ok {
		return conns
	}
	conns := c.backend.WireConnections(tile, wire)
	byWire[wire] = conns
	return conns
}

func (c *Cached) AffectedResources(net, tile, wire string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := net + " " + tile + "/" + wire
	if cells, ok := c.traces[key]; ok {
		return cells
	}
	cells := c.backend.AffectedResources(net, tile, wire)
	c.traces[key] = cells
	return cells
}

func (c *Cached) CLBAffectedResources(site, function string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := site + " " + function
	if cells, ok := c.clb[key]; ok {
		return cells
	}
	cells := c.backend.CLBAffectedResources(site, function)
	c.clb[key] = cells
	return cells
}

func (c *Cached) CellInit(cell string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit, ok := c.inits[cell]; ok {
		return hit.init, hit.ok
	}
	init, ok := c.backend.CellInit(cell)
	c.inits[cell] = cachedInit{init, ok}
	return init, ok
}

func (c *Cached) CellPins(cell string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pins, ok := c.pinMap[cell]; ok {
		return pins
	}
	pins := c.backend.CellPins(cell)
	c.pinMap[cell] = pins
	return pins
}
