package fault

import (
	"strings"

	"github.com/byuccl/bfat/pkg/device"
)

// netTrace is the state of one connectivity trace: tiles rebuilt with the
// post-fault configuration, their evaluated connections, and the nodes
// already visited.
type netTrace struct {
	analyzer *Analyzer
	intTiles map[string][]*FaultBit
	tiles    map[string]*device.Instance
	cnxs     map[string]map[string][]string
	visited  map[string]bool
}

// findConnectedNet searches the post-fault routing fabric for any nets still
// reachable from the given tile node.
func (a *Analyzer) findConnectedNet(tile, node string, intTiles map[string][]*FaultBit) map[string]bool {
	t := &netTrace{
		analyzer: a,
		intTiles: intTiles,
		tiles:    make(map[string]*device.Instance),
		cnxs:     make(map[string]map[string][]string),
		visited:  make(map[string]bool),
	}
	return t.trace(tile, node)
}

// tileConnections lazily rebuilds a tile with its design configuration plus
// the group's bit inversions, and evaluates its routing connections.
func (t *netTrace) tileConnections(tile string) map[string][]string {
	if cnxs, ok := t.cnxs[tile]; ok {
		return cnxs
	}
	arch, ok := t.analyzer.Translator.Types[device.TileType(tile)]
	if !ok {
		t.cnxs[tile] = nil
		return nil
	}

	inst := device.NewInstance(tile, arch)
	for _, addr := range arch.Bits() {
		bsAddr, err := t.analyzer.Translator.ToBitstream(tile, addr, "")
		if err != nil {
			continue
		}
		if t.analyzer.DesignBits[bsAddr.String()] {
			inst.SetBit(addr, 1)
		}
	}
	for _, fb := range t.intTiles[tile] {
		if arch.HasBit(fb.LocalAddr) {
			inst.FlipBit(fb.LocalAddr)
		}
	}

	cnxs := inst.Connections()
	t.tiles[tile] = inst
	t.cnxs[tile] = cnxs
	return cnxs
}

// trace recursively follows a node through tile connections and board wires
// and collects the nets of every routed node it reaches.
func (t *netTrace) trace(tile, node string) map[string]bool {
	t.visited[tile+"/"+node] = true
	cnxs := t.tileConnections(tile)

	var connected []string
	if sinks, isSrc := cnxs[node]; isSrc {
		connected = append(connected, sinks...)
	} else {
		// A sink shares its source's other sinks.
		for _, sinks := range cnxs {
			if containsString(sinks, node) {
				for _, sink := range sinks {
					if sink != node {
						connected = append(connected, sink)
					}
				}
			}
		}
	}

	found := make(map[string]bool)
	for _, conn := range connected {
		if conn == node {
			continue
		}
		if net, ok := t.analyzer.Design.Net(tile, conn); ok {
			found[net] = true
			continue
		}
		for _, wireCnx := range t.analyzer.Design.WireConnections(tile, conn) {
			if !strings.Contains(wireCnx, "INT") || t.visited[wireCnx] {
				continue
			}
			wireTile, wireNode, ok := strings.Cut(wireCnx, "/")
			if !ok {
				continue
			}
			for net := range t.trace(wireTile, wireNode) {
				found[net] = true
			}
		}
	}
	return found
}
