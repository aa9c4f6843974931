package device

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// muxTopology describes one of the known switchbox mux shapes: how many
// sources reference each row bit and each column bit, and the label used when
// reporting the mux.
type muxTopology struct {
	label   string
	rowRefs int
	colRefs int
}

// Topologies keyed by the number of sources feeding the sink.
var muxTopologies = map[int]muxTopology{
	24: {"5-24", 4, 24},
	20: {"2-20", 5, 4},
	18: {"2-18", 6, 3},
	16: {"5-16", 4, 16},
	12: {"2-12", 4, 3},
}

// RoutingMux models the configuration mux driving one sink node of a routing
// switchbox. Each configuration bit of the mux is either a row bit (selects
// within a column) or a column bit, classified by how many of the sink's
// sources reference it.
type RoutingMux struct {
	Sink     string
	Topology string
	RowBits  []string
	ColBits  []string
}

// NewRoutingMux classifies the bits of the given sink's pip table. Source
// counts and bit reference counts outside the known topologies are logged as
// model defects; the bits involved stay unclassified.
func NewRoutingMux(sink string, pips map[string][]BitRule) *RoutingMux {
	mux := &RoutingMux{Sink: sink}

	refs := make(map[string]int)
	for _, rules := range pips {
		for _, rule := range rules {
			refs[rule.Addr]++
		}
	}

	topo, ok := muxTopologies[len(pips)]
	if !ok {
		log.Warnf("unrecognized number of source nodes (%d) for %s sink node", len(pips), sink)
		return mux
	}
	mux.Topology = topo.label

	addrs := make([]string, 0, len(refs))
	for addr := range refs {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		switch refs[addr] {
		case topo.colRefs:
			mux.ColBits = append(mux.ColBits, addr)
		case topo.rowRefs:
			mux.RowBits = append(mux.RowBits, addr)
		default:
			log.Warnf("unrecognized number of inclusions (%d) in routing mux for %s", refs[addr], addr)
		}
	}
	return mux
}

// IsRowBit reports whether addr is one of the mux's row bits.
func (m *RoutingMux) IsRowBit(addr string) bool { return containsBit(m.RowBits, addr) }

// IsColBit reports whether addr is one of the mux's column bits.
func (m *RoutingMux) IsColBit(addr string) bool { return containsBit(m.ColBits, addr) }

func containsBit(bits []string, addr string) bool {
	for _, b := range bits {
		if b == addr {
			return true
		}
	}
	return false
}
