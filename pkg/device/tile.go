package device

import (
	"sort"
	"strings"
)

// Archetype is the immutable rule model shared by every tile of one type:
// resource bit rules, and for interconnect types the pip and pseudo-pip
// tables plus the derived routing muxes. Built once per type and never
// mutated during a run.
type Archetype struct {
	Type      string
	Resources map[string][]BitRule            // resource -> bit rules
	Pips      map[string]map[string][]BitRule // sink -> source -> bit rules
	PseudoPips map[string]map[string]string   // sink -> source -> config type
	Muxes     map[string]*RoutingMux          // sink -> mux (interconnect only)

	// Block RAM content initialization bits, kept apart from the
	// configuration bits proper.
	InitResources map[string]string // resource -> bit address
	InitBits      map[string]bool

	bits map[string]bool // every config bit address in the archetype
}

// IsInterconnect reports whether the tile type is a routing switchbox.
func IsInterconnect(tileType string) bool {
	return tileType == "INT_L" || tileType == "INT_R"
}

// configBitSrc stands in for the source name of interconnect rules that
// configure the tile itself rather than a pip.
const configBitSrc = "Config Bit"

// NewArchetype builds the rule model for one tile type from its parsed
// segbits entries and, for interconnect types, its pseudo-pip entries.
// Feature names carry the tile type as their first dotted segment, which is
// stripped.
func NewArchetype(tileType string, segbits []*SegbitsEntry, ppips []*PpipEntry) *Archetype {
	arch := &Archetype{
		Type:          tileType,
		Resources:     make(map[string][]BitRule),
		Pips:          make(map[string]map[string][]BitRule),
		PseudoPips:    make(map[string]map[string]string),
		Muxes:         make(map[string]*RoutingMux),
		InitResources: make(map[string]string),
		InitBits:      make(map[string]bool),
		bits:          make(map[string]bool),
	}
	interconnect := IsInterconnect(tileType)

	for _, entry := range segbits {
		header := strings.Split(entry.Feature, ".")
		for _, rule := range entry.Bits {
			arch.bits[rule.Addr] = true
		}

		if interconnect {
			sink := header[1]
			src := configBitSrc
			if len(header) > 2 {
				src = header[2]
			}
			if arch.Pips[sink] == nil {
				arch.Pips[sink] = make(map[string][]BitRule)
			}
			arch.Pips[sink][src] = entry.Bits
			continue
		}
		arch.Resources[strings.Join(header[1:], ".")] = entry.Bits
	}

	if interconnect {
		for sink, srcs := range arch.Pips {
			arch.Muxes[sink] = NewRoutingMux(sink, srcs)
		}
		for _, entry := range ppips {
			header := strings.Split(entry.Pip, ".")
			if len(header) < 3 {
				continue
			}
			sink, src := header[1], header[2]
			if arch.PseudoPips[sink] == nil {
				arch.PseudoPips[sink] = make(map[string]string)
			}
			arch.PseudoPips[sink][src] = entry.Type
		}
	}
	return arch
}

// AddInitEntries registers block RAM content initialization rules, parsed
// from the block_ram segbits database when one exists for the type.
func (a *Archetype) AddInitEntries(entries []*SegbitsEntry) {
	for _, entry := range entries {
		header := strings.Split(entry.Feature, ".")
		if len(entry.Bits) != 1 {
			continue
		}
		addr := entry.Bits[0].Addr
		a.InitResources[strings.Join(header[1:], ".")] = addr
		a.InitBits[addr] = true
	}
}

// Bits returns every modeled configuration bit address in sorted order.
func (a *Archetype) Bits() []string {
	addrs := make([]string, 0, len(a.bits))
	for addr := range a.bits {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// HasBit reports whether addr is a modeled configuration bit of the type.
func (a *Archetype) HasBit(addr string) bool { return a.bits[addr] }

// Empty reports whether the archetype models no configuration bits at all,
// which is the case for tile types without a rule database.
func (a *Archetype) Empty() bool { return len(a.bits) == 0 }

// Sinks returns the interconnect sink nodes in sorted order.
func (a *Archetype) Sinks() []string {
	sinks := make([]string, 0, len(a.Pips))
	for sink := range a.Pips {
		sinks = append(sinks, sink)
	}
	sort.Strings(sinks)
	return sinks
}

// Instance is one concrete tile: an archetype plus the tile's own mutable
// configuration bit values. Instances are created fresh for each analysis
// unit and never shared.
type Instance struct {
	Name string
	Arch *Archetype
	bits map[string]uint8
}

// NewInstance creates a tile instance with every configuration bit cleared.
func NewInstance(name string, arch *Archetype) *Instance {
	bits := make(map[string]uint8, len(arch.bits))
	for addr := range arch.bits {
		bits[addr] = 0
	}
	return &Instance{Name: name, Arch: arch, bits: bits}
}

// SetBit assigns a value to a configuration bit.
func (t *Instance) SetBit(addr string, value uint8) { t.bits[addr] = value }

// Bit returns the current value of a configuration bit.
func (t *Instance) Bit(addr string) uint8 { return t.bits[addr] }

// FlipBit inverts a configuration bit.
func (t *Instance) FlipBit(addr string) {
	t.bits[addr] ^= 1
}

// EvalRules reports whether every bit rule holds under the instance's
// current configuration.
func (t *Instance) EvalRules(rules []BitRule) bool {
	for _, rule := range rules {
		v := t.bits[rule.Addr]
		if rule.Negated {
			if v != 0 {
				return false
			}
		} else if v != 1 {
			return false
		}
	}
	return true
}

// EvalResource reports whether the named resource's rules hold. Unknown
// resources evaluate false.
func (t *Instance) EvalResource(resource string) bool {
	rules, ok := t.Arch.Resources[resource]
	return ok && t.EvalRules(rules)
}

// Connections evaluates every pip of the tile and returns the connections
// currently formed, keyed by source node.
func (t *Instance) Connections() map[string][]string {
	cnxs := make(map[string][]string)
	for sink, srcs := range t.Arch.Pips {
		for src, rules := range srcs {
			if t.EvalRules(rules) {
				cnxs[src] = append(cnxs[src], sink)
			}
		}
	}
	for _, sinks := range cnxs {
		sort.Strings(sinks)
	}
	return cnxs
}

// ConnectedSources returns the source nodes whose pip rules into the given
// sink all hold.
func (t *Instance) ConnectedSources(sink string) map[string]bool {
	srcs := make(map[string]bool)
	for src, rules := range t.Arch.Pips[sink] {
		if t.EvalRules(rules) {
			srcs[src] = true
		}
	}
	return srcs
}
