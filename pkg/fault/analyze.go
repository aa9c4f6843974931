package fault

import (
	"sort"
	"strings"

	"github.com/byuccl/bfat/pkg/bitstream"
	"github.com/byuccl/bfat/pkg/design"
	"github.com/byuccl/bfat/pkg/device"
)

// Analyzer evaluates bit groups against one part and one implemented design.
// The design query must be safe for the analyzer's use pattern; wrap slow or
// single-threaded backends in design.Cached before fanning out.
type Analyzer struct {
	Translator *device.Translator
	Design     design.Query

	// DesignBits holds the name of every bit set in the design's bitstream.
	DesignBits map[string]bool
	// Frames holds every valid frame address of the part.
	Frames map[bitstream.FrameAddress]bool
}

// upsetType classifies the direction a fault drives a bit: set bits are
// driven low, cleared bits in a valid frame are driven high.
func (a *Analyzer) upsetType(addr bitstream.BitAddress) UpsetType {
	switch {
	case a.DesignBits[addr.String()]:
		return DrivenLow
	case a.Frames[addr.Frame]:
		return DrivenHigh
	}
	return UnknownUpset
}

// NewFaultBit defines a single fault bit and fills in its design facts.
func (a *Analyzer) NewFaultBit(addr bitstream.BitAddress) *FaultBit {
	fb := Define(addr, a.Translator)
	fb.Type = a.upsetType(addr)
	fb.updateWithDesign(a.Design)
	return fb
}

// AnalyzeGroup evaluates one bit group: every bit is defined and resolved
// against the design, and the interconnect bits of each affected tile are
// simulated together to find the opens and shorts they create.
func (a *Analyzer) AnalyzeGroup(group []bitstream.BitAddress) map[string]*FaultBit {
	faultBits := make(map[string]*FaultBit)
	intTiles := make(map[string][]*FaultBit)

	for _, addr := range group {
		fb := a.NewFaultBit(addr)
		switch {
		case fb.IsInterconnect():
			intTiles[fb.Tile] = append(intTiles[fb.Tile], fb)
		case strings.Contains(fb.Tile, "CLB"):
			if fb.DesignName == notAvailable {
				fb.Failure = noInstancedRsrc
			} else {
				fb.Failure = fb.Function + " bit altered for " + fb.DesignName
			}
		}
		faultBits[fb.Name] = fb
	}

	for _, tile := range sortedKeys(intTiles) {
		arch, ok := a.Translator.Types[device.TileType(tile)]
		if !ok {
			continue
		}
		inst := device.NewInstance(tile, arch)

		muxes := make(map[string]bool)
		for _, fb := range intTiles[tile] {
			muxes[firstField(fb.Resource)] = true
		}
		for mux := range muxes {
			a.setMuxConfig(inst, mux)
		}

		for name, result := range a.evalInterconnectTile(inst, muxes, intTiles) {
			faultBits[name].Failure = result.failure
			faultBits[name].AffectedPips = result.pips
		}
	}
	return faultBits
}

// setMuxConfig loads the design's value for every configuration bit of the
// given routing mux into the tile instance.
func (a *Analyzer) setMuxConfig(inst *device.Instance, mux string) {
	for _, rules := range inst.Arch.Pips[mux] {
		for _, rule := range rules {
			addr, err := a.Translator.ToBitstream(inst.Name, rule.Addr, "")
			if err != nil {
				continue
			}
			if a.DesignBits[addr.String()] {
				inst.SetBit(rule.Addr, 1)
			}
		}
	}
}

type tileResult struct {
	failure string
	pips    []string
}

// evalInterconnectTile applies the tile's bit upsets and diffs each affected
// mux's connectivity before and after: sources that drop out are opens, and
// multiple surviving sources are a short.
func (a *Analyzer) evalInterconnectTile(inst *device.Instance, muxes map[string]bool, intTiles map[string][]*FaultBit) map[string]tileResult {
	report := make(map[string]tileResult)
	tileBits := intTiles[inst.Name]

	initialSrcs := make(map[string]map[string]bool)
	for mux := range muxes {
		initialSrcs[mux] = a.connectedSources(inst, mux)
	}

	for _, fb := range tileBits {
		switch fb.Type {
		case DrivenLow:
			inst.SetBit(fb.LocalAddr, 0)
		case DrivenHigh:
			inst.SetBit(fb.LocalAddr, 1)
		}
	}

	for _, mux := range sortedKeys(muxes) {
		faultSrcs := a.connectedSources(inst, mux)

		openSrcs := make(map[string]bool)
		for src := range initialSrcs[mux] {
			if !faultSrcs[src] {
				openSrcs[src] = true
			}
		}

		shortSrcs := make(map[string]bool)
		if len(faultSrcs) > 1 {
			for src := range faultSrcs {
				shortSrcs[src] = true
			}
		}

		affectedPips := a.affectedPips(tileBits, inst, mux, openSrcs, shortSrcs)

		// A shorted source that was carrying the signal before the upset
		// is called out as such.
		for src := range initialSrcs[mux] {
			if shortSrcs[src] {
				delete(shortSrcs, src)
				shortSrcs[src+" (initially connected)"] = true
			}
		}

		var parts []string
		if len(openSrcs) > 0 {
			parts = append(parts, "Opens created for net(s): "+strings.Join(sortedKeys(openSrcs), ", "))
		}
		if len(shortSrcs) > 0 {
			parts = append(parts, "Shorts formed between net(s): "+strings.Join(sortedKeys(shortSrcs), ", "))
		}

		failure := noFailuresFound
		if len(parts) > 0 {
			failure = a.subPinsWithNets(strings.Join(parts, "; "), inst.Name, intTiles)
		}

		for _, fb := range tileBits {
			if strings.Contains(fb.Resource, mux) {
				report[fb.Name] = tileResult{failure: failure, pips: affectedPips[fb.Name]}
			}
		}
	}
	return report
}

// connectedSources evaluates which source nodes currently drive the sink,
// including default pseudo-pips that conduct whenever the whole mux is off
// and the design routes one net through both ends.
func (a *Analyzer) connectedSources(inst *device.Instance, sink string) map[string]bool {
	srcs := inst.ConnectedSources(sink)

	for src, pipType := range inst.Arch.PseudoPips[sink] {
		if pipType != "default" {
			continue
		}
		mux := inst.Arch.Muxes[sink]
		if mux == nil {
			continue
		}
		allOff := true
		for _, addr := range mux.RowBits {
			if inst.Bit(addr) != 0 {
				allOff = false
				break
			}
		}
		if allOff {
			for _, addr := range mux.ColBits {
				if inst.Bit(addr) != 0 {
					allOff = false
					break
				}
			}
		}
		if !allOff {
			continue
		}
		sinkNet, sinkOK := a.Design.Net(inst.Name, sink)
		srcNet, srcOK := a.Design.Net(inst.Name, src)
		if sinkOK && srcOK && sinkNet == srcNet {
			srcs[src] = true
		}
	}
	return srcs
}

// affectedPips names the pips each fault bit touched and whether the fault
// activated or deactivated them.
func (a *Analyzer) affectedPips(tileBits []*FaultBit, inst *device.Instance, mux string, openSrcs, shortSrcs map[string]bool) map[string][]string {
	pips := make(map[string][]string)
	for _, fb := range tileBits {
		pips[fb.Name] = fb.AffectedPips
	}

	appendPip := func(name, entry string) {
		if containsString(pips[name], notAvailable) {
			pips[name] = []string{entry}
		} else {
			pips[name] = append(pips[name], entry)
		}
	}

	for _, group := range []struct {
		kind string
		srcs map[string]bool
	}{{"deactivated", openSrcs}, {"activated", shortSrcs}} {
		for _, src := range sortedKeys(group.srcs) {
			// Constant sources are not in the pip table; tie them to every
			// fault bit steering this mux.
			if src == "VCC_WIRE" || src == "GND_WIRE" {
				routingMux := inst.Arch.Muxes[mux]
				if routingMux == nil {
					continue
				}
				for _, fb := range tileBits {
					if routingMux.IsRowBit(fb.LocalAddr) || routingMux.IsColBit(fb.LocalAddr) {
						appendPip(fb.Name, src+"->>"+mux+" ("+group.kind+")")
					}
				}
				continue
			}

			rules := inst.Arch.Pips[mux][src]
			separator := "->>"
			if _, reversed := inst.Arch.Pips[src][mux]; reversed {
				separator = "<<->>"
			}
			for _, fb := range tileBits {
				for _, rule := range rules {
					if rule.Addr == fb.LocalAddr {
						appendPip(fb.Name, src+separator+mux+" ("+group.kind+")")
						break
					}
				}
			}
		}
	}
	return pips
}

// subPinsWithNets rewrites a failure message's pin names into the nets the
// design routes through them, tracing unrouted pins through the post-fault
// connectivity.
func (a *Analyzer) subPinsWithNets(msg, tile string, intTiles map[string][]*FaultBit) string {
	sections := strings.Split(msg, "; ")
	out := make([]string, 0, len(sections))

	for _, section := range sections {
		head, pinList, ok := strings.Cut(section, ": ")
		if !ok {
			out = append(out, section)
			continue
		}
		nets := make(map[string]bool)
		var indirect []string

		for _, p := range strings.Split(pinList, ", ") {
			pin := firstField(p)
			initially := strings.Contains(p, "(initially connected)")
			if net, ok := a.Design.Net(tile, pin); ok {
				if initially {
					nets[net+" (initially connected)"] = true
				} else {
					nets[net] = true
				}
			} else {
				indirect = append(indirect, p)
			}
		}

		sort.Strings(indirect)
		for _, p := range indirect {
			connected := a.findConnectedNet(tile, firstField(p), intTiles)
			for net := range connected {
				if nets[net] || nets[net+" (initially connected)"] {
					delete(connected, net)
				}
			}
			if len(connected) == 0 {
				nets["Unconnected Wire("+p+")"] = true
				continue
			}
			for net := range connected {
				nets[net] = true
			}
		}

		out = append(out, head+": "+strings.Join(sortedKeys(nets), ", "))
	}
	return strings.Join(out, "; ")
}
