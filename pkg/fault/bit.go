// Package fault defines fault bits and evaluates the design failures they
// cause: routing opens and shorts in interconnect tiles, altered CLB
// configuration, and LUT init memory corruption.
package fault

import (
	"sort"
	"strconv"
	"strings"

	"github.com/byuccl/bfat/pkg/bitstream"
	"github.com/byuccl/bfat/pkg/design"
	"github.com/byuccl/bfat/pkg/device"
	"github.com/byuccl/bfat/pkg/lut"
)

// UpsetType is the direction a fault drives a configuration bit.
type UpsetType string

const (
	DrivenLow    UpsetType = "1->0"
	DrivenHigh   UpsetType = "0->1"
	UnknownUpset UpsetType = "NA"
)

// Default text for fields no design fact could fill in.
const (
	notAvailable    = "NA"
	noFaultSupport  = "fault evaluation not yet supported for this bit"
	noAffectedRsrcs = "No affected resources found"
	noFailuresFound = "Not able to find any failures caused by this fault"
	noInstancedRsrc = "No instanced resource found for this bit"
)

// FaultBit is one upset bit together with everything the databases and the
// design reveal about it.
type FaultBit struct {
	Name string // bitstream address name, bit_<frame>_<word>_<bit>
	Addr bitstream.BitAddress

	// Tile-relative location. Tile is empty for undefined bits, in which
	// case Candidates lists every tile whose geometry contains the address.
	Tile       string
	LocalAddr  string
	Bus        string
	Candidates []string

	// Functions holds the bit's physical roles from the rule databases;
	// Resource and Function are the primary role split into its resource
	// path and role name.
	Functions [][]string
	Resource  string
	Function  string

	Type       UpsetType
	DesignName string

	AffectedResources []string
	AffectedPips      []string
	Failure           string
	Note              string

	// PossibleResources maps each candidate tile of an undefined bit to its
	// placed cells, keyed "site/bel".
	PossibleResources map[string]map[string]string
}

// Defined reports whether the bit was pinned to a single tile.
func (fb *FaultBit) Defined() bool { return fb.Tile != "" }

// IsInterconnect reports whether the bit configures a routing switchbox.
func (fb *FaultBit) IsInterconnect() bool {
	return strings.Contains(fb.Tile, "INT_L") || strings.Contains(fb.Tile, "INT_R")
}

// Define resolves a bitstream address against the part databases: the owning
// tile, the tile-local address, and the physical functions of the bit.
func Define(addr bitstream.BitAddress, tr *device.Translator) *FaultBit {
	fb := &FaultBit{
		Name:              addr.String(),
		Addr:              addr,
		Resource:          notAvailable,
		Function:          notAvailable,
		DesignName:        notAvailable,
		AffectedResources: []string{notAvailable},
		AffectedPips:      []string{notAvailable},
		Failure:           noFaultSupport,
		Note:              notAvailable,
	}

	loc, candidates, found := tr.Locate(addr)
	fb.Candidates = candidates
	if !found {
		return fb
	}
	fb.Tile = loc.Tile
	fb.LocalAddr = loc.Addr
	fb.Bus = loc.Bus

	tileType := device.TileType(fb.Tile)
	arch, ok := tr.Types[tileType]
	if !ok {
		return fb
	}

	switch {
	case device.IsInterconnect(tileType):
		// The bit steers exactly one routing mux; report which one and
		// whether it selects a row or a column.
		for _, sink := range arch.Sinks() {
			mux := arch.Muxes[sink]
			if mux == nil {
				continue
			}
			if mux.IsRowBit(loc.Addr) {
				fb.Functions = append(fb.Functions, []string{muxDescription(mux), "Row Bit"})
			} else if mux.IsColBit(loc.Addr) {
				fb.Functions = append(fb.Functions, []string{muxDescription(mux), "Column Bit"})
			} else {
				continue
			}
			break
		}

	case strings.Contains(tileType, "BRAM") && loc.Bus == "BLOCK_RAM":
		for _, resource := range sortedKeys(arch.InitResources) {
			if arch.InitResources[resource] == loc.Addr {
				fb.Functions = append(fb.Functions, strings.Split(resource, "."))
			}
		}

	default:
		for _, resource := range sortedKeys(arch.Resources) {
			for _, rule := range arch.Resources[resource] {
				if rule.Addr == loc.Addr {
					fb.Functions = append(fb.Functions, strings.Split(resource, "."))
					break
				}
			}
		}
	}

	// NOCLKINV duplicates the CLKINV function under its deasserted name.
	for _, fctn := range fb.Functions {
		if fctn[len(fctn)-1] == "NOCLKINV" {
			fctn[len(fctn)-1] = "CLKINV"
		}
	}

	if len(fb.Functions) > 0 {
		primary := fb.Functions[0]
		fb.Resource = strings.Join(primary[:len(primary)-1], ".")
		fb.Function = primary[len(primary)-1]
	}
	return fb
}

func muxDescription(mux *device.RoutingMux) string {
	return mux.Sink + " " + mux.Topology + " Routing Mux"
}

// updateWithDesign fills in the design-facing fields: the design name of the
// bit's resource and the cells its failure can reach.
func (fb *FaultBit) updateWithDesign(q design.Query) {
	if !fb.Defined() {
		fb.PossibleResources = possibleAffectedResources(fb.Candidates, q)
		return
	}

	switch {
	case fb.IsInterconnect():
		muxName := firstField(fb.Resource)
		fb.DesignName = fb.Tile + "/" + muxName
		if net, ok := q.Net(fb.Tile, muxName); ok {
			fb.AffectedResources = q.AffectedResources(net, fb.Tile, muxName)
		} else {
			fb.AffectedResources = []string{noAffectedRsrcs}
		}

	case strings.Contains(fb.Tile, "CLB") && !strings.Contains(fb.Resource, "."):
		// Site-wide control functions like clock inversion or flip-flop
		// set/reset style, named by the site alone.
		if site, ok := globalSite(fb.Resource, fb.Tile, q); ok {
			fb.AffectedResources = q.CLBAffectedResources(site, fb.Function)
			fb.Resource = site
		}
		fb.Resource = fb.Resource + "." + fb.Function
		fb.Function = "Configuration"
		if len(fb.AffectedResources) > 0 && !containsString(fb.AffectedResources, notAvailable) {
			fb.DesignName = strings.Split(fb.Resource, ".")[1]
		}

	default:
		elements := strings.Split(fb.Resource, ".")
		localSite, bel := elements[0], elements[len(elements)-1]
		if site, ok := globalSite(localSite, fb.Tile, q); ok {
			fb.DesignName = siteRelatedCells(fb.Tile, site, bel, q)
			fb.AffectedResources = strings.Split(fb.DesignName, ", ")
			fb.annotateLUTUpset(site, bel, q)
		}
	}

	if len(fb.AffectedResources) == 0 ||
		(len(fb.AffectedResources) <= 1 && containsString(fb.AffectedResources, notAvailable)) {
		fb.AffectedResources = []string{noAffectedRsrcs}
	}
}

// annotateLUTUpset notes how a LUT init bit upset rewrites the truth tables
// of the cell placed on the LUT.
func (fb *FaultBit) annotateLUTUpset(site, bel string, q design.Query) {
	if fb.DesignName == notAvailable || !strings.HasPrefix(fb.Function, "INIT[") {
		return
	}
	index, ok := initBitIndex(fb.Function)
	if !ok {
		return
	}
	siteCells := q.TileCells(fb.Tile)[site]

	// The database names the LUT pair as e.g. ALUT; resolve the placed BEL.
	for _, placedBel := range sortedKeys(siteCells) {
		if len(placedBel) < 3 || bel != placedBel[:1]+placedBel[2:] {
			continue
		}
		model, err := lut.NewModel(siteCells[placedBel], placedBel, siteCells, q)
		if err != nil {
			continue
		}
		belInit, cellInit := model.SimulateUpset([]int{index})
		fb.Note = "upset changes the " + placedBel + " init from " + model.BelInitString() +
			" to " + belInit + "; cell " + model.Cell + " init from " +
			model.CellInitString() + " to " + cellInit
		return
	}
}

// initBitIndex parses the NN out of a function name like INIT[NN].
func initBitIndex(function string) (int, bool) {
	open := strings.IndexByte(function, '[')
	end := strings.IndexByte(function, ']')
	if open < 0 || end <= open {
		return 0, false
	}
	index, err := strconv.Atoi(function[open+1 : end])
	if err != nil {
		return 0, false
	}
	return index, true
}

// possibleAffectedResources gathers every placed cell in each candidate tile
// of an undefined bit.
func possibleAffectedResources(tiles []string, q design.Query) map[string]map[string]string {
	possible := make(map[string]map[string]string)
	for _, tile := range tiles {
		possible[tile] = make(map[string]string)
		for site, bels := range q.TileCells(tile) {
			if _, unplaced := bels["None"]; unplaced {
				continue
			}
			for bel, cell := range bels {
				possible[tile][site+"/"+bel] = cell
			}
		}
	}
	return possible
}

// globalSite converts a tile-relative site name from the rule database
// (SLICEL_X0, IOB_Y1) to the absolute site name used by the design.
func globalSite(localSite, tile string, q design.Query) (string, bool) {
	parts := strings.Split(localSite, "_")
	if len(parts) != 2 {
		return "", false
	}
	root, offset := parts[0], parts[1]
	if strings.Contains(root, "SLICE") {
		root = "SLICE"
	}

	var sites []string
	for site := range q.TileCells(tile) {
		if strings.Contains(site, root) {
			sites = append(sites, site)
		}
	}
	sort.Strings(sites)
	if len(sites) == 0 {
		return "", false
	}

	if strings.Contains(offset, "Y") {
		tileY, ok := tileYIndex(tile)
		if !ok {
			return "", false
		}
		if strings.Contains(offset, "1") {
			tileY++
		}
		for _, site := range sites {
			if strings.Contains(site, "Y"+strconv.Itoa(tileY)) {
				return site, true
			}
		}
		return "", false
	}

	for _, site := range sites {
		x := strings.IndexByte(site, 'X')
		y := strings.IndexByte(site, 'Y')
		if x < 0 || y <= x {
			continue
		}
		xIndex, ok := atoi(site[x+1 : y])
		if !ok {
			continue
		}
		xOff := xIndex % 2
		if (strings.Contains(offset, "X0") && xOff == 0) ||
			(strings.Contains(offset, "X1") && xOff > 0) {
			return site, true
		}
	}
	return "", false
}

// tileYIndex reads the Y coordinate out of a tile name like INT_L_X10Y120.
func tileYIndex(tile string) (int, bool) {
	x := strings.Index(tile, "_X")
	if x < 0 {
		return 0, false
	}
	y := strings.IndexByte(tile[x:], 'Y')
	if y < 0 {
		return 0, false
	}
	return atoi(tile[x+y+1:])
}

// siteRelatedCells finds the design cell(s) on the given BEL, also matching
// the database's pair naming (AFF covers both AFF and A5FF).
func siteRelatedCells(tile, site, bel string, q design.Query) string {
	bels := q.TileCells(tile)[site]
	var related []string
	for b, cell := range bels {
		variant := b
		if len(b) >= 3 {
			variant = b[:1] + b[2:]
		}
		if bel == b || bel == variant {
			related = append(related, cell)
		}
	}
	if len(related) == 0 {
		return notAvailable
	}
	sort.Strings(related)
	return strings.Join(related, ", ")
}

func firstField(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
