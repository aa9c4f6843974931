package device

import (
	"fmt"
	"sort"

	"github.com/byuccl/bfat/pkg/bitstream"
)

// Location is the tile-relative form of a bitstream bit: the owning tile,
// the tile-local address, and the bus whose dataset matched.
type Location struct {
	Tile string
	Addr string
	Bus  string
}

// Translator converts between bitstream addresses and tile-local addresses
// using a part's tilegrid and the archetypes of its tile types.
type Translator struct {
	Grid  Tilegrid
	Types map[string]*Archetype
}

// Locate finds the tile that owns the given bitstream bit. When a tile's
// archetype confirms the bit is one of its modeled configuration bits, that
// tile and the local address are returned with found=true. Otherwise found is
// false and candidates lists every tile whose geometry contains the address.
func (tr *Translator) Locate(bit bitstream.BitAddress) (loc Location, candidates []string, found bool) {
	type match struct {
		tile string
		set  Dataset
	}
	var matches []match
	for tile, sets := range tr.Grid {
		for _, set := range sets {
			if set.Contains(bit.Frame, bit.Word) {
				matches = append(matches, match{tile, set})
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].tile < matches[j].tile })

	for _, m := range matches {
		candidates = append(candidates, m.tile)
	}
	for _, m := range matches {
		frameOffset := int(bit.Frame - m.set.BaseAddr)
		bitIndex := bit.Bit + 32*(bit.Word-m.set.Offset)
		addr := FormatLocalAddr(frameOffset, bitIndex)

		arch, ok := tr.Types[TileType(m.tile)]
		if !ok {
			continue
		}
		if m.set.Bus == "BLOCK_RAM" && arch.InitBits[addr] {
			return Location{Tile: m.tile, Addr: addr, Bus: m.set.Bus}, candidates, true
		}
		if arch.HasBit(addr) {
			return Location{Tile: m.tile, Addr: addr, Bus: m.set.Bus}, candidates, true
		}
	}
	return Location{}, candidates, false
}

// ToBitstream is the inverse of Locate: it converts a tile-local address back
// to the absolute bitstream address using the tile's dataset for the given
// bus. An empty bus selects the tile's first dataset.
func (tr *Translator) ToBitstream(tile, localAddr, bus string) (bitstream.BitAddress, error) {
	sets, ok := tr.Grid[tile]
	if !ok || len(sets) == 0 {
		return bitstream.BitAddress{}, fmt.Errorf("tile %s not in tilegrid", tile)
	}
	set := sets[0]
	if bus != "" {
		found := false
		for _, s := range sets {
			if s.Bus == bus {
				set, found = s, true
				break
			}
		}
		if !found {
			return bitstream.BitAddress{}, fmt.Errorf("tile %s has no %s dataset", tile, bus)
		}
	}

	frameOffset, bitIndex, err := ParseLocalAddr(localAddr)
	if err != nil {
		return bitstream.BitAddress{}, err
	}
	return bitstream.BitAddress{
		Frame: set.BaseAddr + bitstream.FrameAddress(frameOffset),
		Word:  set.Offset + bitIndex/32,
		Bit:   bitIndex % 32,
	}, nil
}
