package device

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/byuccl/bfat/pkg/bitstream"
)

// Dataset is one contiguous configuration memory window owned by a tile: a
// base frame address, a frame count, and a word window within each frame.
type Dataset struct {
	Bus      string
	BaseAddr bitstream.FrameAddress
	Frames   int
	Offset   int
	Words    int
}

// Contains reports whether the frame/word pair falls inside this window.
func (d Dataset) Contains(frame bitstream.FrameAddress, word int) bool {
	return frame >= d.BaseAddr && frame <= d.BaseAddr+bitstream.FrameAddress(d.Frames-1) &&
		word >= d.Offset && word <= d.Offset+d.Words-1
}

// Tilegrid maps every tile name on the part to its configuration datasets.
// Datasets are ordered by bus: BLOCK_RAM first, then CLB_IO_CLK, then CFG_CLB.
type Tilegrid map[string][]Dataset

// busOrder fixes the dataset order within a tile. BLOCK_RAM first matters:
// block RAM content bits are distinguished from the RAMB configuration bits
// by landing in the BLOCK_RAM dataset.
var busOrder = map[string]int{
	"BLOCK_RAM":  0,
	"CLB_IO_CLK": 1,
	"CFG_CLB":    2,
}

// excludedTileMarks name tile classes with no fault analysis model. Tiles
// whose names contain any of these are dropped from the grid.
var excludedTileMarks = []string{"_UTURN", "MONITOR_BOT", "_SING"}

type tilegridEntry struct {
	Bits map[string]struct {
		BaseAddr string `json:"baseaddr"`
		Frames   int    `json:"frames"`
		Offset   int    `json:"offset"`
		Words    int    `json:"words"`
	} `json:"bits"`
}

// ParseTilegrid loads a tilegrid.json file into a Tilegrid.
func ParseTilegrid(path string) (Tilegrid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tilegrid: %w", err)
	}
	var entries map[string]tilegridEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing tilegrid %s: %w", path, err)
	}

	grid := make(Tilegrid, len(entries))
	for tile, entry := range entries {
		if excludedTile(tile) {
			continue
		}
		var sets []Dataset
		for bus, info := range entry.Bits {
			base, err := strconv.ParseUint(strings.TrimPrefix(info.BaseAddr, "0x"), 16, 32)
			if err != nil {
				return nil, fmt.Errorf("tile %s: bad base address %q: %w", tile, info.BaseAddr, err)
			}
			sets = append(sets, Dataset{
				Bus:      bus,
				BaseAddr: bitstream.FrameAddress(base),
				Frames:   info.Frames,
				Offset:   info.Offset,
				Words:    info.Words,
			})
		}
		if len(sets) == 0 {
			continue
		}
		sort.Slice(sets, func(i, j int) bool { return busOrder[sets[i].Bus] < busOrder[sets[j].Bus] })
		grid[tile] = sets
	}
	return grid, nil
}

func excludedTile(name string) bool {
	for _, mark := range excludedTileMarks {
		if strings.Contains(name, mark) {
			return true
		}
	}
	return false
}

// TileType strips the coordinate suffix from a tile name: "INT_L_X4Y12"
// yields "INT_L".
func TileType(tile string) string {
	if i := strings.Index(tile, "_X"); i >= 0 {
		return tile[:i]
	}
	return tile
}
