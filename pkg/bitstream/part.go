package bitstream

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// partInfo mirrors the layout of a part.json device description. Only the
// global clock region tree is needed to enumerate configuration frames.
type partInfo struct {
	GlobalClockRegions map[string]clockRegion `json:"global_clock_regions"`
}

type clockRegion struct {
	Rows map[string]regionRow `json:"rows"`
}

type regionRow struct {
	ConfigurationBuses map[string]configBus `json:"configuration_buses"`
}

type configBus struct {
	ConfigurationColumns map[string]configColumn `json:"configuration_columns"`
}

type configColumn struct {
	FrameCount int `json:"frame_count"`
}

// busBlockTypes maps a configuration bus name to its frame address block type.
var busBlockTypes = map[string]uint32{
	"CLB_IO_CLK": BlockCLB,
	"BLOCK_RAM":  BlockRAM,
	"CFG_CLB":    BlockCfgCLB,
}

// FrameList enumerates every configuration frame address of the part
// described by the given part.json file, sorted ascending. The sorted order
// matches the order frames appear in a full configuration bitstream.
func FrameList(path string) ([]FrameAddress, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading part file: %w", err)
	}
	var part partInfo
	if err := json.Unmarshal(raw, &part); err != nil {
		return nil, fmt.Errorf("parsing part file %s: %w", path, err)
	}

	var frames []FrameAddress
	for halfName, half := range part.GlobalClockRegions {
		bottom := halfName == "bottom"
		for rowName, row := range half.Rows {
			rowNum, err := strconv.Atoi(rowName)
			if err != nil {
				return nil, fmt.Errorf("bad clock region row %q: %w", rowName, err)
			}
			for busName, bus := range row.ConfigurationBuses {
				block, ok := busBlockTypes[busName]
				if !ok {
					return nil, fmt.Errorf("unknown configuration bus %q", busName)
				}
				for colName, col := range bus.ConfigurationColumns {
					colNum, err := strconv.Atoi(colName)
					if err != nil {
						return nil, fmt.Errorf("bad configuration column %q: %w", colName, err)
					}
					for minor := 0; minor < col.FrameCount; minor++ {
						frames = append(frames, NewFrameAddress(
							block, bottom, uint32(rowNum), uint32(colNum), uint32(minor)))
					}
				}
			}
		}
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })
	return frames, nil
}
