package bitstream

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameAddress is a series-7 configuration frame address.
//
// Bit layout:
//
//	[31:26] reserved
//	[25:23] block type
//	   [22] top/bottom (0 = top half, 1 = bottom half)
//	[21:17] row
//	 [16:7] column
//	  [6:0] minor address (frame index within one row/column/block)
type FrameAddress uint32

// Block types used by the configuration address space.
const (
	BlockCLB     = 0 // CLB_IO_CLK bus
	BlockRAM     = 1 // BLOCK_RAM content bus
	BlockCfgCLB  = 2 // CFG_CLB bus
	blockShift   = 23
	bottomShift  = 22
	rowShift     = 17
	columnShift  = 7
	rowMask      = 0x1F
	columnMask   = 0x3FF
	minorMask    = 0x7F
	halfRowMask  = 0x3F << rowShift // top/bottom bit plus row bits
)

// NewFrameAddress assembles a frame address from its fields.
func NewFrameAddress(block uint32, bottom bool, row, column, minor uint32) FrameAddress {
	addr := block<<blockShift |
		(row&rowMask)<<rowShift |
		(column&columnMask)<<columnShift |
		minor&minorMask
	if bottom {
		addr |= 1 << bottomShift
	}
	return FrameAddress(addr)
}

// ParseFrameAddress parses the 8-hex-digit textual form of a frame address.
func ParseFrameAddress(s string) (FrameAddress, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid frame address %q: %w", s, err)
	}
	return FrameAddress(v), nil
}

// BlockType returns the 3-bit block type field.
func (f FrameAddress) BlockType() uint32 { return uint32(f) >> blockShift & 0x7 }

// Bottom reports whether the frame sits in the bottom half of the device.
func (f FrameAddress) Bottom() bool { return uint32(f)>>bottomShift&1 == 1 }

// Row returns the 5-bit row field.
func (f FrameAddress) Row() uint32 { return uint32(f) >> rowShift & rowMask }

// Column returns the 10-bit column field.
func (f FrameAddress) Column() uint32 { return uint32(f) >> columnShift & columnMask }

// Minor returns the 7-bit minor address.
func (f FrameAddress) Minor() uint32 { return uint32(f) & minorMask }

// SameHalfRow reports whether two frames share the top/bottom bit and row
// field. Configuration data inserts two frames of padding at every half-row
// boundary, so the reader needs to detect the transition.
func (f FrameAddress) SameHalfRow(o FrameAddress) bool {
	return uint32(f)&halfRowMask == uint32(o)&halfRowMask
}

// String renders the canonical 8-hex-digit form, e.g. "00400a00".
func (f FrameAddress) String() string { return fmt.Sprintf("%08x", uint32(f)) }

// BitAddress identifies one configuration bit in the bitstream: the frame it
// lives in, the 32-bit word index within the frame, and the bit index within
// the word.
type BitAddress struct {
	Frame FrameAddress
	Word  int
	Bit   int
}

// String renders the canonical bit name, e.g. "bit_00400a00_062_14".
func (b BitAddress) String() string {
	return fmt.Sprintf("bit_%08x_%03d_%02d", uint32(b.Frame), b.Word, b.Bit)
}

// ParseBitAddress parses the canonical "bit_<frame>_<word>_<bit>" form.
func ParseBitAddress(s string) (BitAddress, error) {
	fields := strings.Split(s, "_")
	if len(fields) != 4 || fields[0] != "bit" {
		return BitAddress{}, fmt.Errorf("invalid bit address %q", s)
	}
	frame, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return BitAddress{}, fmt.Errorf("invalid bit address %q: %w", s, err)
	}
	word, err := strconv.Atoi(fields[2])
	if err != nil {
		return BitAddress{}, fmt.Errorf("invalid bit address %q: %w", s, err)
	}
	bit, err := strconv.Atoi(fields[3])
	if err != nil {
		return BitAddress{}, fmt.Errorf("invalid bit address %q: %w", s, err)
	}
	return BitAddress{Frame: FrameAddress(frame), Word: word, Bit: bit}, nil
}
