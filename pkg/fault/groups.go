package fault

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/byuccl/bfat/pkg/bitstream"
)

// BitGroup is one set of bits upset together, evaluated as a unit.
type BitGroup []bitstream.BitAddress

// ParseBitGroups reads the fault bit list: a JSON array of bit groups, each
// group an array of [frame, word, bit] string triplets with the frame in hex.
// Groups are numbered from 1 in file order.
func ParseBitGroups(r io.Reader) (map[int]BitGroup, error) {
	var raw [][][3]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding fault bit list: %w", err)
	}

	groups := make(map[int]BitGroup, len(raw))
	for i, rawGroup := range raw {
		group := make(BitGroup, 0, len(rawGroup))
		for _, triplet := range rawGroup {
			frame, err := strconv.ParseUint(triplet[0], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("group %d: bad frame address %q: %w", i+1, triplet[0], err)
			}
			word, err := strconv.Atoi(triplet[1])
			if err != nil {
				return nil, fmt.Errorf("group %d: bad word offset %q: %w", i+1, triplet[1], err)
			}
			bit, err := strconv.Atoi(triplet[2])
			if err != nil {
				return nil, fmt.Errorf("group %d: bad bit offset %q: %w", i+1, triplet[2], err)
			}
			group = append(group, bitstream.BitAddress{
				Frame: bitstream.FrameAddress(frame),
				Word:  word,
				Bit:   bit,
			})
		}
		groups[i+1] = group
	}
	return groups, nil
}
