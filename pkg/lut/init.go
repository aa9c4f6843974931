// Package lut models LUT initialization words and how single-bit upsets in
// the configuration memory change the function a placed cell computes.
package lut

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// ParseInit decodes an init word of the form "{num_bits}'h{hex}", returning
// the word value and the number of LUT inputs it covers.
func ParseInit(s string) (uint64, int, error) {
	sizeStr, hexStr, ok := strings.Cut(s, "'h")
	if !ok {
		return 0, 0, fmt.Errorf("malformed init string %q", s)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 || size&(size-1) != 0 || size > 64 {
		return 0, 0, fmt.Errorf("bad init string width in %q", s)
	}
	value, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad init string value in %q: %w", s, err)
	}
	return value, bits.Len(uint(size)) - 1, nil
}

// FormatInit encodes an init word as "{num_bits}'h{hex}" with the hex digits
// zero padded to the word width.
func FormatInit(value uint64, inputs int) string {
	numBits := 1 << inputs
	return fmt.Sprintf("%d'h%0*X", numBits, numBits/4, value)
}
