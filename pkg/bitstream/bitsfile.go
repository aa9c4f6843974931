package bitstream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadBitsFile parses a .bits listing with one canonical bit name per line.
// Blank lines and lines that do not start with "bit_" are ignored.
func ReadBitsFile(r io.Reader) ([]BitAddress, error) {
	var bits []BitAddress
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "bit_") {
			continue
		}
		b, err := ParseBitAddress(line)
		if err != nil {
			return nil, err
		}
		bits = append(bits, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading bits file: %w", err)
	}
	return bits, nil
}

// WriteBitsFile writes one canonical bit name per line.
func WriteBitsFile(w io.Writer, bits []BitAddress) error {
	bw := bufio.NewWriter(w)
	for _, b := range bits {
		if _, err := fmt.Fprintln(bw, b.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
