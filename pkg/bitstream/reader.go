package bitstream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FrameWords is the number of 32-bit words in a series 7 configuration frame.
const FrameWords = 101

// syncWord marks the start of configuration packets in a bitstream.
const syncWord = 0xAA995566

// clockWord is the frame word whose low bits carry clock routing and ECC
// rather than configuration memory.
const clockWord = 50

// FindConfigPacket scans the bitstream header for the part name and consumes
// input up to and including the sync word. The returned name is normalized to
// the full part form, e.g. "7a100tcsg324" becomes "xc7a100tcsg324-1".
func FindConfigPacket(r *bufio.Reader) (string, error) {
	part := ""
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("scanning bitstream header: %w", err)
		}
		switch b {
		case 0x62:
			// Part name record: 2-byte big-endian length, then a
			// NUL-terminated string.
			var lenBuf [2]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return "", fmt.Errorf("reading part name length: %w", err)
			}
			name := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
			if _, err := io.ReadFull(r, name); err != nil {
				return "", fmt.Errorf("reading part name: %w", err)
			}
			part = string(name[:len(name)-1])
			if strings.HasPrefix(part, "7") {
				part = "xc" + part + "-1"
			}
		case 0xAA:
			next, err := r.Peek(3)
			if err != nil {
				return "", fmt.Errorf("scanning for sync word: %w", err)
			}
			if next[0] == 0x99 && next[1] == 0x55 && next[2] == 0x66 {
				if _, err := r.Discard(3); err != nil {
					return "", err
				}
				if part == "" {
					return "", errors.New("no part name found before sync word")
				}
				return part, nil
			}
		}
	}
}

// ReadFrames reads the configuration payload that follows the sync word and
// returns the address of every set configuration bit. frames must list the
// part's frame addresses in bitstream order, as produced by FrameList.
//
// The low 13 bits of word 50 in each frame hold the clock row and ECC and are
// never reported. Each half row of the device is followed by two padding
// frames, which are skipped.
func ReadFrames(r *bufio.Reader, frames []FrameAddress) ([]BitAddress, error) {
	// The frame data arrives in a single type 2 packet; its header is the
	// first word with packet type 0b010.
	for {
		w, err := readWord(r)
		if err != nil {
			return nil, fmt.Errorf("searching for frame data packet: %w", err)
		}
		if w>>29 == 0b010 {
			break
		}
	}

	var bits []BitAddress
	for i, frame := range frames {
		if i > 0 && !frames[i-1].SameHalfRow(frame) {
			if err := skipWords(r, 2*FrameWords); err != nil {
				return nil, fmt.Errorf("skipping padding frames: %w", err)
			}
		}
		for word := 0; word < FrameWords; word++ {
			w, err := readWord(r)
			if err != nil {
				return nil, fmt.Errorf("reading frame %s: %w", frame, err)
			}
			if w == 0 {
				continue
			}
			for bit := 0; bit < 32; bit++ {
				if w&(1<<bit) == 0 {
					continue
				}
				if word == clockWord && bit <= 12 {
					continue
				}
				bits = append(bits, BitAddress{Frame: frame, Word: word, Bit: bit})
			}
		}
	}
	return bits, nil
}

func readWord(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func skipWords(r *bufio.Reader, n int) error {
	_, err := r.Discard(4 * n)
	return err
}
