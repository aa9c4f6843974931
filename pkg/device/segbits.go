// Package device models Xilinx series 7 tiles from Project X-Ray database
// files: bit rules for tile resources, routing switchbox muxes, and the
// mapping between tile-local and absolute bitstream addresses.
package device

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// BitRule is one configuration bit requirement of a tile feature: the bit at
// Addr must be 1, or 0 when Negated.
type BitRule struct {
	Negated bool   `parser:"@Not?"`
	Addr    string `parser:"@BitRef"`
}

func (r BitRule) String() string {
	if r.Negated {
		return "!" + r.Addr
	}
	return r.Addr
}

// FormatLocalAddr renders a tile-local bit address from its frame offset
// within the tile's base address and its bit index within the tile's words.
func FormatLocalAddr(frameOffset, bit int) string {
	return fmt.Sprintf("%02d_%02d", frameOffset, bit)
}

// ParseLocalAddr splits a tile-local bit address into frame offset and bit
// index.
func ParseLocalAddr(addr string) (frameOffset, bit int, err error) {
	us := strings.IndexByte(addr, '_')
	if us < 0 {
		return 0, 0, fmt.Errorf("invalid tile-local address %q", addr)
	}
	frameOffset, err = strconv.Atoi(addr[:us])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tile-local address %q: %w", addr, err)
	}
	bit, err = strconv.Atoi(addr[us+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tile-local address %q: %w", addr, err)
	}
	return frameOffset, bit, nil
}

// dbLexer tokenizes the space-separated segbits and ppips database formats.
// Line boundaries are significant, so EOL is its own token.
var dbLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Not", Pattern: `!`},
	{Name: "BitRef", Pattern: `\d+_\d+`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_.\[\]<>]+`},
})

// SegbitsEntry is one line of a segbits database: a dotted feature name and
// the bit rules that activate it.
type SegbitsEntry struct {
	Feature string    `parser:"@Ident"`
	Bits    []BitRule `parser:"@@+ (EOL | EOF)"`
}

type segbitsFile struct {
	Entries []*SegbitsEntry `parser:"(@@ | EOL)*"`
}

// PpipEntry is one line of a ppips database: a dotted pip name and its
// configuration type ("always", "default" or "hint").
type PpipEntry struct {
	Pip  string `parser:"@Ident"`
	Type string `parser:"@Ident (EOL | EOF)"`
}

type ppipsFile struct {
	Entries []*PpipEntry `parser:"(@@ | EOL)*"`
}

var (
	segbitsParser = participle.MustBuild[segbitsFile](
		participle.Lexer(dbLexer),
		participle.Elide("Comment", "Whitespace"),
	)
	ppipsParser = participle.MustBuild[ppipsFile](
		participle.Lexer(dbLexer),
		participle.Elide("Comment", "Whitespace"),
	)
)

// ParseSegbits parses a segbits_<tile>.db stream.
func ParseSegbits(filename string, r io.Reader) ([]*SegbitsEntry, error) {
	file, err := segbitsParser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parsing segbits database: %w", err)
	}
	return file.Entries, nil
}

// ParsePpips parses a ppips_<tile>.db stream.
func ParsePpips(filename string, r io.Reader) ([]*PpipEntry, error) {
	file, err := ppipsParser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parsing ppips database: %w", err)
	}
	return file.Entries, nil
}
