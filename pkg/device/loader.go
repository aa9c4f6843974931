package device

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/byuccl/bfat/pkg/bitstream"
)

// Database locates and loads Project X-Ray database files under a root
// directory laid out as <root>/<family>/... with per-part subdirectories.
type Database struct {
	Root string
}

// Family maps a series 7 part name to its database family directory.
func Family(part string) (string, error) {
	switch {
	case strings.HasPrefix(part, "xc7a"):
		return "artix7", nil
	case strings.HasPrefix(part, "xc7k"):
		return "kintex7", nil
	case strings.HasPrefix(part, "xc7s"):
		return "spartan7", nil
	case strings.HasPrefix(part, "xc7z"):
		return "zynq7", nil
	}
	return "", fmt.Errorf("unsupported part %q", part)
}

// partBase trims a full part name down to the database directory name: the
// family prefix plus the size number, including the trailing letter for
// artix and kintex parts. The xc7a35t shares the xc7a50t database.
func partBase(part, family string) string {
	base := part[:4]
	for _, c := range part[4:] {
		numeric := c >= '0' && c <= '9'
		if (family == "spartan7" || family == "zynq7") && !numeric {
			break
		}
		base += string(c)
		if (family == "artix7" || family == "kintex7") && !numeric {
			break
		}
	}
	if base == "xc7a35t" {
		return "xc7a50t"
	}
	return base
}

// partDir resolves the per-part database directory for a part name.
func (db *Database) partDir(part string) (string, error) {
	family, err := Family(part)
	if err != nil {
		return "", err
	}
	return filepath.Join(db.Root, family, partBase(part, family)), nil
}

// Tilegrid loads the tilegrid.json for the given part.
func (db *Database) Tilegrid(part string) (Tilegrid, error) {
	dir, err := db.partDir(part)
	if err != nil {
		return nil, err
	}
	return ParseTilegrid(filepath.Join(dir, "tilegrid.json"))
}

// Frames derives the part's ordered configuration frame list from part.json.
func (db *Database) Frames(part string) ([]bitstream.FrameAddress, error) {
	dir, err := db.partDir(part)
	if err != nil {
		return nil, err
	}
	return bitstream.FrameList(filepath.Join(dir, "part.json"))
}

// Archetype loads the rule model for one tile type. A missing segbits
// database is not an error: some tile types carry no modeled configuration,
// and those yield an empty archetype.
func (db *Database) Archetype(part, tileType string) (*Archetype, error) {
	family, err := Family(part)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(db.Root, family)
	lower := strings.ToLower(tileType)

	segbits, err := parseDBFile(filepath.Join(dir, "segbits_"+lower+".db"), ParseSegbits)
	if err != nil {
		return nil, err
	}

	var ppips []*PpipEntry
	if IsInterconnect(tileType) {
		ppips, err = parseDBFile(filepath.Join(dir, "ppips_"+lower+".db"), ParsePpips)
		if err != nil {
			return nil, err
		}
	}

	arch := NewArchetype(tileType, segbits, ppips)
	if strings.Contains(tileType, "BRAM") {
		initEntries, err := parseDBFile(filepath.Join(dir, "segbits_"+lower+".block_ram.db"), ParseSegbits)
		if err != nil {
			return nil, err
		}
		arch.AddInitEntries(initEntries)
	}
	if arch.Empty() {
		log.Debugf("no configuration model for tile type %s", tileType)
	}
	return arch, nil
}

// Archetypes loads the rule model for every tile type present in the grid.
func (db *Database) Archetypes(part string, grid Tilegrid) (map[string]*Archetype, error) {
	types := make(map[string]*Archetype)
	for tile := range grid {
		tileType := TileType(tile)
		if _, ok := types[tileType]; ok {
			continue
		}
		arch, err := db.Archetype(part, tileType)
		if err != nil {
			return nil, fmt.Errorf("loading model for tile type %s: %w", tileType, err)
		}
		types[tileType] = arch
	}
	return types, nil
}

// parseDBFile opens and parses a database file, mapping a missing file to an
// empty result.
func parseDBFile[T any](path string, parse func(string, io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return parse(filepath.Base(path), f)
}
