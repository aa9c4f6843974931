package lut

import (
	"fmt"

	"github.com/byuccl/bfat/pkg/design"
)

// SiblingPin marks a BEL input pin that is unused by the modeled cell but
// driven for the cell sharing the LUT structure (a LUT5/LUT6 pair).
const SiblingPin = "USED_BY_SIBLING"

// Model captures how a placed cell's logical init word maps onto the
// physical init memory of the LUT BEL it occupies.
type Model struct {
	Cell   string
	Letter byte // LUT position in the slice (A-D)
	Inputs int  // BEL input count

	// Pins maps BEL input pins to the cell pins routed onto them; pins
	// claimed only by the sibling cell map to SiblingPin.
	Pins map[string]string

	CellInit   uint64
	CellInputs int
	BelInit    uint64
}

// NewModel builds the init model for a cell placed on the given LUT BEL.
// siteCells is the bel-to-cell map for the cell's site, used to find the
// sibling cell sharing the LUT structure.
func NewModel(cell, bel string, siteCells map[string]string, q design.Query) (*Model, error) {
	if len(bel) < 2 || bel[1] < '1' || bel[1] > '9' {
		return nil, fmt.Errorf("cannot size LUT from BEL name %q", bel)
	}
	initStr, ok := q.CellInit(cell)
	if !ok {
		return nil, fmt.Errorf("no init string found for cell %s", cell)
	}
	cellInit, cellInputs, err := ParseInit(initStr)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Cell:       cell,
		Letter:     bel[0],
		Inputs:     int(bel[1] - '0'),
		Pins:       make(map[string]string),
		CellInit:   cellInit,
		CellInputs: cellInputs,
	}
	for belPin, cellPin := range q.CellPins(cell) {
		m.Pins[belPin] = cellPin
	}

	// A cell on the LUT5 shares input pins with the cell on the LUT6 and
	// vice versa; those pins still matter for which init bits are live.
	sibling := []byte(bel)
	if sibling[1] == '6' {
		sibling[1] = '5'
	} else {
		sibling[1] = '6'
	}
	if siblingCell, ok := siteCells[string(sibling)]; ok {
		for belPin := range q.CellPins(siblingCell) {
			if _, used := m.Pins[belPin]; !used && !isOutputPin(belPin) {
				m.Pins[belPin] = SiblingPin
			}
		}
	}

	m.BelInit = m.computeBelInit()
	return m, nil
}

// computeBelInit reindexes the cell init word into the BEL's address space:
// the BEL init value for a combination of high BEL inputs equals the cell
// init value for the corresponding high cell inputs.
func (m *Model) computeBelInit() uint64 {
	var belInit uint64
	for belIndex := 0; belIndex < 1<<m.Inputs; belIndex++ {
		cellIndex := 0
		for belPin, cellPin := range m.Pins {
			if isOutputPin(belPin) || cellPin == SiblingPin {
				continue
			}
			if belIndex&(1<<(pinNumber(belPin)-1)) != 0 {
				cellIndex |= 1 << pinNumber(cellPin)
			}
		}
		if m.CellInit&(1<<cellIndex) != 0 {
			belInit |= 1 << belIndex
		}
	}
	return belInit
}

// SimulateUpset flips the given BEL init bits and returns the post-upset BEL
// and cell init strings. An upset only reaches the cell's logical init word
// when every BEL input unused by the LUT is high, which is the state the
// hardware defaults unrouted inputs to.
func (m *Model) SimulateUpset(upsetBits []int) (belStr, cellStr string) {
	belInit := m.BelInit
	cellInit := m.CellInit

	for _, upsetBit := range upsetBits {
		if upsetBit < 1<<m.Inputs {
			belInit ^= 1 << upsetBit
		}

		// State of each LUT input line addressed by this bit.
		inputHigh := make(map[string]bool, 6)
		for n := 1; n <= 6; n++ {
			pin := fmt.Sprintf("%c%d", m.Letter, n)
			inputHigh[pin] = upsetBit&(1<<(n-1)) != 0
		}

		unusedAllHigh := true
		for pin, high := range inputHigh {
			if _, used := m.Pins[pin]; !used && !high {
				unusedAllHigh = false
				break
			}
		}
		if !unusedAllHigh {
			continue
		}

		cellBit := 0
		for belPin, cellPin := range m.Pins {
			if isOutputPin(belPin) || cellPin == SiblingPin {
				continue
			}
			if inputHigh[belPin] {
				cellBit |= 1 << pinNumber(cellPin)
			}
		}
		cellInit ^= 1 << cellBit
	}

	return FormatInit(belInit, m.Inputs), FormatInit(cellInit, m.CellInputs)
}

// BelInitString formats the inferred physical init word.
func (m *Model) BelInitString() string {
	return FormatInit(m.BelInit, m.Inputs)
}

// CellInitString formats the cell's logical init word.
func (m *Model) CellInitString() string {
	return FormatInit(m.CellInit, m.CellInputs)
}

func isOutputPin(pin string) bool {
	for i := 0; i < len(pin); i++ {
		if pin[i] == 'O' {
			return true
		}
	}
	return false
}

// pinNumber reads the trailing digit of a pin name like A3 or I5.
func pinNumber(pin string) int {
	return int(pin[len(pin)-1] - '0')
}
