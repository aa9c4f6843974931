package design

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// VivadoQuery answers design queries by driving a Vivado instance in tcl
// mode over a pipe, with the design checkpoint opened once up front.
//
// The pipe is strictly one command / one reply and is not safe for
// concurrent use; wrap it in Cached before sharing it across workers.
type VivadoQuery struct {
	cmd  *exec.Cmd
	in   io.WriteCloser
	out  *bufio.Scanner
	part string

	nets         map[string]map[string]string // tile -> pin -> net
	queriedTiles map[string]bool
}

// NewVivadoQuery starts vivado (or the given command) in tcl mode and opens
// the checkpoint.
func NewVivadoQuery(vivado, dcp string) (*VivadoQuery, error) {
	if vivado == "" {
		vivado = "vivado"
	}
	cmd := exec.Command(vivado, "-mode", "tcl")
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening vivado stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening vivado stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting vivado: %w", err)
	}

	q := &VivadoQuery{
		cmd:          cmd,
		in:           in,
		out:          bufio.NewScanner(stdout),
		nets:         make(map[string]map[string]string),
		queriedTiles: make(map[string]bool),
	}

	if err := q.send(fmt.Sprintf("open_checkpoint %s", dcp)); err != nil {
		return nil, err
	}
	// Reading a checkpoint produces pages of output; wait for its timing
	// summary line before issuing anything else.
	for q.out.Scan() {
		if strings.Contains(q.out.Text(), "open_checkpoint: Time (s):") {
			break
		}
	}
	if err := q.out.Err(); err != nil {
		return nil, fmt.Errorf("reading vivado output: %w", err)
	}

	// Uncap collection output and silence INFO chatter so replies parse.
	for _, tcl := range []string{
		"set_param tcl.collectionResultDisplayLimit 0",
		"set_msg_config -severity INFO -suppress",
		"set_param messaging.defaultLimit 10000",
	} {
		if err := q.send(tcl); err != nil {
			return nil, err
		}
	}

	part, err := q.runString("puts [get_property PART [current_design]]")
	if err != nil {
		return nil, fmt.Errorf("querying design part: %w", err)
	}
	q.part = part
	q.queryGlobalLogic()
	return q, nil
}

// Close shuts the pipe down and waits for vivado to exit.
func (q *VivadoQuery) Close() error {
	fmt.Fprintln(q.in, "exit")
	q.in.Close()
	return q.cmd.Wait()
}

func (q *VivadoQuery) send(tcl string) error {
	if _, err := fmt.Fprintln(q.in, tcl); err != nil {
		return fmt.Errorf("writing to vivado pipe: %w", err)
	}
	return nil
}

// runString issues a command and returns its single-line reply. Warnings and
// errors in the reply degrade to not-found.
func (q *VivadoQuery) runString(tcl string) (string, error) {
	if err := q.send(tcl); err != nil {
		return "", err
	}
	for q.out.Scan() {
		line := strings.TrimSpace(q.out.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, "WARNING") {
			q.drainWarnings()
			return "", nil
		}
		if strings.Contains(line, "ERROR:") || strings.Contains(line, "Resolution:") {
			return "", nil
		}
		return line, nil
	}
	if err := q.out.Err(); err != nil {
		return "", fmt.Errorf("reading vivado output: %w", err)
	}
	return "", fmt.Errorf("vivado pipe closed")
}

// drainWarnings consumes the remainder of a multi-line warning block.
func (q *VivadoQuery) drainWarnings() {
	for q.out.Scan() {
		if strings.TrimSpace(q.out.Text()) == "" {
			return
		}
	}
}

// runList issues a command and splits its reply into fields, dropping
// bracketed placeholders like <1 more elements>.
func (q *VivadoQuery) runList(tcl string) []string {
	line, err := q.runString(tcl)
	if err != nil {
		log.Warnf("vivado query failed: %v", err)
		return nil
	}
	var out []string
	for _, item := range strings.Fields(line) {
		if strings.HasPrefix(item, "<") && strings.HasSuffix(item, ">") {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (q *VivadoQuery) Part() string { return q.part }

// pipDivider picks the node separator used inside a pip name.
func pipDivider(pip string) string {
	switch {
	case strings.Contains(pip, "<<->>"):
		return "<<->>"
	case strings.Contains(pip, "->>"):
		return "->>"
	}
	return "->"
}

// recordNetPip files both end pins of a pip name under the net.
func (q *VivadoQuery) recordNetPip(net, pip string) {
	tile, pins, ok := strings.Cut(pip, "/")
	if !ok {
		return
	}
	if i := strings.Index(pins, "."); i >= 0 {
		pins = pins[i+1:]
	}
	src, sink, ok := strings.Cut(pins, pipDivider(pip))
	if !ok {
		return
	}
	if q.nets[tile] == nil {
		q.nets[tile] = make(map[string]string)
	}
	q.nets[tile][src] = net
	q.nets[tile][sink] = net
}

// queryTileNets loads the pin-to-net mapping for one tile.
func (q *VivadoQuery) queryTileNets(tile string) {
	if q.queriedTiles[tile] {
		return
	}
	q.queriedTiles[tile] = true
	for _, net := range q.runList(fmt.Sprintf("puts [get_nets -of [get_tiles %s]]", tile)) {
		pips := q.runList(fmt.Sprintf("puts [get_pips -of [get_nets %s] %s*]", net, tile))
		for _, pip := range pips {
			q.recordNetPip(net, pip)
		}
	}
}

// queryGlobalLogic preloads pin-to-net data for the constant GND and VCC
// nets, which tile-scoped net queries do not return.
func (q *VivadoQuery) queryGlobalLogic() {
	for _, root := range []string{"GND", "VCC"} {
		for _, net := range q.runList(fmt.Sprintf("puts [get_nets -hierarchical %s*]", root)) {
			base, _, _ := strings.Cut(net, "_")
			if base != root {
				continue
			}
			for _, pip := range q.runList(fmt.Sprintf("puts [get_pips -of [get_nets %s] *]", net)) {
				q.recordNetPip(net, pip)
			}
		}
	}
}

func (q *VivadoQuery) Net(tile, pin string) (string, bool) {
	q.queryTileNets(tile)
	net, ok := q.nets[tile][pin]
	return net, ok
}

func (q *VivadoQuery) NetPips(net string) []Pip {
	var pips []Pip
	for _, pip := range q.runList(fmt.Sprintf("puts [get_pips -of [get_nets %s] *]", net)) {
		tile, pins, ok := strings.Cut(pip, "/")
		if !ok {
			continue
		}
		if i := strings.Index(pins, "."); i >= 0 {
			pins = pins[i+1:]
		}
		src, sink, ok := strings.Cut(pins, pipDivider(pip))
		if !ok {
			continue
		}
		pips = append(pips, Pip{Source: tile + "/" + src, Sink: tile + "/" + sink})
	}
	return pips
}

func (q *VivadoQuery) TileCells(tile string) map[string]map[string]string {
	cells := make(map[string]map[string]string)
	for _, site := range q.runList(fmt.Sprintf("puts [get_sites -of [get_tiles %s]]", tile)) {
		cells[site] = make(map[string]string)
		for _, cell := range q.runList(fmt.Sprintf("puts [get_cells -of [get_sites %s]]", site)) {
			bel, err := q.runString(fmt.Sprintf("puts [get_property BEL [get_cells %s]]", cell))
			if err != nil || bel == "" {
				continue
			}
			// The BEL property is reported as SLICE_TYPE.BELNAME.
			if i := strings.LastIndex(bel, "."); i >= 0 {
				bel = bel[i+1:]
			}
			cells[site][bel] = cell
		}
	}
	return cells
}

func (q *VivadoQuery) Cell(tile, site, bel string) (string, bool) {
	cell, ok := q.TileCells(tile)[site][bel]
	return cell, ok
}

func (q *VivadoQuery) WireConnections(tile, wire string) []string {
	conns := q.runList(fmt.Sprintf(
		"puts [get_nodes -downhill -of_objects [get_nodes -of [get_wires %s/%s]]]", tile, wire))
	if len(conns) == 0 {
		return nil
	}
	return append(conns, tile+"/"+wire)
}

// AffectedResources walks the net downstream from a tile wire. Interconnect
// connections are followed along the net's pips; connections into site tiles
// resolve to the cells attached to the landing site pin.
func (q *VivadoQuery) AffectedResources(net, tile, wire string) []string {
	found := make(map[string]bool)
	traced := make(map[string]bool)
	q.traceResources(net, tile, wire, traced, found)

	cells := make([]string, 0, len(found))
	for cell := range found {
		cells = append(cells, cell)
	}
	return cells
}

func (q *VivadoQuery) traceResources(net, tile, wire string, traced, found map[string]bool) {
	node, err := q.runString(fmt.Sprintf("puts [get_nodes -of [get_wires %s/%s]]", tile, wire))
	if err != nil || node == "" {
		return
	}
	traced[node] = true
	nodeWires := q.runList(fmt.Sprintf("puts [get_wires -of [get_nodes %s]]", node))
	pips := q.NetPips(net)

	conns := q.runList(fmt.Sprintf(
		"puts [get_nodes -downhill -of_objects [get_nodes -of [get_wires %s/%s]]]", tile, wire))
	for _, conn := range conns {
		connTile, connNode, ok := strings.Cut(conn, "/")
		if !ok {
			continue
		}
		if !strings.Contains(conn, "INT") {
			q.traceSiteCells(conn, connTile, found)
			continue
		}
		if traced[conn] {
			continue
		}
		connWires := q.runList(fmt.Sprintf("puts [get_wires -of [get_nodes %s]]", conn))
		for _, pip := range pips {
			if containsString(nodeWires, pip.Source) && containsString(connWires, pip.Sink) {
				q.traceResources(net, connTile, connNode, traced, found)
				break
			}
		}
	}
}

// traceSiteCells collects the cells fed by the site pin a node lands on.
func (q *VivadoQuery) traceSiteCells(node, tile string, found map[string]bool) {
	sitePin, err := q.runString(fmt.Sprintf("puts [get_site_pins -of [get_nodes %s]]", node))
	if err != nil || sitePin == "" {
		return
	}
	for _, cells := range q.TileCells(tile) {
		for _, cell := range cells {
			pins := q.runList(fmt.Sprintf("puts [get_site_pins -of [get_pins -of [get_cells %s]]]", cell))
			if containsString(pins, sitePin) {
				found[cell] = true
			}
		}
	}
}

// CLBAffectedResources resolves flip-flop and LUTRAM control functions from
// the site's placed cells. The clock and control routing BEL cases need the
// checkpoint's site routing, which the tcl pipe cannot reach; those degrade
// to no resources found.
func (q *VivadoQuery) CLBAffectedResources(site, function string) []string {
	var belMark string
	switch function {
	case "FFSYNC", "LATCH":
		belMark = "FF"
	case "WA7USED", "WA8USED":
		belMark = "LUT"
	case "CLKINV", "NOCLKINV", "CEUSEDMUX", "SRUSEDMUX":
		log.Debugf("site routing trace for %s on %s not supported over the vivado pipe", function, site)
		return nil
	default:
		log.Warnf("unrecognized CLB bit function: %s", function)
		return nil
	}

	var cells []string
	for _, cell := range q.runList(fmt.Sprintf("puts [get_cells -of [get_sites %s]]", site)) {
		bel, err := q.runString(fmt.Sprintf("puts [get_property BEL [get_cells %s]]", cell))
		if err == nil && strings.Contains(bel, belMark) {
			cells = append(cells, cell)
		}
	}
	return cells
}

func (q *VivadoQuery) CellInit(cell string) (string, bool) {
	init, err := q.runString(fmt.Sprintf("puts [get_property INIT [get_cells %s]]", cell))
	if err != nil || init == "" {
		return "", false
	}
	return init, true
}

func (q *VivadoQuery) CellPins(cell string) map[string]string {
	pins := make(map[string]string)
	for _, pin := range q.runList(fmt.Sprintf("puts [get_pins -of [get_cells %s]]", cell)) {
		belPin, err := q.runString(fmt.Sprintf("puts [get_bel_pins -of [get_pins %s]]", pin))
		if err != nil || belPin == "" {
			continue
		}
		pins[lastSegment(belPin)] = lastSegment(pin)
	}
	return pins
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
