package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/byuccl/bfat/internal/config"
	"github.com/byuccl/bfat/pkg/bitstream"
	"github.com/byuccl/bfat/pkg/design"
	"github.com/byuccl/bfat/pkg/device"
	"github.com/byuccl/bfat/pkg/fault"
	"github.com/byuccl/bfat/pkg/report"
)

var (
	useBitsFile bool
	outFile     string
	numWorkers  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bitstream> <dcp> <fault-bits>",
	Short: "Analyze the effects of fault bits on an implemented design",
	Long: `Reads the design's bitstream, opens its checkpoint in Vivado, and
evaluates each group of fault bits from the given JSON file. The resulting
report lists the tile, resource, and design failures tied to every bit.

Examples:
  bfat analyze design.bit design.dcp fault_bits.json
  bfat analyze -b design.bits design.dcp fault_bits.json
  bfat analyze -o report.txt design.bit design.dcp fault_bits.json`,
	Args: cobra.ExactArgs(3),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVarP(&useBitsFile, "bits-file", "b", false,
		"treat the first argument as a .bits file instead of a bitstream")
	analyzeCmd.Flags().StringVarP(&outFile, "out-file", "o", "",
		"report file to write (default <fault-bits>_fault_report.txt)")
	analyzeCmd.Flags().IntVarP(&numWorkers, "workers", "w", 0,
		"number of bit groups to analyze in parallel (default all CPUs)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	bitPath, dcpPath, faultPath := args[0], args[1], args[2]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.ApplyLogLevel()

	log.WithField("dcp", dcpPath).Info("opening design checkpoint")
	vivado, err := design.NewVivadoQuery(cfg.VivadoCmd, dcpPath)
	if err != nil {
		return fmt.Errorf("opening design checkpoint: %w", err)
	}
	defer vivado.Close()
	query := design.NewCached(vivado)

	db := device.Database{Root: cfg.DatabaseRoot}
	designBits, part, err := readDesignBits(bitPath, query.Part(), db)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"part": part, "bits": len(designBits)}).
		Info("design bits loaded")

	grid, err := db.Tilegrid(part)
	if err != nil {
		return fmt.Errorf("loading tilegrid: %w", err)
	}
	types, err := db.Archetypes(part, grid)
	if err != nil {
		return fmt.Errorf("loading tile databases: %w", err)
	}
	frames, err := db.Frames(part)
	if err != nil {
		return fmt.Errorf("loading frame list: %w", err)
	}

	ff, err := os.Open(faultPath)
	if err != nil {
		return fmt.Errorf("opening fault bit list: %w", err)
	}
	groups, err := fault.ParseBitGroups(ff)
	ff.Close()
	if err != nil {
		return fmt.Errorf("parsing fault bit list: %w", err)
	}

	analyzer := &fault.Analyzer{
		Translator: &device.Translator{Grid: grid, Types: types},
		Design:     query,
		DesignBits: make(map[string]bool, len(designBits)),
		Frames:     make(map[bitstream.FrameAddress]bool, len(frames)),
	}
	for _, b := range designBits {
		analyzer.DesignBits[b.String()] = true
	}
	for _, f := range frames {
		analyzer.Frames[f] = true
	}

	workers := numWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	bar := progressbar.Default(int64(len(groups)), "analyzing bit groups")
	rep, err := analyzer.AnalyzeGroups(cmd.Context(), groups, workers,
		func() { bar.Add(1) })
	if err != nil {
		return fmt.Errorf("analyzing bit groups: %w", err)
	}
	bar.Finish()

	out := outFile
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(faultPath), filepath.Ext(faultPath))
		out = base + "_fault_report.txt"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	stats := report.Write(w, rep)
	report.WriteFooter(w, dcpPath, "Vivado", stats, time.Since(start).Seconds())
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	log.WithField("report", out).Info("fault report written")
	return nil
}

// readDesignBits loads the set bits of the design either from a previously
// generated .bits listing or straight from the bitstream. The part from the
// bitstream header wins over the checkpoint's part when both are available.
func readDesignBits(path, designPart string, db device.Database) ([]bitstream.BitAddress, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if useBitsFile {
		bits, err := bitstream.ReadBitsFile(f)
		if err != nil {
			return nil, "", fmt.Errorf("reading bits file: %w", err)
		}
		return bits, designPart, nil
	}

	r := bufio.NewReader(f)
	part, err := bitstream.FindConfigPacket(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading bitstream header: %w", err)
	}
	frames, err := db.Frames(part)
	if err != nil {
		return nil, "", fmt.Errorf("loading frame list: %w", err)
	}
	bits, err := bitstream.ReadFrames(r, frames)
	if err != nil {
		return nil, "", fmt.Errorf("reading configuration frames: %w", err)
	}
	return bits, part, nil
}
