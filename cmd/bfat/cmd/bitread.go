package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/byuccl/bfat/internal/config"
	"github.com/byuccl/bfat/pkg/bitstream"
	"github.com/byuccl/bfat/pkg/device"
)

var bitsOutFile string

var bitreadCmd = &cobra.Command{
	Use:   "bitread <bitstream>",
	Short: "Convert a bitstream to a .bits listing of its set bits",
	Long: `Parses a series 7 bitstream and writes the canonical name of every
high configuration bit, one per line. The part is read from the bitstream
header and its frame layout is looked up in the part database.

Examples:
  bfat bitread design.bit
  bfat bitread -o design.bits design.bit`,
	Args: cobra.ExactArgs(1),
	RunE: runBitread,
}

func init() {
	rootCmd.AddCommand(bitreadCmd)

	bitreadCmd.Flags().StringVarP(&bitsOutFile, "out-file", "o", "",
		"output file to write (default <bitstream>.bits)")
}

func runBitread(cmd *cobra.Command, args []string) error {
	bitPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.ApplyLogLevel()

	f, err := os.Open(bitPath)
	if err != nil {
		return fmt.Errorf("opening bitstream: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	part, err := bitstream.FindConfigPacket(r)
	if err != nil {
		return fmt.Errorf("reading bitstream header: %w", err)
	}
	log.WithField("part", part).Info("found configuration packet")

	db := device.Database{Root: cfg.DatabaseRoot}
	frames, err := db.Frames(part)
	if err != nil {
		return fmt.Errorf("loading frame list: %w", err)
	}
	bits, err := bitstream.ReadFrames(r, frames)
	if err != nil {
		return fmt.Errorf("reading configuration frames: %w", err)
	}

	out := bitsOutFile
	if out == "" {
		out = strings.TrimSuffix(bitPath, ".bit") + ".bits"
	}
	of, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer of.Close()
	if err := bitstream.WriteBitsFile(of, bits); err != nil {
		return fmt.Errorf("writing bits file: %w", err)
	}

	fmt.Printf("Wrote %d bits for part %s to %s\n", len(bits), part, out)
	return nil
}
