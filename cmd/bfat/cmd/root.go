package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bfat",
	Short: "Bitstream Fault Analysis Tool for series 7 FPGA designs",
	Long: `Evaluates single event upsets in a design's configuration bitstream:
each fault bit is located on the part, tied to the resource it configures,
and simulated against the implemented design to report the routing opens,
shorts, and altered logic it causes.

Examples:
  bfat analyze design.bit design.dcp fault_bits.json   # Full fault analysis
  bfat analyze -b design.bits design.dcp faults.json   # Start from a .bits file
  bfat bitread design.bit                              # Dump the high bits of a bitstream`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
