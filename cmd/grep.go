package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heyyprateek/cachesweep/sweep/report"
)

var grepLabels []string // Labels to search for, case-insensitive

var grepCmd = &cobra.Command{
	Use:   "grep <report-or-dir>...",
	Short: "Print labelled lines (e.g. miss rates) from captured reports",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := grepReports(os.Stdout, args, grepLabels)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Debugf("%d matching lines", n)
	},
}

// grepReports expands directories into their report files and writes every
// matching line to w.
func grepReports(w io.Writer, roots []string, labels []string) (int, error) {
	var paths []string
	for _, root := range roots {
		files, err := report.Files(root)
		if err != nil {
			return 0, err
		}
		paths = append(paths, files...)
	}
	n := 0
	for m, err := range report.Grep(paths, labels) {
		if err != nil {
			return n, err
		}
		fmt.Fprintln(w, m)
		n++
	}
	return n, nil
}

func init() {
	grepCmd.Flags().StringSliceVar(&grepLabels, "label", []string{"L1 miss rate", "L2 miss rate"}, "Comma-separated report labels to match")
}
