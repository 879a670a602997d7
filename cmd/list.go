package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/heyyprateek/cachesweep/sweep"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the experiments in the experiments file",
	Run: func(cmd *cobra.Command, args []string) {
		writeExperimentList(os.Stdout, loadSuite(experimentsFilePath))
	},
}

func writeExperimentList(w io.Writer, suite *sweep.Suite) {
	for i := range suite.Experiments {
		e := &suite.Experiments[i]
		fmt.Fprintf(w, "%-16s %4d points  %s\n", e.Name, e.Space().Len(), e.Description)
	}
}
