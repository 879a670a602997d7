package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heyyprateek/cachesweep/sweep"
)

var (
	// CLI flags shared by the subcommands
	experimentsFilePath string // Path to the experiments YAML file
	logLevel            string // Log verbosity level

	// CLI flags for run
	outputRoot   string // Root directory for reports
	policyName   string // Failure policy: fail-fast or continue
	skipExisting bool   // Skip points whose report already exists
	dryRun       bool   // Print the planned invocations without running them
	simulatorDir string // Overrides simulator.dir from the experiments file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cachesweep",
	Short: "Parameter sweep driver for the cache hierarchy simulator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd sweeps the named experiments, or all of them
var runCmd = &cobra.Command{
	Use:   "run [experiment...]",
	Short: "Run experiment sweeps and capture simulator reports",
	Run: func(cmd *cobra.Command, args []string) {
		policy, err := sweep.ParsePolicy(policyName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		suite := loadSuite(experimentsFilePath)
		if cmd.Flags().Changed("simulator-dir") {
			suite.Simulator.Dir = simulatorDir
		}
		specs, err := suite.Select(args)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		driver := sweep.NewDriver(outputRoot, suite.Simulator.Runner(), policy)
		driver.SkipExisting = skipExisting

		if dryRun {
			printPlans(driver, specs)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runSweeps(ctx, driver, specs); err != nil {
			logrus.Errorf("%v", err)
			stop()
			os.Exit(1)
		}
		logrus.Info("All sweeps complete.")
	},
}

// runSweeps runs each experiment in turn. Under the continue policy a
// failing experiment does not stop the next one; all errors are returned.
func runSweeps(ctx context.Context, driver *sweep.Driver, specs []*sweep.ExperimentSpec) error {
	var errs []error
	for _, spec := range specs {
		sum, err := driver.Run(ctx, spec)
		logrus.Infof("%s: %d planned, %d succeeded, %d skipped, %d failed (run %s)",
			spec.Name, sum.Planned, sum.Succeeded, sum.Skipped, sum.Failed(), sum.RunID)
		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("experiment %s: %w", spec.Name, err))
		if ctx.Err() != nil || driver.Policy == sweep.FailFast {
			break
		}
	}
	return errors.Join(errs...)
}

func printPlans(driver *sweep.Driver, specs []*sweep.ExperimentSpec) {
	for _, spec := range specs {
		jobs, err := driver.Plan(spec)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Printf("# %s (%d points)\n", spec.Name, len(jobs))
		for _, job := range jobs {
			fmt.Printf("%s > %s\n", strings.Join(job.Argv, " "), job.Path)
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&experimentsFilePath, "experiments", defaultExperimentsFile, "Path to the experiments YAML file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&outputRoot, "out", "out", "Root directory for captured reports")
	runCmd.Flags().StringVar(&policyName, "policy", "fail-fast", "What to do when a point fails: fail-fast or continue")
	runCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip points whose report file already exists and is non-empty")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned simulator invocations without running them")
	runCmd.Flags().StringVar(&simulatorDir, "simulator-dir", "", "Working directory for simulator invocations (overrides simulator.dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(grepCmd)
}
