package cmd

import (
	"github.com/sirupsen/logrus"

	"github.com/heyyprateek/cachesweep/sweep"
)

const defaultExperimentsFile = "experiments.yaml"

// loadSuite parses and validates the experiments file, exiting on failure.
func loadSuite(path string) *sweep.Suite {
	suite, err := sweep.LoadSuite(path)
	if err != nil {
		logrus.Fatalf("Failed to load experiments file %s: %v", path, err)
	}
	if err := suite.Validate(); err != nil {
		logrus.Fatalf("Invalid experiments file %s: %v", path, err)
	}
	return suite
}
