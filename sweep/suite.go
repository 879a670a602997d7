package sweep

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Simulator invocation modes.
const (
	ModeMake   = "make"
	ModeBinary = "binary"
)

var validModes = map[string]bool{"": true, ModeMake: true, ModeBinary: true}

// SimulatorConfig describes how to reach the external simulator.
type SimulatorConfig struct {
	Mode         string   `yaml:"mode"`    // "make" (default) or "binary"
	Program      string   `yaml:"program"` // make: "make"; binary: "./sim"
	Dir          string   `yaml:"dir"`     // working directory for every invocation
	Flags        []string `yaml:"flags,omitempty"`
	Target       string   `yaml:"target,omitempty"` // make target, default "test"
	DefaultTrace string   `yaml:"default_trace,omitempty"`
	Env          []string `yaml:"env,omitempty"`
}

// Invocation builds the command-line contract for the configured mode.
func (s SimulatorConfig) Invocation() Invocation {
	if s.Mode == ModeBinary {
		return BinaryInvocation{Program: s.Program, DefaultTrace: s.DefaultTrace}
	}
	return MakeInvocation{Program: s.Program, Flags: s.Flags, Target: s.Target}
}

// Runner returns a Runner wired to the configured simulator.
func (s SimulatorConfig) Runner() *Runner {
	r := NewRunner(s.Invocation(), s.Dir)
	r.Env = s.Env
	return r
}

// Suite is the top-level experiments file.
type Suite struct {
	Version     string           `yaml:"version"`
	Simulator   SimulatorConfig  `yaml:"simulator"`
	Experiments []ExperimentSpec `yaml:"experiments"`
}

// LoadSuite reads and parses a YAML experiments file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiments file: %w", err)
	}
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("parsing experiments file: %w", err)
	}
	return &suite, nil
}

// Validate checks the simulator section and every experiment declaration.
func (s *Suite) Validate() error {
	if !validModes[s.Simulator.Mode] {
		return fmt.Errorf("simulator: unknown mode %q; valid: make, binary", s.Simulator.Mode)
	}
	if len(s.Experiments) == 0 {
		return fmt.Errorf("at least one experiment required")
	}
	names := make(map[string]bool, len(s.Experiments))
	for i := range s.Experiments {
		e := &s.Experiments[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("experiments[%d]: %w", i, err)
		}
		if names[e.Name] {
			return fmt.Errorf("experiments[%d]: duplicate experiment name %q", i, e.Name)
		}
		names[e.Name] = true
	}
	return nil
}

// Select returns the named experiments in the order given, or every
// experiment in file order when names is empty.
func (s *Suite) Select(names []string) ([]*ExperimentSpec, error) {
	if len(names) == 0 {
		out := make([]*ExperimentSpec, len(s.Experiments))
		for i := range s.Experiments {
			out[i] = &s.Experiments[i]
		}
		return out, nil
	}
	byName := make(map[string]*ExperimentSpec, len(s.Experiments))
	known := make([]string, 0, len(s.Experiments))
	for i := range s.Experiments {
		byName[s.Experiments[i].Name] = &s.Experiments[i]
		known = append(known, s.Experiments[i].Name)
	}
	out := make([]*ExperimentSpec, 0, len(names))
	for _, n := range names {
		e, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown experiment %q; known: %s", n, strings.Join(known, ", "))
		}
		out = append(out, e)
	}
	return out, nil
}
