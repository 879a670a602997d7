package sweep

import (
	"fmt"
	"regexp"
)

var experimentNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ExperimentSpec declares one sweep: a base configuration, the dimensions
// (Cartesian product) or explicit tuples to vary, and where reports go.
type ExperimentSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Base        CacheConfig `yaml:"base"`
	Dimensions  []Dimension `yaml:"dimensions,omitempty"`
	Tuples      []Overrides `yaml:"tuples,omitempty"`
	Output      NamingRule  `yaml:"output"`
	Extract     []string    `yaml:"extract,omitempty"` // report labels logged after each run
}

// Space returns the experiment's parameter space.
func (e *ExperimentSpec) Space() *ParameterSpace {
	return NewParameterSpace(e)
}

// Validate checks the declaration itself. Per-point validity is checked
// during enumeration.
func (e *ExperimentSpec) Validate() error {
	if !experimentNameRe.MatchString(e.Name) {
		return fmt.Errorf("name %q must be non-empty and contain only letters, digits, '_', '-' or '.'", e.Name)
	}
	if len(e.Dimensions) > 0 && len(e.Tuples) > 0 {
		return fmt.Errorf("experiment %s: dimensions and tuples are mutually exclusive", e.Name)
	}
	seen := make(map[Field]bool, len(e.Dimensions))
	for i, d := range e.Dimensions {
		if err := d.validate(); err != nil {
			return fmt.Errorf("experiment %s: dimensions[%d]: %w", e.Name, i, err)
		}
		if seen[d.Field] {
			return fmt.Errorf("experiment %s: dimensions[%d]: field %s is swept twice", e.Name, i, d.Field)
		}
		seen[d.Field] = true
	}
	for i, t := range e.Tuples {
		if err := t.validate(); err != nil {
			return fmt.Errorf("experiment %s: tuples[%d]: %w", e.Name, i, err)
		}
	}
	if err := e.Output.validate(); err != nil {
		return fmt.Errorf("experiment %s: %w", e.Name, err)
	}
	return nil
}
