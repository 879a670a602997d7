package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/heyyprateek/cachesweep/sweep/report"
)

// Policy decides what a sweep does after a point fails.
type Policy int

const (
	// FailFast stops the sweep at the first failed point.
	FailFast Policy = iota
	// ContinueOnError logs the failure and moves on to the next point.
	ContinueOnError
)

// ValidPolicies lists the accepted policy names.
var ValidPolicies = map[string]Policy{"fail-fast": FailFast, "continue": ContinueOnError}

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	p, ok := ValidPolicies[name]
	if !ok {
		return FailFast, fmt.Errorf("unknown failure policy %q; valid: fail-fast, continue", name)
	}
	return p, nil
}

func (p Policy) String() string {
	if p == ContinueOnError {
		return "continue"
	}
	return "fail-fast"
}

// Job is one planned simulator invocation.
type Job struct {
	Point Point
	Path  string
	Argv  []string
}

// Summary reports what a sweep did.
type Summary struct {
	Experiment string
	RunID      string
	Planned    int
	Succeeded  int
	Skipped    int
	Results    []*RunResult
	Failures   []error
}

// Failed returns the number of points that failed.
func (s *Summary) Failed() int { return len(s.Failures) }

// Driver runs experiments one point at a time, in enumeration order.
type Driver struct {
	Layout       Layout
	Executor     Executor
	Policy       Policy
	SkipExisting bool // leave points whose report already exists and is non-empty
}

// NewDriver returns a Driver writing under root.
func NewDriver(root string, exec Executor, policy Policy) *Driver {
	return &Driver{Layout: Layout{Root: root}, Executor: exec, Policy: policy}
}

// Plan enumerates and validates every point of the experiment and resolves
// its output path and command line. Any invalid point, unbuildable command
// or output path shared by two points yields a *ConfigurationError, so an
// experiment that plans cleanly never launches an invalid configuration.
func (d *Driver) Plan(spec *ExperimentSpec) ([]Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, &ConfigurationError{Experiment: spec.Name, Point: -1, Reason: err.Error()}
	}
	space := spec.Space()
	jobs := make([]Job, 0, space.Len())
	owner := make(map[string]int, space.Len())
	for pt, err := range space.All() {
		if err != nil {
			return nil, err
		}
		path := d.Layout.Path(spec.Name, spec.Output, pt)
		if prev, dup := owner[path]; dup {
			return nil, &ConfigurationError{
				Experiment: spec.Name,
				Point:      pt.Index,
				Config:     pt.Declared,
				Reason:     fmt.Sprintf("output path %s is also used by point %d; add the varying fields to output.dir or output.file", path, prev),
			}
		}
		owner[path] = pt.Index
		argv, err := d.Executor.Describe(pt.Config)
		if err != nil {
			return nil, &ConfigurationError{Experiment: spec.Name, Point: pt.Index, Config: pt.Declared, Reason: err.Error()}
		}
		jobs = append(jobs, Job{Point: pt, Path: path, Argv: argv})
	}
	return jobs, nil
}

// Run plans the experiment and executes its points sequentially. Under
// FailFast the first failure is returned immediately; under
// ContinueOnError every failure is logged, recorded in the summary and
// returned joined once the sweep ends. Cancelling ctx stops the running
// invocation and the sweep; finished reports are left in place.
func (d *Driver) Run(ctx context.Context, spec *ExperimentSpec) (*Summary, error) {
	sum := &Summary{Experiment: spec.Name, RunID: xid.New().String()}
	log := logrus.WithFields(logrus.Fields{"experiment": spec.Name, "run_id": sum.RunID})

	jobs, err := d.Plan(spec)
	if err != nil {
		return sum, err
	}
	sum.Planned = len(jobs)
	log.Infof("Starting sweep: %d points, policy=%s", len(jobs), d.Policy)

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("experiment %s interrupted before point %d of %d: %w", spec.Name, i+1, len(jobs), err)
		}
		if d.SkipExisting && reportExists(job.Path) {
			log.Debugf("Skipping %s: report already present", job.Path)
			sum.Skipped++
			continue
		}

		log.Infof("%s > %s", strings.Join(job.Argv, " "), job.Path)
		res, err := d.runJob(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return sum, fmt.Errorf("experiment %s interrupted at point %d of %d: %w", spec.Name, i+1, len(jobs), err)
			}
			sum.Failures = append(sum.Failures, err)
			if d.Policy == FailFast {
				return sum, err
			}
			log.Warnf("Point %d failed, continuing: %v", job.Point.Index, err)
			continue
		}
		sum.Succeeded++
		sum.Results = append(sum.Results, res)
		log.Debugf("Point %d done in %v", job.Point.Index, res.Duration)

		if len(spec.Extract) > 0 {
			logMatches(log, res.Path, spec.Extract)
		}
	}

	log.Infof("Sweep complete: %d succeeded, %d skipped, %d failed", sum.Succeeded, sum.Skipped, sum.Failed())
	return sum, errors.Join(sum.Failures...)
}

func (d *Driver) runJob(ctx context.Context, job Job) (*RunResult, error) {
	if err := d.Layout.Ensure(job.Path, job.Point.Config); err != nil {
		return nil, err
	}
	return d.Executor.Execute(ctx, job.Point.Config, job.Path)
}

func reportExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func logMatches(log *logrus.Entry, path string, labels []string) {
	for m, err := range report.Grep([]string{path}, labels) {
		if err != nil {
			log.Warnf("Scanning %s: %v", path, err)
			return
		}
		log.Info(m.String())
	}
}
