package sweep

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a structurally invalid experiment or point.
// It is always raised before any simulator invocation.
type ConfigurationError struct {
	Experiment string
	Point      int // -1 when the error concerns the experiment as a whole
	Config     CacheConfig
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Point < 0 {
		return fmt.Sprintf("experiment %s: invalid configuration: %s", e.Experiment, e.Reason)
	}
	return fmt.Sprintf("experiment %s point %d [%s]: invalid configuration: %s", e.Experiment, e.Point, e.Config, e.Reason)
}

// RunFailure reports a simulator invocation that could not be launched or
// exited non-zero.
type RunFailure struct {
	Config   CacheConfig
	Path     string
	ExitCode int // -1 when the process never ran to completion
	Stderr   string
	Err      error
}

func (e *RunFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run [%s] -> %s failed", e.Config, e.Path)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit status %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "; stderr: %s", s)
	}
	return b.String()
}

func (e *RunFailure) Unwrap() error { return e.Err }

// LayoutError reports an output location that could not be created.
type LayoutError struct {
	Config CacheConfig
	Path   string
	Err    error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("preparing output %s for [%s]: %v", e.Path, e.Config, e.Err)
}

func (e *LayoutError) Unwrap() error { return e.Err }
