package sweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// stderrTailBytes bounds how much of a failing simulator's stderr is kept.
	stderrTailBytes = 4096
	// partialSuffix marks a report still being written.
	partialSuffix = ".partial"
	// waitDelay bounds how long Execute waits for output pipes after the
	// simulator is killed.
	waitDelay = 5 * time.Second
)

// RunResult is the captured outcome of one simulator invocation. It is not
// modified after Execute returns.
type RunResult struct {
	Config   CacheConfig
	Path     string
	Argv     []string
	Output   string // everything the simulator wrote to stdout; also in Path
	ExitCode int
	Duration time.Duration
}

// Executor runs the simulator for one configuration.
type Executor interface {
	// Describe returns the command line Execute would run, without running it.
	Describe(cfg CacheConfig) ([]string, error)
	// Execute runs the simulator synchronously, capturing its stdout into
	// the file at path. On failure no report is left at path.
	Execute(ctx context.Context, cfg CacheConfig, path string) (*RunResult, error)
}

// Invocation turns build parameters into a command line.
type Invocation interface {
	Argv(args Args) ([]string, error)
}

// MakeInvocation drives the simulator through its makefile:
//
//	make [flags...] BLOCKSIZE=32 L1_SIZE=1024 ... [trace_file=...] test
type MakeInvocation struct {
	Program string   // default "make"
	Flags   []string // e.g. -C <dir>, -s
	Target  string   // default "test"
}

func (m MakeInvocation) Argv(args Args) ([]string, error) {
	program := m.Program
	if program == "" {
		program = "make"
	}
	target := m.Target
	if target == "" {
		target = "test"
	}
	argv := make([]string, 0, 2+len(m.Flags)+len(args))
	argv = append(argv, program)
	argv = append(argv, m.Flags...)
	argv = append(argv, args.Strings()...)
	return append(argv, target), nil
}

// BinaryInvocation runs an already built simulator with its eight
// positional arguments:
//
//	sim <BLOCKSIZE> <L1_SIZE> <L1_ASSOC> <L2_SIZE> <L2_ASSOC> <PREF_N> <PREF_M> <trace_file>
type BinaryInvocation struct {
	Program      string // default "./sim"
	DefaultTrace string // used when the configuration has no trace_file
}

var positionalParams = []string{
	ParamBlockSize, ParamL1Size, ParamL1Assoc, ParamL2Size, ParamL2Assoc, ParamPrefetchN, ParamPrefetchM,
}

func (b BinaryInvocation) Argv(args Args) ([]string, error) {
	program := b.Program
	if program == "" {
		program = "./sim"
	}
	argv := []string{program}
	for _, name := range positionalParams {
		v, ok := args.Get(name)
		if !ok {
			return nil, fmt.Errorf("missing build parameter %s", name)
		}
		argv = append(argv, v)
	}
	trace, ok := args.Get(ParamTraceFile)
	if !ok {
		trace = b.DefaultTrace
	}
	if trace == "" {
		return nil, fmt.Errorf("binary invocation needs a trace file: set trace_file on the experiment or simulator.default_trace")
	}
	return append(argv, trace), nil
}

// Runner executes simulator invocations as child processes. No shell is
// involved; each parameter is a separate argv word.
type Runner struct {
	Invocation Invocation
	Dir        string   // working directory; empty = current
	Env        []string // extra KEY=value entries on top of the inherited environment
}

// NewRunner returns a Runner for the given invocation.
func NewRunner(inv Invocation, dir string) *Runner {
	return &Runner{Invocation: inv, Dir: dir}
}

func (r *Runner) Describe(cfg CacheConfig) ([]string, error) {
	return r.Invocation.Argv(BuildArgs(cfg))
}

// Execute runs the simulator for cfg. Stdout is captured into a sibling
// partial file that replaces path only once the simulator exits zero; a
// failed or interrupted run leaves no report at path.
func (r *Runner) Execute(ctx context.Context, cfg CacheConfig, path string) (*RunResult, error) {
	argv, err := r.Describe(cfg)
	if err != nil {
		return nil, &RunFailure{Config: cfg, Path: path, ExitCode: -1, Err: err}
	}

	partial := path + partialSuffix
	f, err := os.Create(partial)
	if err != nil {
		return nil, &LayoutError{Config: cfg, Path: path, Err: err}
	}

	var stdout bytes.Buffer
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdout = io.MultiWriter(f, &stdout)
	cmd.Stderr = stderr
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	closeErr := f.Close()

	res := &RunResult{
		Config:   cfg,
		Path:     path,
		Argv:     argv,
		Output:   stdout.String(),
		Duration: time.Since(start),
	}
	if runErr != nil {
		discardReport(path, partial)
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = fmt.Errorf("%w (%v)", ctxErr, runErr)
		}
		return res, &RunFailure{Config: cfg, Path: path, ExitCode: res.ExitCode, Stderr: stderr.String(), Err: runErr}
	}
	if closeErr != nil {
		discardReport(path, partial)
		return res, &LayoutError{Config: cfg, Path: path, Err: closeErr}
	}
	if err := os.Rename(partial, path); err != nil {
		discardReport(path, partial)
		return res, &LayoutError{Config: cfg, Path: path, Err: err}
	}
	return res, nil
}

// discardReport removes the partial capture and any report an earlier run
// left at path, so a resumed sweep runs the point again.
func discardReport(path, partial string) {
	for _, p := range []string{partial, path} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logrus.Warnf("Removing %s: %v", p, err)
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
