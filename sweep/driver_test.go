package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records invocations and writes a one-line report.
type fakeExecutor struct {
	calls    []CacheConfig
	fail     func(CacheConfig) error
	onCall   func(n int)
	describe func(CacheConfig) ([]string, error)
}

func (f *fakeExecutor) Describe(cfg CacheConfig) ([]string, error) {
	if f.describe != nil {
		return f.describe(cfg)
	}
	return append([]string{"sim"}, BuildArgs(cfg).Strings()...), nil
}

func (f *fakeExecutor) Execute(ctx context.Context, cfg CacheConfig, path string) (*RunResult, error) {
	f.calls = append(f.calls, cfg)
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if err := ctx.Err(); err != nil {
		return nil, &RunFailure{Config: cfg, Path: path, ExitCode: -1, Err: err}
	}
	if f.fail != nil {
		if err := f.fail(cfg); err != nil {
			return nil, &RunFailure{Config: cfg, Path: path, ExitCode: 1, Err: err}
		}
	}
	out := fmt.Sprintf("L1_SIZE: %d\nL1 miss rate: 0.25\n", cfg.L1Size)
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return nil, err
	}
	return &RunResult{Config: cfg, Path: path, Output: out}, nil
}

func sizeSweep(sizes ...int) *ExperimentSpec {
	values := make([]Value, len(sizes))
	for i, s := range sizes {
		values[i] = Int(s)
	}
	return &ExperimentSpec{
		Name: "sizes",
		Base: CacheConfig{BlockSize: 32, L1Assoc: Ways(1)},
		Dimensions: []Dimension{
			{Field: FieldL1Size, Values: values},
		},
		Output: NamingRule{File: "content_{l1_size}.txt"},
	}
}

func failOnL1(size int) func(CacheConfig) error {
	return func(c CacheConfig) error {
		if c.L1Size == size {
			return errors.New("make: *** [test] Error 1")
		}
		return nil
	}
}

func TestDriver_Run_EndToEnd_TwoSizesTwoReports(t *testing.T) {
	// GIVEN L1 size {1024, 2048}, block 32, direct mapped, no L2, no prefetch
	root := t.TempDir()
	spec := sizeSweep(1024, 2048)
	driver := NewDriver(root, newHelperRunner(), FailFast)

	// WHEN the sweep runs against the stand-in simulator
	sum, err := driver.Run(context.Background(), spec)

	// THEN exactly two reports exist under one directory, named by size
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Planned)
	assert.Equal(t, 2, sum.Succeeded)
	assert.NotEmpty(t, sum.RunID)

	entries, err := os.ReadDir(filepath.Join(root, "sizes"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"content_1024.txt", "content_2048.txt"}, names)

	for _, size := range []int{1024, 2048} {
		data, err := os.ReadFile(filepath.Join(root, "sizes", fmt.Sprintf("content_%d.txt", size)))
		require.NoError(t, err)
		assert.Contains(t, string(data), fmt.Sprintf("L1_SIZE: %d", size))
		assert.Contains(t, string(data), "L1_ASSOC: 1")
		assert.Contains(t, string(data), "L2_SIZE: 0")
		assert.Contains(t, string(data), "PREF_N: 0")
	}
}

func TestDriver_Run_ContinuePolicy_LaterPointsStillRun(t *testing.T) {
	// GIVEN a sweep whose middle point fails under the continue policy
	root := t.TempDir()
	driver := NewDriver(root, newHelperRunner(2048), ContinueOnError)

	sum, err := driver.Run(context.Background(), sizeSweep(1024, 2048, 4096))

	// THEN the failure is reported, and the points after it produced reports
	require.Error(t, err)
	var failure *RunFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2048, failure.Config.L1Size)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed())
	assert.FileExists(t, filepath.Join(root, "sizes", "content_1024.txt"))
	assert.FileExists(t, filepath.Join(root, "sizes", "content_4096.txt"))
}

func TestDriver_Run_FailFast_StopsAtFirstFailure(t *testing.T) {
	exec := &fakeExecutor{fail: failOnL1(2048)}
	driver := NewDriver(t.TempDir(), exec, FailFast)

	sum, err := driver.Run(context.Background(), sizeSweep(1024, 2048, 4096))

	var failure *RunFailure
	require.True(t, errors.As(err, &failure))
	assert.Len(t, exec.calls, 2, "4096 must not run after 2048 fails")
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed())
}

func TestDriver_Run_ContinuePolicy_AllFailuresJoined(t *testing.T) {
	exec := &fakeExecutor{fail: func(c CacheConfig) error {
		if c.L1Size != 2048 {
			return errors.New("boom")
		}
		return nil
	}}
	driver := NewDriver(t.TempDir(), exec, ContinueOnError)

	sum, err := driver.Run(context.Background(), sizeSweep(1024, 2048, 4096))

	require.Error(t, err)
	assert.Len(t, exec.calls, 3)
	assert.Equal(t, 2, sum.Failed())
	assert.Contains(t, err.Error(), "L1_SIZE=1024")
	assert.Contains(t, err.Error(), "L1_SIZE=4096")
}

func TestDriver_Run_InvalidPoint_NothingLaunched(t *testing.T) {
	// GIVEN a sweep whose last point is structurally invalid
	exec := &fakeExecutor{}
	spec := sizeSweep(1024, 2048, 3000)
	driver := NewDriver(t.TempDir(), exec, ContinueOnError)

	_, err := driver.Run(context.Background(), spec)

	// THEN the sweep is rejected before any invocation
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 2, cfgErr.Point)
	assert.Empty(t, exec.calls)
}

func TestDriver_Plan_CollidingPaths_ConfigurationError(t *testing.T) {
	// GIVEN a naming rule that ignores the associativity being swept
	spec := &ExperimentSpec{
		Name: "collide",
		Base: CacheConfig{BlockSize: 32},
		Dimensions: []Dimension{
			{Field: FieldL1Assoc, Values: []Value{Int(1), Int(2)}},
			{Field: FieldL1Size, Values: []Value{Int(1024)}},
		},
		Output: NamingRule{File: "content_{l1_size}.txt"},
	}

	_, err := NewDriver(t.TempDir(), &fakeExecutor{}, FailFast).Plan(spec)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "also used by point 0")
}

func TestDriver_Plan_UndescribableCommand_ConfigurationError(t *testing.T) {
	exec := &fakeExecutor{describe: func(CacheConfig) ([]string, error) {
		return nil, errors.New("binary invocation needs a trace file")
	}}
	_, err := NewDriver(t.TempDir(), exec, FailFast).Plan(sizeSweep(1024))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "trace file")
}

func TestDriver_Plan_InvalidSpec_ConfigurationError(t *testing.T) {
	spec := sizeSweep(1024)
	spec.Output = NamingRule{}

	_, err := NewDriver(t.TempDir(), &fakeExecutor{}, FailFast).Plan(spec)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, -1, cfgErr.Point)
}

func TestDriver_Plan_PathsAreStableAcrossCalls(t *testing.T) {
	driver := NewDriver("out", &fakeExecutor{}, FailFast)
	first, err := driver.Plan(sizeSweep(1024, 2048))
	require.NoError(t, err)
	second, err := driver.Plan(sizeSweep(1024, 2048))
	require.NoError(t, err)
	require.Len(t, first, 2)
	for i := range first {
		assert.Equal(t, first[i].Path, second[i].Path)
	}
	assert.Equal(t, filepath.Join("out", "sizes", "content_1024.txt"), first[0].Path)
}

func TestDriver_Run_RerunOverwritesAndDirectoryReuseIsFine(t *testing.T) {
	root := t.TempDir()
	exec := &fakeExecutor{}
	driver := NewDriver(root, exec, FailFast)

	_, err := driver.Run(context.Background(), sizeSweep(1024))
	require.NoError(t, err)
	_, err = driver.Run(context.Background(), sizeSweep(1024))
	require.NoError(t, err)

	assert.Len(t, exec.calls, 2)
	entries, err := os.ReadDir(filepath.Join(root, "sizes"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDriver_Run_SkipExisting_ResumesSweep(t *testing.T) {
	// GIVEN a report for 1024 left by an earlier, interrupted sweep
	root := t.TempDir()
	dir := filepath.Join(root, "sizes")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content_1024.txt"), []byte("done\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content_2048.txt"), nil, 0644)) // empty: rerun

	exec := &fakeExecutor{}
	driver := NewDriver(root, exec, FailFast)
	driver.SkipExisting = true

	sum, err := driver.Run(context.Background(), sizeSweep(1024, 2048, 4096))

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, sum.Succeeded)
	require.Len(t, exec.calls, 2)
	assert.Equal(t, 2048, exec.calls[0].L1Size)
	assert.Equal(t, 4096, exec.calls[1].L1Size)
}

func TestDriver_Run_SkipExisting_RerunsPointThatFailed(t *testing.T) {
	// GIVEN a continue-policy sweep whose 2048 point echoed output and failed
	root := t.TempDir()
	first, err := NewDriver(root, newHelperRunner(2048), ContinueOnError).Run(context.Background(), sizeSweep(1024, 2048, 4096))
	require.Error(t, err)
	require.Equal(t, 2, first.Succeeded)
	assert.NoFileExists(t, filepath.Join(root, "sizes", "content_2048.txt"))

	// WHEN the sweep is resumed with a simulator that now succeeds
	driver := NewDriver(root, newHelperRunner(), FailFast)
	driver.SkipExisting = true
	sum, err := driver.Run(context.Background(), sizeSweep(1024, 2048, 4096))

	// THEN only the failed point runs again
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Succeeded)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, 2048, sum.Results[0].Config.L1Size)
	data, err := os.ReadFile(filepath.Join(root, "sizes", "content_2048.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "L1 miss rate")
}

func TestDriver_Run_Cancelled_StopsAndKeepsFinishedReports(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &fakeExecutor{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	driver := NewDriver(root, exec, ContinueOnError)

	sum, err := driver.Run(ctx, sizeSweep(1024, 2048, 4096))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, exec.calls, 2, "no point after the interrupted one may start")
	assert.Equal(t, 1, sum.Succeeded)
	assert.FileExists(t, filepath.Join(root, "sizes", "content_1024.txt"))
}

func TestDriver_Run_ExtractDoesNotAffectControlFlow(t *testing.T) {
	spec := sizeSweep(1024, 2048)
	spec.Extract = []string{"l1 MISS rate", "no such label"}
	exec := &fakeExecutor{}

	sum, err := NewDriver(t.TempDir(), exec, FailFast).Run(context.Background(), spec)

	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Len(t, exec.calls, 2)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnError, p)
	assert.Equal(t, "continue", p.String())

	p, err = ParsePolicy("fail-fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
