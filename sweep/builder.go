package sweep

import (
	"strconv"
)

// Build parameter names understood by the simulator's makefile.
const (
	ParamBlockSize = "BLOCKSIZE"
	ParamL1Size    = "L1_SIZE"
	ParamL1Assoc   = "L1_ASSOC"
	ParamL2Size    = "L2_SIZE"
	ParamL2Assoc   = "L2_ASSOC"
	ParamPrefetchN = "PREF_N"
	ParamPrefetchM = "PREF_M"
	ParamTraceFile = "trace_file"
)

// Param is one named build parameter.
type Param struct {
	Name  string
	Value string
}

func (p Param) String() string { return p.Name + "=" + p.Value }

// Args is the ordered parameter set for one simulator invocation.
type Args []Param

// Get returns the value of the named parameter.
func (a Args) Get(name string) (string, bool) {
	for _, p := range a {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Strings renders the parameters as NAME=value words.
func (a Args) Strings() []string {
	out := make([]string, len(a))
	for i, p := range a {
		out[i] = p.String()
	}
	return out
}

// Merge applies the overrides on top of base. Every base field survives
// unless an override names it.
func Merge(base CacheConfig, ov Overrides) CacheConfig {
	cfg := base
	for _, f := range Fields {
		if v, ok := ov[f]; ok {
			f.apply(&cfg, v)
		}
	}
	return cfg
}

// BuildArgs translates a configuration into simulator build parameters.
// Any fully-associative rule is resolved first, so a rule and its resolved
// way count produce identical arguments.
func BuildArgs(cfg CacheConfig) Args {
	cfg = cfg.Resolve()
	args := Args{
		{ParamBlockSize, strconv.Itoa(cfg.BlockSize)},
		{ParamL1Size, strconv.Itoa(cfg.L1Size)},
		{ParamL1Assoc, strconv.Itoa(cfg.L1Assoc.Count())},
		{ParamL2Size, strconv.Itoa(cfg.L2Size)},
		{ParamL2Assoc, strconv.Itoa(cfg.L2Assoc.Count())},
		{ParamPrefetchN, strconv.Itoa(cfg.PrefetchN)},
		{ParamPrefetchM, strconv.Itoa(cfg.PrefetchM)},
	}
	if cfg.TraceFile != "" {
		args = append(args, Param{ParamTraceFile, cfg.TraceFile})
	}
	return args
}
