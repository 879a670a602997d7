package sweep

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fullyLabel is how a fully associative cache is spelled in YAML and in output paths.
const fullyLabel = "fully"

// Associativity is either a concrete number of ways or the rule
// "fully associative", which only becomes a number once the cache size and
// block size of a configuration are known.
// The zero value means "no cache at this level".
type Associativity struct {
	ways  int
	fully bool
}

// FullyAssociative is the unresolved "one set holding every line" rule.
var FullyAssociative = Associativity{fully: true}

// Ways returns a concrete associativity of n ways.
func Ways(n int) Associativity {
	return Associativity{ways: n}
}

// IsFully reports whether a is the unresolved fully-associative rule.
func (a Associativity) IsFully() bool { return a.fully }

// Count returns the number of ways. It is 0 for an unresolved rule.
func (a Associativity) Count() int {
	if a.fully {
		return 0
	}
	return a.ways
}

// Resolve substitutes size/blockSize for the fully-associative rule.
// A concrete associativity is returned unchanged, so Resolve is idempotent.
func (a Associativity) Resolve(size, blockSize int) Associativity {
	if !a.fully {
		return a
	}
	if blockSize <= 0 {
		return Associativity{}
	}
	return Ways(size / blockSize)
}

func (a Associativity) String() string {
	if a.fully {
		return fullyLabel
	}
	return strconv.Itoa(a.ways)
}

// UnmarshalYAML accepts an integer or the string "fully".
func (a *Associativity) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeValue(node)
	if err != nil {
		return err
	}
	*a = v.associativity()
	return nil
}

// MarshalYAML writes the integer form, or "fully" for the unresolved rule.
func (a Associativity) MarshalYAML() (interface{}, error) {
	if a.fully {
		return fullyLabel, nil
	}
	return a.ways, nil
}

// CacheConfig is one complete cache-hierarchy configuration handed to the
// simulator. Sizes are in bytes. An L2 with size and associativity 0 is
// absent; PrefetchN of 0 disables the stream buffers.
type CacheConfig struct {
	BlockSize int           `yaml:"block_size"`
	L1Size    int           `yaml:"l1_size"`
	L1Assoc   Associativity `yaml:"l1_assoc"`
	L2Size    int           `yaml:"l2_size"`
	L2Assoc   Associativity `yaml:"l2_assoc"`
	PrefetchN int           `yaml:"pref_n"`
	PrefetchM int           `yaml:"pref_m"`
	TraceFile string        `yaml:"trace_file,omitempty"` // empty = simulator default workload
}

// HasL2 reports whether the configuration declares a second-level cache.
func (c CacheConfig) HasL2() bool {
	return c.L2Size != 0 || c.L2Assoc != (Associativity{})
}

// Resolve returns a copy with every fully-associative rule replaced by
// size/blockSize for its level.
func (c CacheConfig) Resolve() CacheConfig {
	c.L1Assoc = c.L1Assoc.Resolve(c.L1Size, c.BlockSize)
	if c.L2Size > 0 {
		c.L2Assoc = c.L2Assoc.Resolve(c.L2Size, c.BlockSize)
	}
	return c
}

// Validate checks that a resolved configuration describes caches the
// simulator can build: power-of-two block and cache sizes, and a positive
// power-of-two number of sets at every present level.
func (c CacheConfig) Validate() error {
	if !isPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("block_size must be a positive power of two, got %d", c.BlockSize)
	}
	if err := validateLevel("l1", c.L1Size, c.L1Assoc, c.BlockSize); err != nil {
		return err
	}
	if c.HasL2() {
		if c.L2Size == 0 || c.L2Assoc == (Associativity{}) {
			return fmt.Errorf("l2_size and l2_assoc must both be zero (no L2) or both set, got size=%d assoc=%s", c.L2Size, c.L2Assoc)
		}
		if err := validateLevel("l2", c.L2Size, c.L2Assoc, c.BlockSize); err != nil {
			return err
		}
	}
	if c.PrefetchN < 0 || c.PrefetchM < 0 {
		return fmt.Errorf("pref_n and pref_m must be non-negative, got (%d,%d)", c.PrefetchN, c.PrefetchM)
	}
	if c.PrefetchN > 0 && c.PrefetchM == 0 {
		return fmt.Errorf("pref_m must be positive when pref_n=%d stream buffers are enabled", c.PrefetchN)
	}
	return nil
}

func validateLevel(level string, size int, assoc Associativity, blockSize int) error {
	if !isPowerOfTwo(size) {
		return fmt.Errorf("%s_size must be a positive power of two, got %d", level, size)
	}
	if assoc.IsFully() {
		return fmt.Errorf("%s_assoc is unresolved; call Resolve before Validate", level)
	}
	ways := assoc.Count()
	if ways <= 0 {
		return fmt.Errorf("%s_assoc must be positive, got %d", level, ways)
	}
	if lines := size / blockSize; ways > lines {
		return fmt.Errorf("%s_assoc %d exceeds the %d lines of a %d-byte cache with %d-byte blocks", level, ways, lines, size, blockSize)
	}
	setBytes := blockSize * ways
	if size%setBytes != 0 {
		return fmt.Errorf("%s_size %d is not a whole number of %d-way sets of %d-byte blocks", level, size, ways, blockSize)
	}
	if sets := size / setBytes; !isPowerOfTwo(sets) {
		return fmt.Errorf("%s set count %d (size %d / (block %d x assoc %d)) must be a power of two", level, sets, size, blockSize, ways)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// String renders the configuration the way the simulator's header prints it.
func (c CacheConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "BLOCKSIZE=%d L1_SIZE=%d L1_ASSOC=%s L2_SIZE=%d L2_ASSOC=%s PREF_N=%d PREF_M=%d",
		c.BlockSize, c.L1Size, c.L1Assoc, c.L2Size, c.L2Assoc, c.PrefetchN, c.PrefetchM)
	if c.TraceFile != "" {
		fmt.Fprintf(&b, " trace_file=%s", c.TraceFile)
	}
	return b.String()
}
