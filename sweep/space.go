package sweep

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field names one CacheConfig field that a sweep can vary.
type Field string

const (
	FieldBlockSize Field = "block_size"
	FieldL1Size    Field = "l1_size"
	FieldL1Assoc   Field = "l1_assoc"
	FieldL2Size    Field = "l2_size"
	FieldL2Assoc   Field = "l2_assoc"
	FieldPrefetchN Field = "pref_n"
	FieldPrefetchM Field = "pref_m"
)

// Fields lists every sweepable field in the simulator's argument order.
var Fields = []Field{
	FieldBlockSize, FieldL1Size, FieldL1Assoc, FieldL2Size, FieldL2Assoc, FieldPrefetchN, FieldPrefetchM,
}

var validFields = map[Field]bool{
	FieldBlockSize: true, FieldL1Size: true, FieldL1Assoc: true, FieldL2Size: true,
	FieldL2Assoc: true, FieldPrefetchN: true, FieldPrefetchM: true,
}

// IsValid reports whether f names a sweepable field.
func (f Field) IsValid() bool { return validFields[f] }

// isAssociativity reports whether f accepts the "fully" rule.
func (f Field) isAssociativity() bool {
	return f == FieldL1Assoc || f == FieldL2Assoc
}

// apply sets field f of c to v.
func (f Field) apply(c *CacheConfig, v Value) {
	switch f {
	case FieldBlockSize:
		c.BlockSize = v.n
	case FieldL1Size:
		c.L1Size = v.n
	case FieldL1Assoc:
		c.L1Assoc = v.associativity()
	case FieldL2Size:
		c.L2Size = v.n
	case FieldL2Assoc:
		c.L2Assoc = v.associativity()
	case FieldPrefetchN:
		c.PrefetchN = v.n
	case FieldPrefetchM:
		c.PrefetchM = v.n
	}
}

// Value is one declared value of a sweep dimension: an integer, or the
// "fully" rule on associativity fields.
type Value struct {
	n     int
	fully bool
}

// Int returns an integer dimension value.
func Int(n int) Value { return Value{n: n} }

// Fully is the fully-associative dimension value.
var Fully = Value{fully: true}

// IsFully reports whether v is the fully-associative rule.
func (v Value) IsFully() bool { return v.fully }

func (v Value) String() string {
	if v.fully {
		return fullyLabel
	}
	return strconv.Itoa(v.n)
}

func (v Value) associativity() Associativity {
	if v.fully {
		return FullyAssociative
	}
	return Ways(v.n)
}

// UnmarshalYAML accepts an integer or the string "fully".
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := decodeValue(node)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalYAML writes the integer form, or "fully".
func (v Value) MarshalYAML() (interface{}, error) {
	if v.fully {
		return fullyLabel, nil
	}
	return v.n, nil
}

func decodeValue(node *yaml.Node) (Value, error) {
	if node.Kind != yaml.ScalarNode {
		return Value{}, fmt.Errorf("line %d: expected an integer or %q", node.Line, fullyLabel)
	}
	if strings.EqualFold(node.Value, fullyLabel) {
		return Fully, nil
	}
	var n int
	if err := node.Decode(&n); err != nil {
		return Value{}, fmt.Errorf("line %d: expected an integer or %q, got %q", node.Line, fullyLabel, node.Value)
	}
	return Int(n), nil
}

// Pow2Range generates 2^From, 2^(From+1), ..., 2^To.
type Pow2Range struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Dimension is one axis of a sweep: either an explicit list of values or a
// generator rule, tagged with the field it varies.
type Dimension struct {
	Field  Field      `yaml:"field"`
	Values []Value    `yaml:"values,omitempty"`
	Pow2   *Pow2Range `yaml:"pow2,omitempty"`
}

// Expand returns the dimension's values in declaration order.
func (d Dimension) Expand() []Value {
	if d.Pow2 != nil {
		out := make([]Value, 0, d.Pow2.To-d.Pow2.From+1)
		for e := d.Pow2.From; e <= d.Pow2.To; e++ {
			out = append(out, Int(1<<e))
		}
		return out
	}
	return d.Values
}

func (d Dimension) validate() error {
	if !d.Field.IsValid() {
		return fmt.Errorf("unknown field %q; valid: %s", d.Field, joinFields(Fields))
	}
	if d.Pow2 != nil && len(d.Values) > 0 {
		return fmt.Errorf("field %s: values and pow2 are mutually exclusive", d.Field)
	}
	if d.Pow2 != nil {
		if d.Pow2.From < 0 || d.Pow2.To < d.Pow2.From || d.Pow2.To > 30 {
			return fmt.Errorf("field %s: pow2 range must satisfy 0 <= from <= to <= 30, got [%d, %d]", d.Field, d.Pow2.From, d.Pow2.To)
		}
		return nil
	}
	if len(d.Values) == 0 {
		return fmt.Errorf("field %s: at least one value or a pow2 range required", d.Field)
	}
	for _, v := range d.Values {
		if v.fully && !d.Field.isAssociativity() {
			return fmt.Errorf("field %s: %q is only valid for l1_assoc and l2_assoc", d.Field, fullyLabel)
		}
	}
	return nil
}

func joinFields(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Overrides is one tuple of field assignments applied on top of a base config.
type Overrides map[Field]Value

func (o Overrides) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty tuple")
	}
	for _, f := range Fields {
		if v, ok := o[f]; ok && v.fully && !f.isAssociativity() {
			return fmt.Errorf("field %s: %q is only valid for l1_assoc and l2_assoc", f, fullyLabel)
		}
	}
	var unknown []string
	for f := range o {
		if !f.IsValid() {
			unknown = append(unknown, strconv.Quote(string(f)))
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("unknown field %s; valid: %s", strings.Join(unknown, ", "), joinFields(Fields))
	}
	return nil
}

// Point is one enumerated configuration of a sweep.
type Point struct {
	Index     int
	Overrides Overrides
	Declared  CacheConfig // merged, with "fully" still unresolved
	Config    CacheConfig // resolved; what the simulator receives
}

// ParameterSpace enumerates the configurations of one experiment.
type ParameterSpace struct {
	spec *ExperimentSpec
	axes [][]Value
}

// NewParameterSpace expands the experiment's dimensions once; enumeration itself is lazy.
func NewParameterSpace(spec *ExperimentSpec) *ParameterSpace {
	axes := make([][]Value, len(spec.Dimensions))
	for i, d := range spec.Dimensions {
		axes[i] = d.Expand()
	}
	return &ParameterSpace{spec: spec, axes: axes}
}

// Len returns the number of points: the product of the dimension
// cardinalities, the number of explicit tuples, or 1 for an experiment that only
// has a base configuration.
func (p *ParameterSpace) Len() int {
	if len(p.spec.Tuples) > 0 {
		return len(p.spec.Tuples)
	}
	n := 1
	for _, axis := range p.axes {
		n *= len(axis)
	}
	return n
}

// All yields every point in order. The first declared dimension varies
// slowest; values within a dimension keep their declaration order. A point
// whose resolved configuration is invalid is yielded with a
// *ConfigurationError. Each call starts a fresh enumeration.
func (p *ParameterSpace) All() iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		if len(p.spec.Tuples) > 0 {
			for i, t := range p.spec.Tuples {
				if !yield(p.point(i, t)) {
					return
				}
			}
			return
		}
		total := p.Len()
		idx := make([]int, len(p.axes))
		for i := 0; i < total; i++ {
			ov := make(Overrides, len(p.axes))
			for d, axis := range p.axes {
				ov[p.spec.Dimensions[d].Field] = axis[idx[d]]
			}
			if !yield(p.point(i, ov)) {
				return
			}
			// odometer: last dimension fastest
			for d := len(idx) - 1; d >= 0; d-- {
				idx[d]++
				if idx[d] < len(p.axes[d]) {
					break
				}
				idx[d] = 0
			}
		}
	}
}

func (p *ParameterSpace) point(i int, ov Overrides) (Point, error) {
	declared := Merge(p.spec.Base, ov)
	pt := Point{
		Index:     i,
		Overrides: ov,
		Declared:  declared,
		Config:    declared.Resolve(),
	}
	if err := pt.Config.Validate(); err != nil {
		return pt, &ConfigurationError{
			Experiment: p.spec.Name,
			Point:      i,
			Config:     declared,
			Reason:     err.Error(),
		}
	}
	return pt, nil
}
