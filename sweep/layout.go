package sweep

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// placeholderExperiment expands to the experiment name in naming templates.
const placeholderExperiment = "experiment"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// NamingRule maps a configuration to a relative output location. Dir and
// File are templates whose {field} placeholders expand to the declared
// value of that field, e.g. Dir "{l1_assoc}" and File "content_{l1_size}.txt".
// An empty Dir writes straight into the experiment directory.
type NamingRule struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

func (r NamingRule) validate() error {
	if r.File == "" {
		return fmt.Errorf("output.file template required")
	}
	for _, tmpl := range []string{r.Dir, r.File} {
		if filepath.IsAbs(tmpl) {
			return fmt.Errorf("output template %q must be relative", tmpl)
		}
		for _, seg := range strings.Split(filepath.ToSlash(tmpl), "/") {
			if seg == ".." {
				return fmt.Errorf("output template %q must not leave the experiment directory", tmpl)
			}
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
			if m[1] != placeholderExperiment && !Field(m[1]).IsValid() {
				return fmt.Errorf("output template %q: unknown placeholder {%s}; valid: experiment, %s", tmpl, m[1], joinFields(Fields))
			}
		}
	}
	if strings.ContainsAny(r.File, `/\`) {
		return fmt.Errorf("output.file %q must be a file name; put directories in output.dir", r.File)
	}
	return nil
}

// Render expands the templates for one declared configuration.
func (r NamingRule) Render(experiment string, declared CacheConfig) (dir, file string) {
	rep := strings.NewReplacer(
		"{"+placeholderExperiment+"}", experiment,
		"{"+string(FieldBlockSize)+"}", strconv.Itoa(declared.BlockSize),
		"{"+string(FieldL1Size)+"}", strconv.Itoa(declared.L1Size),
		"{"+string(FieldL1Assoc)+"}", declared.L1Assoc.String(),
		"{"+string(FieldL2Size)+"}", strconv.Itoa(declared.L2Size),
		"{"+string(FieldL2Assoc)+"}", declared.L2Assoc.String(),
		"{"+string(FieldPrefetchN)+"}", strconv.Itoa(declared.PrefetchN),
		"{"+string(FieldPrefetchM)+"}", strconv.Itoa(declared.PrefetchM),
	)
	return rep.Replace(r.Dir), rep.Replace(r.File)
}

// Layout places reports under Root/<experiment>/<dir>/<file>.
type Layout struct {
	Root string
}

// Path returns the report path for a point. It depends only on the
// experiment name, the rule and the point's declared configuration, so
// re-running a configuration targets the same file.
func (l Layout) Path(experiment string, rule NamingRule, pt Point) string {
	dir, file := rule.Render(experiment, pt.Declared)
	return filepath.Join(l.Root, experiment, dir, file)
}

// Ensure creates the directory that will hold path, including missing
// ancestors. An existing directory is not an error.
func (l Layout) Ensure(path string, cfg CacheConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &LayoutError{Config: cfg, Path: path, Err: err}
	}
	return nil
}
