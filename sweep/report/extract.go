// Package report searches captured simulator reports for labelled lines,
// such as "L1 miss rate" or "L2 miss rate".
package report

import (
	"bufio"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Match is one report line containing a requested label.
type Match struct {
	Path string
	Line int // 1-based
	Text string
}

// String formats the match like grep -n output.
func (m Match) String() string {
	return fmt.Sprintf("%s:%d:%s", m.Path, m.Line, m.Text)
}

// Grep yields, lazily, every line of the given files that contains any of
// the labels, ignoring case. Files are read in the order given and lines in
// file order. A file that cannot be read yields an error and ends the
// sequence.
func Grep(paths []string, labels []string) iter.Seq2[Match, error] {
	needles := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" {
			needles = append(needles, strings.ToLower(l))
		}
	}
	return func(yield func(Match, error) bool) {
		for _, path := range paths {
			if !grepFile(path, needles, yield) {
				return
			}
		}
	}
}

// grepFile reports whether iteration should continue.
func grepFile(path string, needles []string, yield func(Match, error) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		yield(Match{Path: path}, fmt.Errorf("opening report: %w", err))
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		lower := strings.ToLower(text)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				if !yield(Match{Path: path, Line: lineNo, Text: text}, nil) {
					return false
				}
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		yield(Match{Path: path, Line: lineNo}, fmt.Errorf("reading report %s: %w", path, err))
		return false
	}
	return true
}

// Files returns the report files (*.txt) under root, in lexical walk order.
// A root that is itself a file is returned as is.
func Files(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports under %s: %w", root, err)
	}
	return out, nil
}
