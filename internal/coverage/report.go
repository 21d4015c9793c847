// Package coverage parses the textual statement-coverage report emitted
// by the unit-tests gate and enforces its fail-under threshold.
package coverage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v2"

	"github.com/example/gateci/internal/domain"
)

// FileCoverage is one row of the report.
type FileCoverage struct {
	Name         string
	Statements   int
	Missed       int
	MissingLines string // e.g. "12-14, 20"; empty when fully covered
}

// Percent returns the file's statement coverage percentage.
func (f FileCoverage) Percent() float64 {
	if f.Statements == 0 {
		return 100.0
	}
	return 100.0 * float64(f.Statements-f.Missed) / float64(f.Statements)
}

// Report is a parsed coverage report.
type Report struct {
	Files []FileCoverage
}

// TotalStatements returns the aggregate statement count.
func (r *Report) TotalStatements() int {
	var n int
	for _, f := range r.Files {
		n += f.Statements
	}
	return n
}

// TotalMissed returns the aggregate missed-statement count.
func (r *Report) TotalMissed() int {
	var n int
	for _, f := range r.Files {
		n += f.Missed
	}
	return n
}

// TotalPercent computes overall coverage from aggregate counts, never
// from the rounded per-file percentages.
func (r *Report) TotalPercent() float64 {
	stmts := r.TotalStatements()
	if stmts == 0 {
		return 100.0
	}
	return 100.0 * float64(stmts-r.TotalMissed()) / float64(stmts)
}

// Filter returns a report containing only files matching at least one
// of the glob patterns. A pattern naming a directory tree (trailing
// slash) matches everything under it.
func (r *Report) Filter(patterns []string) (*Report, error) {
	if len(patterns) == 0 {
		return r, nil
	}
	out := &Report{}
	for _, f := range r.Files {
		matched, err := matchAny(patterns, f.Name)
		if err != nil {
			return nil, err
		}
		if matched {
			out.Files = append(out.Files, f)
		}
	}
	return out, nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			p += "**"
		}
		ok, err := doublestar.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("%w: bad coverage target pattern %q", domain.ErrInvalidArgument, p)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Enforce fails the gate when total coverage is below failUnder. The
// boundary is exact: a 100 threshold passes only with zero missed
// statements, so floating-point rounding can never sneak 99.9% through.
func (r *Report) Enforce(failUnder float64) error {
	if failUnder >= 100.0 {
		if r.TotalMissed() == 0 {
			return nil
		}
	} else if r.TotalPercent() >= failUnder {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%.2f%% < %.2f%%", r.TotalPercent(), failUnder)
	for _, f := range r.Files {
		if f.Missed == 0 {
			continue
		}
		fmt.Fprintf(&b, "; %s missing %s", f.Name, f.MissingLines)
	}
	return fmt.Errorf("%w: %s", domain.ErrCoverageBelowThreshold, b.String())
}

// Parse reads a coverage table of the form:
//
//	Name          Stmts   Miss  Cover   Missing
//	---------------------------------------------
//	src/foo.py      120      0   100%
//	src/bar.py       80      4    95%   12-14, 20
//	---------------------------------------------
//	TOTAL           200      4    98%
//
// The TOTAL row is ignored; totals are recomputed from the file rows.
func Parse(rd io.Reader) (*Report, error) {
	report := &Report{}
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sawRow bool
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if fields[0] == "Name" || fields[0] == "TOTAL" {
			continue
		}
		if !strings.HasSuffix(fields[3], "%") {
			continue
		}

		stmts, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		miss, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		if miss < 0 || stmts < 0 || miss > stmts {
			return nil, fmt.Errorf("%w: coverage row %q", domain.ErrInvalidArgument, line)
		}

		fc := FileCoverage{
			Name:       fields[0],
			Statements: stmts,
			Missed:     miss,
		}
		if len(fields) > 4 {
			fc.MissingLines = strings.Join(fields[4:], " ")
		}
		report.Files = append(report.Files, fc)
		sawRow = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coverage report: %w", err)
	}
	if !sawRow {
		return nil, fmt.Errorf("%w: no coverage rows found", domain.ErrInvalidArgument)
	}
	return report, nil
}
