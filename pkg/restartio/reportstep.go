package restartio

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/randalmurphal/restartio/pkg/restartio/observability"
)

// ReportStepGroup holds one dataset per saved report step.
const ReportStepGroup = "/report_step"

// NoReportStep is returned by LastReportStep when no step is stored.
const NoReportStep = -1

// ReportStepEntry is one dataset name under ReportStepGroup.
type ReportStepEntry struct {
	// Name is the dataset name as stored.
	Name string
	// Step is the parsed value; see ParseReportStep.
	Step int
	// Exact reports whether Name is the canonical decimal form of Step,
	// as WriteReportStep names it.
	Exact bool
}

// ParseReportStep parses a dataset name the way C atoi does: leading
// whitespace is skipped, an optional sign is accepted, and the longest digit
// prefix is converted. A name with no digits parses as 0. Values out of
// range saturate. ok reports whether name is exactly the canonical decimal
// form of step, so "007" and "+5" parse but are not ok.
func ParseReportStep(name string) (step int, ok bool) {
	step = atoi(name)
	return step, strconv.Itoa(step) == name
}

func atoi(s string) int {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	// Accumulate negatively so math.MinInt is representable.
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := int(s[i] - '0')
		if n < (math.MinInt+d)/10 {
			if neg {
				return math.MinInt
			}
			return math.MaxInt
		}
		n = n*10 - d
	}

	if neg {
		return n
	}
	if n == math.MinInt {
		return math.MaxInt
	}
	return -n
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// ReportStepEntries lists every dataset under ReportStepGroup with its
// parsed step, in ascending step order. Ties keep name order.
func (s *Serializer) ReportStepEntries(ctx context.Context) ([]ReportStepEntry, error) {
	ctx, sp := s.spans.StartOpSpan(ctx, observability.SpanList, s.sessionID, ReportStepGroup, "")
	names, err := s.backend.List(ReportStepGroup)
	if err != nil {
		err = &IOError{Op: "list", Group: ReportStepGroup, Err: err}
		s.spans.EndSpanWithError(sp, err)
		return nil, err
	}

	entries := make([]ReportStepEntry, 0, len(names))
	for _, name := range names {
		step, ok := ParseReportStep(name)
		entries = append(entries, ReportStepEntry{Name: name, Step: step, Exact: ok})
	}
	slices.SortStableFunc(entries, func(a, b ReportStepEntry) int {
		switch {
		case a.Step < b.Step:
			return -1
		case a.Step > b.Step:
			return 1
		}
		return 0
	})

	s.spans.EndSpanWithError(sp, nil)
	return entries, nil
}

// ReportSteps returns the parsed step of every dataset under
// ReportStepGroup, ascending. The result is empty, not nil, when no step is
// stored. Names are parsed with ParseReportStep.
func (s *Serializer) ReportSteps(ctx context.Context) ([]int, error) {
	entries, err := s.ReportStepEntries(ctx)
	if err != nil {
		return nil, err
	}
	steps := make([]int, len(entries))
	for i, e := range entries {
		steps[i] = e.Step
	}
	return steps, nil
}

// LastReportStep returns the largest stored report step, or NoReportStep.
func (s *Serializer) LastReportStep(ctx context.Context) (int, error) {
	steps, err := s.ReportSteps(ctx)
	if err != nil {
		return NoReportStep, err
	}
	last := NoReportStep
	for _, step := range steps {
		last = max(last, step)
	}
	return last, nil
}

// WriteReportStep writes state as the dataset for report step step.
func (s *Serializer) WriteReportStep(ctx context.Context, step int, state any, opts ...IOOption) (WriteOutcome, error) {
	if step < 0 {
		return WriteOutcome{}, fmt.Errorf("%w: %d", ErrInvalidReportStep, step)
	}
	return s.Write(ctx, ReportStepGroup, strconv.Itoa(step), state, opts...)
}

// ReadReportStep reads the dataset for report step step into out.
func (s *Serializer) ReadReportStep(ctx context.Context, step int, out any, opts ...IOOption) error {
	if step < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidReportStep, step)
	}
	return s.Read(ctx, ReportStepGroup, strconv.Itoa(step), out, opts...)
}
