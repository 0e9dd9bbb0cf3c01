// Package validate runs independent consistency checks over an
// assembled model and returns a merged report. Checkers never mutate
// the model and never see each other's findings, so they run
// concurrently; the merged order is fixed by checker order and target
// path regardless of scheduling.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/simdoc/simdoc/assemble"
	"github.com/simdoc/simdoc/normalize"
	"github.com/simdoc/simdoc/sim"
)

// ErrNilModel is returned when there is nothing to validate.
var ErrNilModel = errors.New("validate: nil model")

// DefaultConfidenceThreshold is the level below which a field's
// extraction confidence is flagged.
const DefaultConfidenceThreshold = 0.7

// SkipRecord ties a normalizer row skip to the message it came from.
type SkipRecord struct {
	Message string            `json:"message"`
	Page    int               `json:"page"`
	Skip    normalize.RowSkip `json:"skip"`
}

// Gap is a page region where table arbitration rejected both
// candidates: content that may exist but was not captured.
type Gap struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// Options carries validator inputs beyond the model itself.
type Options struct {
	// Prior enables cross-edition drift checks when non-nil.
	Prior *sim.Model
	// ConfidenceThreshold overrides the default when > 0.
	ConfidenceThreshold float64
	// Skips and Gaps surface pipeline losses in the report.
	Skips []SkipRecord
	Gaps  []Gap
}

type checker func(*sim.Model, Options) []sim.Issue

// checkers in merge order. Adding one means appending here; the report
// order changes only when this list does.
var checkers = []checker{
	checkStructure,
	checkDictionary,
	checkUnits,
	checkEnums,
	checkConfidence,
	checkDiff,
	checkCoverage,
	checkRowSkips,
}

// Run validates a model. The returned report is deterministic for a
// given model and options.
func Run(ctx context.Context, m *sim.Model, opts Options) (sim.Report, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	results := make([][]sim.Issue, len(checkers))
	g, _ := errgroup.WithContext(ctx)
	for i, c := range checkers {
		g.Go(func() error {
			issues := c(m, opts)
			sort.SliceStable(issues, func(a, b int) bool {
				if issues[a].Path != issues[b].Path {
					return issues[a].Path < issues[b].Path
				}
				return issues[a].Message < issues[b].Message
			})
			results[i] = issues
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var report sim.Report
	for _, r := range results {
		report = append(report, r...)
	}
	return report, nil
}

// checkStructure covers bit layout: overlapping fields, fields past the
// segment boundary, bits the declared container length leaves unused,
// and duplicate message labels.
func checkStructure(m *sim.Model, _ Options) []sim.Issue {
	var out []sim.Issue

	labels := map[string]int{}
	for mi, msg := range m.Messages {
		if first, dup := labels[msg.Label]; dup {
			out = append(out, sim.Issue{
				Severity: sim.SeverityError,
				RuleID:   "SD-STRUCT-004",
				Path:     sim.MessagePath(mi),
				Message:  fmt.Sprintf("message label %q already defined at %s", msg.Label, sim.MessagePath(first)),
				Fix:      "merge the duplicate sections or correct the label",
			})
		} else {
			labels[msg.Label] = mi
		}

		for si, seg := range msg.Segments {
			for fi, f := range seg.Fields {
				if f.Bits.End >= seg.BitLen && seg.BitLen > 0 {
					out = append(out, sim.Issue{
						Severity: sim.SeverityError,
						RuleID:   "SD-STRUCT-002",
						Path:     sim.FieldPath(mi, si, fi),
						Message: fmt.Sprintf("field %q bits %s exceed segment length %d",
							f.Name, f.Bits, seg.BitLen),
					})
				}
				for fj := fi + 1; fj < len(seg.Fields); fj++ {
					g := seg.Fields[fj]
					if f.Bits.Overlaps(g.Bits) {
						out = append(out, sim.Issue{
							Severity: sim.SeverityError,
							RuleID:   "SD-STRUCT-001",
							Path:     sim.FieldPath(mi, si, fi),
							Message: fmt.Sprintf("field %q bits %s overlap field %q bits %s",
								f.Name, f.Bits, g.Name, g.Bits),
						})
					}
				}
			}

			if unused := unusedBits(seg); unused > 0 && len(seg.Fields) > 0 {
				out = append(out, sim.Issue{
					Severity: sim.SeverityWarning,
					RuleID:   "SD-STRUCT-003",
					Path:     sim.SegmentPath(mi, si),
					Message: fmt.Sprintf("segment covers %d of %d declared bits, %d unused",
						seg.BitLen-unused, seg.BitLen, unused),
					Fix: "check the source table for rows lost during extraction",
				})
			}
		}
	}
	return out
}

// unusedBits counts declared bits no field covers. Out-of-bounds field
// bits are ignored here; SD-STRUCT-002 reports those.
func unusedBits(seg sim.Segment) int {
	if seg.BitLen <= 0 {
		return 0
	}
	used := make([]bool, seg.BitLen)
	for _, f := range seg.Fields {
		for b := f.Bits.Start; b <= f.Bits.End && b < seg.BitLen; b++ {
			if b >= 0 {
				used[b] = true
			}
		}
	}
	n := 0
	for _, u := range used {
		if !u {
			n++
		}
	}
	return n
}

// checkDictionary covers the DFI/DUI/DI forest: orphaned entries and
// duplicate triples.
func checkDictionary(m *sim.Model, _ Options) []sim.Issue {
	var out []sim.Issue

	type key struct {
		cat, sub int
		item     string
	}
	seen := map[key]int{}
	cats := map[int]bool{}
	subs := map[[2]int]bool{}
	for _, e := range m.Dictionary {
		switch e.Level() {
		case 0:
			cats[e.CategoryID] = true
		case 1:
			subs[[2]int{e.CategoryID, e.SubID}] = true
		}
	}

	for i, e := range m.Dictionary {
		k := key{e.CategoryID, e.SubID, e.ItemID}
		if first, dup := seen[k]; dup {
			out = append(out, sim.Issue{
				Severity: sim.SeverityError,
				RuleID:   "SD-DICT-002",
				Path:     sim.DictionaryPath(i),
				Message: fmt.Sprintf("duplicate dictionary entry DFI %d DUI %d DI %q, first at %s",
					e.CategoryID, e.SubID, e.ItemID, sim.DictionaryPath(first)),
			})
			continue
		}
		seen[k] = i

		switch e.Level() {
		case 1:
			if !cats[e.CategoryID] {
				out = append(out, sim.Issue{
					Severity: sim.SeverityError,
					RuleID:   "SD-DICT-001",
					Path:     sim.DictionaryPath(i),
					Message:  fmt.Sprintf("DUI %d references undefined DFI %d", e.SubID, e.CategoryID),
				})
			}
		case 2:
			if !subs[[2]int{e.CategoryID, e.SubID}] {
				out = append(out, sim.Issue{
					Severity: sim.SeverityError,
					RuleID:   "SD-DICT-001",
					Path:     sim.DictionaryPath(i),
					Message:  fmt.Sprintf("DI %q references undefined DFI %d DUI %d", e.ItemID, e.CategoryID, e.SubID),
				})
			}
		}
	}
	return out
}

// checkUnits flags field unit symbols with no definition in the model's
// unit table.
func checkUnits(m *sim.Model, _ Options) []sim.Issue {
	defined := map[string]bool{}
	for _, u := range m.Units {
		defined[u.Symbol] = true
	}

	var out []sim.Issue
	for mi, msg := range m.Messages {
		for si, seg := range msg.Segments {
			for fi, f := range seg.Fields {
				if f.Units == "" || defined[f.Units] {
					continue
				}
				out = append(out, sim.Issue{
					Severity: sim.SeverityWarning,
					RuleID:   "SD-UNIT-001",
					Path:     sim.FieldPath(mi, si, fi),
					Message:  fmt.Sprintf("field %q uses undefined unit %q", f.Name, f.Units),
					Fix:      "add the unit to the unit table or correct the symbol",
				})
			}
		}
	}
	return out
}

// checkEnums flags duplicate codes within an enumeration and enum
// fields whose listing was never captured.
func checkEnums(m *sim.Model, _ Options) []sim.Issue {
	var out []sim.Issue
	keys := map[string]bool{}
	for ei, e := range m.Enums {
		keys[e.Key] = true
		seen := map[string]bool{}
		for _, item := range e.Items {
			if seen[item.Code] {
				out = append(out, sim.Issue{
					Severity: sim.SeverityError,
					RuleID:   "SD-ENUM-001",
					Path:     sim.EnumPath(ei),
					Message:  fmt.Sprintf("enum %q defines code %q more than once", e.Key, item.Code),
				})
			}
			seen[item.Code] = true
		}
	}

	for mi, msg := range m.Messages {
		for si, seg := range msg.Segments {
			for fi, f := range seg.Fields {
				if f.Encoding != sim.EncodingEnum {
					continue
				}
				if !keys[assemble.EnumKey(f.Name)] {
					out = append(out, sim.Issue{
						Severity: sim.SeverityWarning,
						RuleID:   "SD-ENUM-001",
						Path:     sim.FieldPath(mi, si, fi),
						Message:  fmt.Sprintf("enum field %q has no captured value listing", f.Name),
					})
				}
			}
		}
	}
	return out
}

// checkConfidence flags fields extracted below the confidence floor.
func checkConfidence(m *sim.Model, opts Options) []sim.Issue {
	var out []sim.Issue
	for mi, msg := range m.Messages {
		for si, seg := range msg.Segments {
			for fi, f := range seg.Fields {
				if f.Confidence >= opts.ConfidenceThreshold {
					continue
				}
				out = append(out, sim.Issue{
					Severity: sim.SeverityWarning,
					RuleID:   "SD-CONF-001",
					Path:     sim.FieldPath(mi, si, fi),
					Message: fmt.Sprintf("field %q extracted with confidence %.2f, below %.2f",
						f.Name, f.Confidence, opts.ConfidenceThreshold),
					Fix: "review the source table manually",
				})
			}
		}
	}
	return out
}

// checkDiff compares against a prior edition: removed messages and
// fields whose layout drifted.
func checkDiff(m *sim.Model, opts Options) []sim.Issue {
	if opts.Prior == nil {
		return nil
	}
	var out []sim.Issue

	current := map[string]sim.Message{}
	for _, msg := range m.Messages {
		current[msg.Label] = msg
	}
	for _, prev := range opts.Prior.Messages {
		cur, ok := current[prev.Label]
		if !ok {
			out = append(out, sim.Issue{
				Severity: sim.SeverityWarning,
				RuleID:   "SD-DIFF-001",
				Path:     "messages",
				Message:  fmt.Sprintf("message %q present in edition %s is missing", prev.Label, opts.Prior.Edition),
			})
			continue
		}
		prevFields := fieldIndex(prev)
		for mi, msg := range m.Messages {
			if msg.Label != prev.Label {
				continue
			}
			for si, seg := range cur.Segments {
				for fi, f := range seg.Fields {
					old, ok := prevFields[f.Name]
					if !ok {
						continue
					}
					if old.Bits != f.Bits || old.Encoding != f.Encoding {
						out = append(out, sim.Issue{
							Severity: sim.SeverityWarning,
							RuleID:   "SD-DIFF-002",
							Path:     sim.FieldPath(mi, si, fi),
							Message: fmt.Sprintf("field %q changed from bits %s (%s) to bits %s (%s) since edition %s",
								f.Name, old.Bits, old.Encoding, f.Bits, f.Encoding, opts.Prior.Edition),
						})
					}
				}
			}
		}
	}
	return out
}

func fieldIndex(msg sim.Message) map[string]sim.FieldRecord {
	out := map[string]sim.FieldRecord{}
	for _, seg := range msg.Segments {
		for _, f := range seg.Fields {
			out[f.Name] = f
		}
	}
	return out
}

// checkCoverage surfaces arbitration gaps and messages that ended up
// with no captured fields at all.
func checkCoverage(m *sim.Model, opts Options) []sim.Issue {
	var out []sim.Issue
	for _, g := range opts.Gaps {
		out = append(out, sim.Issue{
			Severity: sim.SeverityWarning,
			RuleID:   "SD-COV-001",
			Path:     fmt.Sprintf("pages[%d]", g.Page),
			Message:  fmt.Sprintf("page %d: %s", g.Page, g.Reason),
		})
	}
	for mi, msg := range m.Messages {
		if msg.FieldCount() == 0 {
			out = append(out, sim.Issue{
				Severity: sim.SeverityWarning,
				RuleID:   "SD-COV-001",
				Path:     sim.MessagePath(mi),
				Message:  fmt.Sprintf("message %q has no captured fields", msg.Label),
			})
		}
	}
	return out
}

// checkRowSkips reports every normalizer row skip as a warning so
// nothing is dropped silently.
func checkRowSkips(_ *sim.Model, opts Options) []sim.Issue {
	var out []sim.Issue
	for _, s := range opts.Skips {
		out = append(out, sim.Issue{
			Severity: sim.SeverityWarning,
			RuleID:   "SD-ROW-001",
			Path:     fmt.Sprintf("pages[%d]", s.Page),
			Message:  fmt.Sprintf("message %q table row %d skipped: %s", s.Message, s.Skip.Row, s.Skip.Reason),
		})
	}
	return out
}
