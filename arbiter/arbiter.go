// Package arbiter picks the better of two table extractions of the same
// page region. Scoring is pure and deterministic so the same document
// always yields the same winners regardless of worker scheduling.
package arbiter

import (
	"regexp"
	"strings"

	"github.com/simdoc/simdoc/extract"
)

// Scoring weights. They sum to 1.0; the header row carries the most
// signal because a recognizable header almost always means a real
// field table rather than page furniture.
const (
	WeightHeader   = 0.4
	WeightColumns  = 0.2
	WeightBitParse = 0.3
	WeightMethod   = 0.1
)

// DefaultMinScore is the gate below which both candidates are rejected
// and the region is reported as a coverage gap instead of producing a
// garbage table.
const DefaultMinScore = 0.35

// Method bonuses. Grid extraction only fires when ruled lines were
// actually found, so a grid hit is stronger evidence than a stream
// reconstruction from glyph positions.
var methodBonus = map[string]float64{
	"grid":   0.8,
	"stream": 0.6,
}

const otherMethodBonus = 0.4

// HeaderVocab is the set of lowercase header keywords the scorer
// recognizes. Keys are matched as substrings of header cells after
// trimming and lowercasing.
type HeaderVocab map[string]struct{}

// DefaultVocab covers the header spellings seen across editions,
// including the CJK column titles used in translated annexes.
func DefaultVocab() HeaderVocab {
	words := []string{
		"field", "field name", "element", "name", "designator",
		"bit", "bits", "bit no", "start", "end", "length", "len",
		"word", "word no",
		"unit", "units", "resolution", "scale",
		"description", "remarks", "definition", "comment",
		"dfi", "dui", "di", "code", "value", "meaning",
		// CJK aliases.
		"欄位", "名稱", "位元", "起始", "結束", "長度", "單位", "說明", "備註",
	}
	v := make(HeaderVocab, len(words))
	for _, w := range words {
		v[w] = struct{}{}
	}
	return v
}

// matches reports whether a header cell contains any vocab term.
// Short terms like "di" require an exact match so they do not fire on
// incidental substrings.
func (v HeaderVocab) matches(cell string) bool {
	cell = strings.ToLower(strings.TrimSpace(cell))
	if cell == "" {
		return false
	}
	for w := range v {
		if len(w) < 4 {
			if cell == w {
				return true
			}
			continue
		}
		if strings.Contains(cell, w) {
			return true
		}
	}
	return false
}

// bitRangePattern accepts the spellings a bits column uses for a range:
// "6-15", "6–15", "6~15", "6..15", "6 to 15", or a lone integer.
var bitRangePattern = regexp.MustCompile(`^\s*\d+\s*(?:(?:[-–—~]|\.\.|to)\s*\d+\s*)?$`)

// Score rates one candidate in [0, 1]. The four components:
//
//	header:    fraction of first-row cells matching the vocab
//	columns:   fraction of rows at the modal column width
//	bit parse: fraction of body rows with at least one bit-range cell
//	method:    fixed bonus by extraction method
//
// A nil or empty candidate scores zero.
func Score(c *extract.TableCandidate, vocab HeaderVocab) float64 {
	if c == nil || len(c.Cells) == 0 {
		return 0
	}
	return WeightHeader*headerScore(c, vocab) +
		WeightColumns*columnScore(c) +
		WeightBitParse*bitParseScore(c) +
		WeightMethod*methodScore(c.Method)
}

func headerScore(c *extract.TableCandidate, vocab HeaderVocab) float64 {
	header := c.Cells[0]
	if len(header) == 0 {
		return 0
	}
	hits := 0
	for _, cell := range header {
		if vocab.matches(cell) {
			hits++
		}
	}
	return float64(hits) / float64(len(header))
}

func columnScore(c *extract.TableCandidate) float64 {
	mode := c.ModalColumns()
	if mode == 0 {
		return 0
	}
	consistent := 0
	for _, row := range c.Cells {
		if len(row) == mode {
			consistent++
		}
	}
	return float64(consistent) / float64(len(c.Cells))
}

func bitParseScore(c *extract.TableCandidate) float64 {
	if len(c.Cells) < 2 {
		return 0
	}
	body := c.Cells[1:]
	hits := 0
	for _, row := range body {
		for _, cell := range row {
			if cell != "" && bitRangePattern.MatchString(cell) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(body))
}

func methodScore(method string) float64 {
	if b, ok := methodBonus[method]; ok {
		return b
	}
	return otherMethodBonus
}

// TieBreak chooses between two candidates whose scores are equal.
type TieBreak func(a, b *extract.TableCandidate) *extract.TableCandidate

// DensityTieBreak prefers the candidate with more non-blank cells; on a
// second-order tie it keeps a, so callers should pass the grid candidate
// first for stable results.
func DensityTieBreak(a, b *extract.TableCandidate) *extract.TableCandidate {
	if b.NonEmptyCells() > a.NonEmptyCells() {
		return b
	}
	return a
}

// Outcome records one arbitration for diagnostics and confidence
// propagation. WinnerScore is zero when no candidate cleared the gate.
type Outcome struct {
	Region      extract.PageRegion `json:"region"`
	ScoreA      float64            `json:"score_a"`
	ScoreB      float64            `json:"score_b"`
	Winner      string             `json:"winner,omitempty"`
	WinnerScore float64            `json:"winner_score"`
	Rejected    bool               `json:"rejected,omitempty"`
}

// Options tune selection. The zero value selects with DefaultMinScore,
// the default vocab, and the density tie-break.
type Options struct {
	MinScore float64
	Vocab    HeaderVocab
	TieBreak TieBreak
}

func (o Options) withDefaults() Options {
	if o.MinScore == 0 {
		o.MinScore = DefaultMinScore
	}
	if o.Vocab == nil {
		o.Vocab = DefaultVocab()
	}
	if o.TieBreak == nil {
		o.TieBreak = DensityTieBreak
	}
	return o
}

// Select scores both candidates and returns the winner, or nil when
// neither clears the minimum score. Either input may be nil.
func Select(a, b *extract.TableCandidate, opts Options) (*extract.TableCandidate, Outcome) {
	opts = opts.withDefaults()

	out := Outcome{
		ScoreA: Score(a, opts.Vocab),
		ScoreB: Score(b, opts.Vocab),
	}
	if a != nil {
		out.Region = a.Region
	} else if b != nil {
		out.Region = b.Region
	}

	var winner *extract.TableCandidate
	var score float64
	switch {
	case out.ScoreA > out.ScoreB:
		winner, score = a, out.ScoreA
	case out.ScoreB > out.ScoreA:
		winner, score = b, out.ScoreB
	case a != nil && b != nil:
		winner = opts.TieBreak(a, b)
		score = out.ScoreA
	case a != nil:
		winner, score = a, out.ScoreA
	case b != nil:
		winner, score = b, out.ScoreB
	}

	if winner == nil || score < opts.MinScore {
		out.Rejected = true
		return nil, out
	}
	out.Winner = winner.Method
	out.WinnerScore = score
	return winner, out
}
