package arbiter

import (
	"math"
	"testing"

	"github.com/simdoc/simdoc/extract"
)

func fieldTable(method string) *extract.TableCandidate {
	return &extract.TableCandidate{
		Region: extract.PageRegion{Page: 3},
		Method: method,
		Cells: [][]string{
			{"Field Name", "Bits", "Units", "Description"},
			{"Altitude", "0-15", "ft", "Geometric altitude"},
			{"Track Status", "16-18", "", "Current track state"},
			{"Spare", "19-20", "", ""},
		},
	}
}

func junkTable(method string) *extract.TableCandidate {
	return &extract.TableCandidate{
		Region: extract.PageRegion{Page: 3},
		Method: method,
		Cells: [][]string{
			{"Figure 3-1 continued"},
			{"see", "previous", "page"},
			{"..."},
		},
	}
}

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightHeader + WeightColumns + WeightBitParse + WeightMethod
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1.0", sum)
	}
}

func TestScoreFieldTableBeatsJunk(t *testing.T) {
	vocab := DefaultVocab()
	good := Score(fieldTable("grid"), vocab)
	bad := Score(junkTable("grid"), vocab)
	if good <= bad {
		t.Fatalf("field table scored %v, junk scored %v; want field table higher", good, bad)
	}
	if good < DefaultMinScore {
		t.Errorf("clean field table scored %v, below gate %v", good, DefaultMinScore)
	}
}

func TestScoreNilAndEmpty(t *testing.T) {
	vocab := DefaultVocab()
	if got := Score(nil, vocab); got != 0 {
		t.Errorf("Score(nil) = %v, want 0", got)
	}
	empty := &extract.TableCandidate{Method: "grid"}
	if got := Score(empty, vocab); got != 0 {
		t.Errorf("Score(empty) = %v, want 0", got)
	}
}

func TestHeaderKeywordsDecide(t *testing.T) {
	// WHAT: Given equal structure, the candidate whose header matches the
	// vocabulary wins even when the other came from the stronger method.
	withHeader := fieldTable("stream")
	noHeader := fieldTable("grid")
	noHeader.Cells[0] = []string{"aaa", "bbb", "ccc", "ddd"}

	winner, out := Select(noHeader, withHeader, Options{})
	if winner != withHeader {
		t.Fatalf("winner = %v (scores %v vs %v), want header-bearing candidate",
			out.Winner, out.ScoreA, out.ScoreB)
	}
}

func TestSelectRejectsBelowGate(t *testing.T) {
	winner, out := Select(junkTable("grid"), junkTable("stream"), Options{})
	if winner != nil {
		t.Fatalf("junk candidates produced winner %q with score %v", out.Winner, out.WinnerScore)
	}
	if !out.Rejected {
		t.Error("outcome not marked rejected")
	}
}

func TestSelectNilInputs(t *testing.T) {
	only := fieldTable("grid")
	winner, out := Select(only, nil, Options{})
	if winner != only {
		t.Fatalf("lone candidate not selected, outcome %+v", out)
	}
	winner, out = Select(nil, nil, Options{})
	if winner != nil || !out.Rejected {
		t.Errorf("Select(nil, nil) = %v, %+v; want rejection", winner, out)
	}
}

func TestDensityTieBreak(t *testing.T) {
	a := fieldTable("grid")
	b := fieldTable("grid")
	b.Cells = append(b.Cells, []string{"Heading", "21-29", "deg", "True heading"})

	// Identical scoring inputs except density. Force a tie by scoring
	// both through Select with equal method and header rows.
	got := DensityTieBreak(a, b)
	if got != b {
		t.Errorf("tie-break picked the sparser candidate")
	}
	if got := DensityTieBreak(b, a); got != b {
		t.Errorf("tie-break not symmetric on density")
	}
}

func TestSelectDeterministic(t *testing.T) {
	a, b := fieldTable("grid"), fieldTable("stream")
	_, first := Select(a, b, Options{})
	for i := 0; i < 10; i++ {
		_, out := Select(a, b, Options{})
		if out != first {
			t.Fatalf("run %d outcome %+v differs from first %+v", i, out, first)
		}
	}
}

func TestBitRangeSpellings(t *testing.T) {
	spellings := []string{"6-15", "6–15", "6—15", "6~15", "6..15", "6 to 15", "7"}
	for _, s := range spellings {
		if !bitRangePattern.MatchString(s) {
			t.Errorf("bit range %q not recognized", s)
		}
	}
	for _, s := range []string{"", "abc", "6-", "to 15", "6 - b"} {
		if bitRangePattern.MatchString(s) {
			t.Errorf("non-range %q recognized as bit range", s)
		}
	}
}
