package normalize

import (
	"regexp"
	"strconv"

	"github.com/simdoc/simdoc/sim"
)

// The bit grammar. Editions disagree on range punctuation, so every
// observed spelling parses to the same pair: "6-15", "6–15", "6—15",
// "6~15", "6..15", "6 to 15", and a lone "6" meaning the single bit 6.
var bitRangeRE = regexp.MustCompile(`^(\d+)\s*(?:(?:[-–—~]|\.\.|to)\s*(\d+))?$`)

// ParseBitRange parses one bits cell. The input should already be
// folded; fullwidth digits are handled by FoldText, not here.
func ParseBitRange(s string) (sim.BitRange, bool) {
	m := bitRangeRE.FindStringSubmatch(FoldText(s))
	if m == nil {
		return sim.BitRange{}, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return sim.BitRange{}, false
	}
	if m[2] == "" {
		return sim.BitRange{Start: start, End: start}, true
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return sim.BitRange{}, false
	}
	return sim.BitRange{Start: start, End: end}, true
}

var digitRunRE = regexp.MustCompile(`\d+`)

// ScrapeBits is the last-resort parse for a noisy bits cell: the first
// two digit runs become the range, swapped if reversed; a single run
// becomes a one-bit range.
func ScrapeBits(s string) (sim.BitRange, bool) {
	nums := digitRunRE.FindAllString(FoldText(s), 2)
	switch len(nums) {
	case 0:
		return sim.BitRange{}, false
	case 1:
		n, err := strconv.Atoi(nums[0])
		if err != nil {
			return sim.BitRange{}, false
		}
		return sim.BitRange{Start: n, End: n}, true
	default:
		a, err1 := strconv.Atoi(nums[0])
		b, err2 := strconv.Atoi(nums[1])
		if err1 != nil || err2 != nil {
			return sim.BitRange{}, false
		}
		if a > b {
			a, b = b, a
		}
		return sim.BitRange{Start: a, End: b}, true
	}
}

// BitsFromStartEnd builds a range from separate start and end cells.
func BitsFromStartEnd(start, end string) (sim.BitRange, bool) {
	s, err1 := strconv.Atoi(FoldText(start))
	e, err2 := strconv.Atoi(FoldText(end))
	if err1 != nil || err2 != nil {
		return sim.BitRange{}, false
	}
	return sim.BitRange{Start: s, End: e}, true
}

// BitsFromStartLength builds a range from a start cell and a length
// cell. A zero or negative length fails.
func BitsFromStartLength(start, length string) (sim.BitRange, bool) {
	s, err1 := strconv.Atoi(FoldText(start))
	n, err2 := strconv.Atoi(FoldText(length))
	if err1 != nil || err2 != nil || n <= 0 {
		return sim.BitRange{}, false
	}
	return sim.BitRange{Start: s, End: s + n - 1}, true
}
