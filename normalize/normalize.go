// Package normalize turns an arbitration-winning table into clean field
// rows: folded text, parsed bit ranges, canonical units, and an
// inferred encoding per field. Rows it cannot use are reported, never
// silently dropped.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/simdoc/simdoc/extract"
	"github.com/simdoc/simdoc/sim"
)

// FallbackPenalty scales confidence when a fallback heuristic fired:
// positional column layout assumed for an unrecognized header, a
// reversed bit range swapped, digits scraped out of a noisy bits cell,
// or a unit token kept verbatim because no canonical unit matched.
const FallbackPenalty = 0.8

// MaxIntegerWidth is the widest field still inferred as an integer;
// anything wider defaults to opaque binary.
const MaxIntegerWidth = 32

// Row is one normalized field plus the word number it was listed
// under. Word is -1 when the table has no word column. NewSegment is
// set on the first field after a marker row such as "EXTENSION WORD 1".
type Row struct {
	Field      sim.FieldRecord
	Word       int
	NewSegment bool
}

// RowSkip records a table row that produced no field and why.
type RowSkip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result is the output of normalizing one table.
type Result struct {
	Rows           []Row
	Skips          []RowSkip
	HeaderFallback bool
}

// markerRE matches segment divider rows embedded in field tables.
var markerRE = regexp.MustCompile(`(?i)^(initial|extension|continuation)\b.*\bword\b`)

var naValues = map[string]bool{
	"": true, "-": true, "–": true, "—": true,
	"n/a": true, "na": true, "none": true, "tbd": true,
}

func isNA(s string) bool {
	return naValues[strings.ToLower(strings.TrimSpace(s))]
}

// Table normalizes one winning candidate. score is the arbitration
// score of the candidate; each field's confidence is score, scaled by
// FallbackPenalty when positional roles had to be assumed.
func Table(c *extract.TableCandidate, score float64) *Result {
	res := &Result{}
	if c == nil || len(c.Cells) == 0 {
		return res
	}
	cells := FoldCells(c.Cells)

	roles, ok := ResolveHeader(cells[0])
	body := cells[1:]
	rowBase := 1
	if !ok {
		res.HeaderFallback = true
		roles = PositionalRoles(c.ModalColumns())
		body = cells
		rowBase = 0
	}

	confidence := score
	if res.HeaderFallback {
		confidence *= FallbackPenalty
	}

	byRole := func(row []string, want Role) string {
		for i, r := range roles {
			if r == want && i < len(row) {
				return row[i]
			}
		}
		return ""
	}

	pendingMarker := false
	for i, row := range body {
		rowNo := rowBase + i
		name := strings.TrimSpace(byRole(row, RoleName))
		if rowBlank(row) {
			res.Skips = append(res.Skips, RowSkip{Row: rowNo, Reason: "blank row"})
			continue
		}
		if markerRE.MatchString(name) {
			pendingMarker = true
			res.Skips = append(res.Skips, RowSkip{Row: rowNo, Reason: "segment marker"})
			continue
		}
		if name == "" {
			res.Skips = append(res.Skips, RowSkip{Row: rowNo, Reason: "missing field name"})
			continue
		}

		bits, bitsFallback, reason := resolveBits(row, roles, byRole)
		if reason != "" {
			res.Skips = append(res.Skips, RowSkip{Row: rowNo, Reason: reason})
			continue
		}

		desc := strings.TrimSpace(byRole(row, RoleDescription))
		rawUnits := byRole(row, RoleUnits)
		units := ""
		unitFallback := false
		if !isNA(rawUnits) {
			if def, known := NormalizeUnit(rawUnits); known {
				units = def.Symbol
			} else {
				units = strings.TrimSpace(rawUnits)
				unitFallback = true
			}
		}

		rowConfidence := confidence
		if bitsFallback || unitFallback {
			rowConfidence *= FallbackPenalty
		}

		word := -1
		if w := byRole(row, RoleWord); !isNA(w) {
			if r, parsed := ParseBitRange(w); parsed && r.Start == r.End {
				word = r.Start
			}
		}

		res.Rows = append(res.Rows, Row{
			Field: sim.FieldRecord{
				Name:        name,
				Bits:        bits,
				Encoding:    InferEncoding(name, desc, bits.Len()),
				Units:       units,
				Description: desc,
				Confidence:  rowConfidence,
			},
			Word:       word,
			NewSegment: pendingMarker,
		})
		pendingMarker = false
	}
	return res
}

// resolveBits locates the field's bit range from whichever columns the
// table provides, in preference order: explicit range, start+end,
// start+length. Reversed bounds are swapped and noisy cells fall back
// to digit scraping; both count as fallbacks. A non-empty reason means
// the row must be skipped.
func resolveBits(row []string, roles []Role, byRole func([]string, Role) string) (sim.BitRange, bool, string) {
	has := map[Role]bool{}
	for _, r := range roles {
		has[r] = true
	}

	switch {
	case has[RoleBits]:
		cell := byRole(row, RoleBits)
		if isNA(cell) {
			return sim.BitRange{}, false, "bits column is n/a"
		}
		if r, ok := ParseBitRange(cell); ok {
			if !r.Valid() {
				r.Start, r.End = r.End, r.Start
				return r, true, ""
			}
			return r, false, ""
		}
		if r, ok := ScrapeBits(cell); ok {
			return r, true, ""
		}
		return sim.BitRange{}, false, fmt.Sprintf("unparseable bit range %q", cell)
	case has[RoleStart] && has[RoleEnd]:
		s, e := byRole(row, RoleStart), byRole(row, RoleEnd)
		if isNA(s) || isNA(e) {
			return sim.BitRange{}, false, "start/end column is n/a"
		}
		r, ok := BitsFromStartEnd(s, e)
		if !ok {
			return sim.BitRange{}, false, fmt.Sprintf("unparseable start/end %q/%q", s, e)
		}
		if !r.Valid() {
			r.Start, r.End = r.End, r.Start
			return r, true, ""
		}
		return r, false, ""
	case has[RoleStart] && has[RoleLength]:
		s, n := byRole(row, RoleStart), byRole(row, RoleLength)
		if isNA(s) || isNA(n) {
			return sim.BitRange{}, false, "start/length column is n/a"
		}
		r, ok := BitsFromStartLength(s, n)
		if !ok {
			return sim.BitRange{}, false, fmt.Sprintf("unparseable start/length %q/%q", s, n)
		}
		return r, false, ""
	}
	return sim.BitRange{}, false, "no bit columns"
}

func rowBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// enumItemRE matches one enumeration line in a description, e.g.
// "0 = No statement". Dashes are excluded as separators so a stray
// bit-range line never reads as an enum item.
var enumItemRE = regexp.MustCompile(`(?m)^\s*(\d+)\s*[=:]\s*(\S.*?)\s*$`)

var stringTokens = []string{"ascii", "character", "text string", "call sign", "callsign"}
var variableTokens = []string{"variable", "vbi"}

// InferEncoding picks a field's encoding from its name, description,
// and width. Listing lines in the description mean an enumeration;
// textual tokens mean a string; variable-length markers mean variable;
// otherwise integers up to MaxIntegerWidth and opaque binary beyond.
func InferEncoding(name, desc string, width int) sim.Encoding {
	lowName := strings.ToLower(name)
	lowDesc := strings.ToLower(desc)

	for _, tok := range variableTokens {
		if strings.Contains(lowName, tok) || strings.Contains(lowDesc, tok) {
			return sim.EncodingVariable
		}
	}
	if len(enumItemRE.FindAllString(desc, 2)) >= 2 {
		return sim.EncodingEnum
	}
	for _, tok := range stringTokens {
		if strings.Contains(lowName, tok) || strings.Contains(lowDesc, tok) {
			return sim.EncodingString
		}
	}
	if width <= MaxIntegerWidth {
		return sim.EncodingInteger
	}
	return sim.EncodingBinary
}

// EnumItems extracts the enumeration listed in a description. Empty
// when the description has fewer than two listing lines.
func EnumItems(desc string) []sim.EnumItem {
	matches := enumItemRE.FindAllStringSubmatch(desc, -1)
	if len(matches) < 2 {
		return nil
	}
	items := make([]sim.EnumItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, sim.EnumItem{Code: m[1], Label: m[2]})
	}
	return items
}
