package normalize

import "strings"

// ligatures and typographic characters that OCR and PDF text extraction
// leave behind. Folding them first means every later regex only has to
// handle plain ASCII plus the dash variants the bit grammar accepts.
var ligatureFolds = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	" ", " ",
	"　", " ",
)

// FoldText normalizes one cell: fullwidth forms to ASCII, ligatures and
// typographic quotes folded, runs of spaces collapsed. Newlines survive
// because enumeration listings in descriptions are line-structured.
// Dash variants are preserved; the bit grammar owns those.
func FoldText(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		// Fullwidth ASCII block U+FF01..U+FF5E maps to U+0021..U+007E.
		if r >= 0xFF01 && r <= 0xFF5E {
			r -= 0xFEE0
		}
		b.WriteRune(r)
	}
	folded := ligatureFolds.Replace(b.String())

	lines := strings.Split(folded, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimSpace(out)
}

// FoldCells applies FoldText to every cell of a grid, in place on a copy.
func FoldCells(cells [][]string) [][]string {
	out := make([][]string, len(cells))
	for i, row := range cells {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = FoldText(cell)
		}
	}
	return out
}
