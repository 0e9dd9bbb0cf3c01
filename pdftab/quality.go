package pdftab

import (
	"regexp"
	"strings"
	"unicode"
)

// Quality captures how trustworthy the text layer of a document is.
// A scanned standard has image streams and almost no extractable text;
// running the table pipeline over it would only produce noise.
type Quality struct {
	PageCount      int     `json:"page_count"`
	CharsPerPage   float64 `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
	HasImages      bool    `json:"has_images"`
	TableRefCount  int     `json:"table_ref_count"`
}

// NeedsOCR reports that the text layer is too thin or too garbled to
// trust.
func (q *Quality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImages) || q.PrintableRatio < 0.85
}

// Quality computes extraction metrics over the whole document.
func (d *Document) Quality() (*Quality, error) {
	var all strings.Builder
	total := 0
	for p := 1; p <= d.ctx.PageCount; p++ {
		pt, err := d.PageText(p)
		if err != nil {
			return nil, err
		}
		total += len([]rune(pt.Text))
		all.WriteString(pt.Text)
		all.WriteByte('\n')
	}
	text := all.String()

	var charsPerPage float64
	if d.ctx.PageCount > 0 {
		charsPerPage = float64(total) / float64(d.ctx.PageCount)
	}
	return &Quality{
		PageCount:      d.ctx.PageCount,
		CharsPerPage:   charsPerPage,
		PrintableRatio: printableRatio(text),
		WordlikeRatio:  wordlikeRatio(text),
		HasImages:      d.HasImages(),
		TableRefCount:  countTableRefs(text),
	}, nil
}

// printableRatio returns the ratio of printable characters, excluding
// Private Use Area glyphs, the replacement character, and control
// characters other than whitespace. Untranslated font glyphs land in
// the PUA, so a low ratio means a broken text layer.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of tokens with plausible word length.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

var tableRefRE = regexp.MustCompile(`(?i)\btable\s+[A-Z0-9][-.0-9A-Z]*`)

// countTableRefs counts textual references to numbered tables. A large
// gap between references and captured tables hints at extraction loss.
func countTableRefs(text string) int {
	return len(tableRefRE.FindAllString(text, -1))
}
