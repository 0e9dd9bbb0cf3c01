// Package sections splits a document's page text into ordered,
// non-overlapping regions by heading kind: message definitions,
// dictionary blocks, appendices, and everything else. The classifier
// works on plain text only and never touches the PDF.
package sections

import (
	"regexp"
	"strings"

	"github.com/simdoc/simdoc/extract"
)

// Kind labels what a section contains.
type Kind string

const (
	KindMessage    Kind = "message"
	KindDictionary Kind = "dictionary"
	KindAppendix   Kind = "appendix"
	KindOther      Kind = "other"
)

// Pos is a line position within the document.
type Pos struct {
	Page int `json:"page"`
	Line int `json:"line"`
}

// Before reports whether p precedes q in document order.
func (p Pos) Before(q Pos) bool {
	return p.Page < q.Page || (p.Page == q.Page && p.Line < q.Line)
}

// Section is one classified region. Start is the heading line; End is
// the last line before the next heading (inclusive). Sections are
// non-overlapping and sorted by Start.
type Section struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label,omitempty"`
	Title string `json:"title,omitempty"`
	Start Pos    `json:"start"`
	End   Pos    `json:"end"`
}

// List is the ordered classification of a whole document.
type List []Section

// ForPage returns the sections that intersect the given page, in
// document order. A page where one section ends and the next begins
// intersects both; callers that need a single owner take the last
// entry, so a boundary page belongs to the section that starts on it.
func (l List) ForPage(page int) []Section {
	var out []Section
	for _, s := range l {
		if s.Start.Page <= page && page <= s.End.Page {
			out = append(out, s)
		}
	}
	return out
}

// Messages returns only the message sections.
func (l List) Messages() []Section {
	var out []Section
	for _, s := range l {
		if s.Kind == KindMessage {
			out = append(out, s)
		}
	}
	return out
}

// Heading patterns, in priority order. A line is tried against each
// until one matches; the message pattern wins over the dictionary
// pattern on pathological lines that could read as both.
var (
	messageHeading  = regexp.MustCompile(`^\s*(J\d+(?:\.\d+)?)(?:[ \t.:–—-]+(\S.*)?)?$`)
	dfiHeading      = regexp.MustCompile(`(?i)^\s*DFI\s+(\d+)[ \t.:–—-]*(\S.*)?$`)
	appendixHeading = regexp.MustCompile(`(?i)^\s*APPENDIX\s+([A-Z0-9]+)[ \t.:–—-]*(\S.*)?$`)

	continuedMark = regexp.MustCompile(`(?i)[(（]?\s*continued\s*[)）]?\s*$`)
)

// heading is one recognized boundary before folding.
type heading struct {
	kind      Kind
	label     string
	title     string
	pos       Pos
	continued bool
}

func matchHeading(line string) (heading, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return heading{}, false
	}

	cont := continuedMark.MatchString(trimmed)
	if cont {
		trimmed = strings.TrimSpace(continuedMark.ReplaceAllString(trimmed, ""))
	}

	if m := messageHeading.FindStringSubmatch(trimmed); m != nil {
		return heading{kind: KindMessage, label: m[1], title: strings.TrimSpace(m[2]), continued: cont}, true
	}
	if m := dfiHeading.FindStringSubmatch(trimmed); m != nil {
		return heading{kind: KindDictionary, label: "DFI " + m[1], title: strings.TrimSpace(m[2]), continued: cont}, true
	}
	if m := appendixHeading.FindStringSubmatch(trimmed); m != nil {
		return heading{kind: KindAppendix, label: "Appendix " + strings.ToUpper(m[1]), title: strings.TrimSpace(m[2]), continued: cont}, true
	}
	return heading{}, false
}

// Classify walks the page texts in order and cuts a section at every
// recognized heading. A heading marked "continued" never opens a new
// section: the current one absorbs it, even across a page break. Text
// before the first heading becomes a leading "other" section.
func Classify(pages []extract.PageText) List {
	var heads []heading
	lastPos := Pos{}
	for _, pt := range pages {
		lines := strings.Split(pt.Text, "\n")
		for i, line := range lines {
			h, ok := matchHeading(line)
			if !ok {
				continue
			}
			h.pos = Pos{Page: pt.Page, Line: i}
			heads = append(heads, h)
		}
		if n := len(lines); n > 0 {
			lastPos = Pos{Page: pt.Page, Line: n - 1}
		} else {
			lastPos = Pos{Page: pt.Page}
		}
	}
	if len(pages) == 0 {
		return nil
	}

	var out List
	open := func(h heading) {
		out = append(out, Section{Kind: h.kind, Label: h.label, Title: h.title, Start: h.pos})
	}
	closeAt := func(p Pos) {
		if len(out) > 0 {
			out[len(out)-1].End = p
		}
	}
	prevLine := func(p Pos) Pos {
		if p.Line > 0 {
			return Pos{Page: p.Page, Line: p.Line - 1}
		}
		if p.Page > pages[0].Page {
			return Pos{Page: p.Page - 1, Line: maxLine(pages, p.Page-1)}
		}
		return p
	}

	if len(heads) == 0 || heads[0].pos != (Pos{Page: pages[0].Page}) {
		out = append(out, Section{Kind: KindOther, Start: Pos{Page: pages[0].Page}})
	}
	for _, h := range heads {
		if h.continued && len(out) > 0 && out[len(out)-1].Label == h.label {
			continue
		}
		closeAt(prevLine(h.pos))
		open(h)
	}
	closeAt(lastPos)
	return out
}

func maxLine(pages []extract.PageText, page int) int {
	for _, pt := range pages {
		if pt.Page == page {
			if n := strings.Count(pt.Text, "\n"); n > 0 {
				return n
			}
			return 0
		}
	}
	return 0
}
